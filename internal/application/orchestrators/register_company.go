package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crm/internal/adapters/storage"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/company"
)

// ErrEmailTaken is returned when an account with the email already exists.
var ErrEmailTaken = errors.New("an account with this email already exists")

// CompanyStoreForRegister defines the store interface needed by RegisterCompany.
type CompanyStoreForRegister interface {
	Save(ctx context.Context, c company.Company) error
	Delete(ctx context.Context, id string) error
}

// AccountStoreForCreate defines the account store interface needed to create accounts.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// RegisterCompanyInput carries input for the register-company orchestrator.
type RegisterCompanyInput struct {
	CompanyName    string
	CompanyEmail   string
	CompanyPhone   string
	CompanyAddress string
	AdminName      string
	AdminEmail     string
	AdminPhone     string
	AdminPassword  string
}

// RegisterCompanyResult carries the created tenant and its first admin.
type RegisterCompanyResult struct {
	Company company.Company
	Admin   account.Account
}

// RegisterCompanyDeps holds dependencies for RegisterCompany.
type RegisterCompanyDeps struct {
	CompanyStore CompanyStoreForRegister
	AccountStore AccountStoreForCreate
	Audit        AuditSink
}

// ExecuteRegisterCompany creates a tenant and its first admin account.
// PRE: admin email is not yet registered
// POST: both rows exist, or neither (the company row is removed if the admin cannot be saved)
func ExecuteRegisterCompany(ctx context.Context, input RegisterCompanyInput, deps RegisterCompanyDeps) (RegisterCompanyResult, error) {
	now := timeNow()
	c := company.Company{
		ID:        newID(),
		Name:      strings.TrimSpace(input.CompanyName),
		Email:     account.NormalizeEmail(input.CompanyEmail),
		Phone:     strings.TrimSpace(input.CompanyPhone),
		Address:   strings.TrimSpace(input.CompanyAddress),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return RegisterCompanyResult{}, err
	}

	admin := account.Account{
		ID:        newID(),
		CompanyID: c.ID,
		Name:      strings.TrimSpace(input.AdminName),
		Email:     account.NormalizeEmail(input.AdminEmail),
		Phone:     strings.TrimSpace(input.AdminPhone),
		Role:      account.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admin.Validate(); err != nil {
		return RegisterCompanyResult{}, err
	}
	if err := admin.SetPassword(input.AdminPassword); err != nil {
		return RegisterCompanyResult{}, err
	}
	if err := ensureEmailFree(ctx, deps.AccountStore, admin.Email); err != nil {
		return RegisterCompanyResult{}, err
	}

	if err := deps.CompanyStore.Save(ctx, c); err != nil {
		return RegisterCompanyResult{}, fmt.Errorf("save company: %w", err)
	}
	if err := deps.AccountStore.Save(ctx, admin); err != nil {
		if derr := deps.CompanyStore.Delete(ctx, c.ID); derr != nil {
			slog.Error("register_company_rollback_failed", "company_id", c.ID, "error", derr)
		}
		return RegisterCompanyResult{}, fmt.Errorf("save admin: %w", err)
	}

	actor := audit.Actor{CompanyID: c.ID, ID: admin.ID, Email: admin.Email, Role: admin.Role}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actor, audit.CategoryCompany, audit.ActionCreate, now).
		WithResource("company", c.ID).
		WithDescription("company registered: " + c.Name))
	slog.Info("company_registered", "company_id", c.ID, "admin_id", admin.ID)

	return RegisterCompanyResult{Company: c, Admin: admin}, nil
}

// ensureEmailFree returns ErrEmailTaken when any account uses email.
func ensureEmailFree(ctx context.Context, store AccountStoreForCreate, email string) error {
	_, err := store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}

// CompanyStoreForUpdate defines the store interface needed by UpdateCompany.
type CompanyStoreForUpdate interface {
	GetByID(ctx context.Context, id string) (company.Company, error)
	Save(ctx context.Context, c company.Company) error
}

// UpdateCompanyInput carries the editable company profile.
type UpdateCompanyInput struct {
	Principal account.Principal
	Name      string
	Email     string
	Phone     string
	Address   string
}

// UpdateCompanyDeps holds dependencies for UpdateCompany.
type UpdateCompanyDeps struct {
	CompanyStore CompanyStoreForUpdate
	Audit        AuditSink
}

// ExecuteUpdateCompany edits the principal's company profile.
// PRE: principal is an admin
// POST: company saved with the new profile
func ExecuteUpdateCompany(ctx context.Context, input UpdateCompanyInput, deps UpdateCompanyDeps) (company.Company, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return company.Company{}, err
	}
	c, err := deps.CompanyStore.GetByID(ctx, input.Principal.CompanyID)
	if err != nil {
		return company.Company{}, err
	}
	c.Name = strings.TrimSpace(input.Name)
	c.Email = account.NormalizeEmail(input.Email)
	c.Phone = strings.TrimSpace(input.Phone)
	c.Address = strings.TrimSpace(input.Address)
	c.UpdatedAt = timeNow()
	if err := c.Validate(); err != nil {
		return company.Company{}, err
	}
	if err := deps.CompanyStore.Save(ctx, c); err != nil {
		return company.Company{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryCompany, audit.ActionUpdate, c.UpdatedAt).
		WithResource("company", c.ID))
	return c, nil
}
