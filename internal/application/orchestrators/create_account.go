package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	emailAdapter "crm/internal/adapters/email"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
)

// CreateEmployeeInput carries input for the create-employee orchestrator.
type CreateEmployeeInput struct {
	Principal   account.Principal
	Name        string
	Email       string
	Phone       string
	Designation string
	Role        string // defaults to employee
	Password    string
}

// CreateEmployeeDeps holds dependencies for CreateEmployee.
type CreateEmployeeDeps struct {
	AccountStore AccountStoreForCreate
	CompanyStore CompanyLookup
	Mail         MailDeps
	LoginURL     string
	Audit        AuditSink
}

// ExecuteCreateEmployee adds an account to the admin's company and emails the new user.
// PRE: principal is an admin; password >= 8 chars
// POST: Account created active with hashed password
// INVARIANT: Email must be unique across all companies
func ExecuteCreateEmployee(ctx context.Context, input CreateEmployeeInput, deps CreateEmployeeDeps) (account.Account, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return account.Account{}, err
	}
	role := input.Role
	if role == "" {
		role = account.RoleEmployee
	}

	now := timeNow()
	acct := account.Account{
		ID:          newID(),
		CompanyID:   input.Principal.CompanyID,
		Name:        strings.TrimSpace(input.Name),
		Email:       account.NormalizeEmail(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Designation: strings.TrimSpace(input.Designation),
		Role:        role,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return account.Account{}, err
	}
	if err := ensureEmailFree(ctx, deps.AccountStore, acct.Email); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}

	slog.Info("auth_event", "event", "account_created", "email", acct.Email, "role", acct.Role, "company_id", acct.CompanyID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryEmployee, audit.ActionCreate, now).
		WithResource("account", acct.ID).
		WithDescription("employee created: "+acct.Email))

	sendWelcome(ctx, deps, acct)
	return acct, nil
}

// sendWelcome emails the new account. Failures never undo the creation.
func sendWelcome(ctx context.Context, deps CreateEmployeeDeps, acct account.Account) {
	if deps.Mail.Sender == nil {
		return
	}
	companyName := ""
	if deps.CompanyStore != nil {
		if c, err := deps.CompanyStore.GetByID(ctx, acct.CompanyID); err == nil {
			companyName = c.Name
		}
	}
	req, err := emailAdapter.Compose(acct.Email, emailAdapter.TemplateWelcome, emailAdapter.WelcomeData{
		Name:     acct.Name,
		Company:  companyName,
		Email:    acct.Email,
		LoginURL: deps.LoginURL,
	})
	if err != nil {
		slog.Error("welcome_email_render_failed", "account_id", acct.ID, "error", err)
		return
	}
	if err := deliverEmail(ctx, deps.Mail, acct.CompanyID, req); err != nil {
		slog.Error("welcome_email_failed", "account_id", acct.ID, "error", err)
	}
}
