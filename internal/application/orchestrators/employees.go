package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crm/internal/domain/account"
	"crm/internal/domain/audit"
)

// ErrEmployeeHasRecords is returned when deleting an employee who still owns open work.
var ErrEmployeeHasRecords = errors.New("employee still has open leads, follow-ups, deals or visits; reassign them first")

// AccountStoreForManage defines the store interface needed to manage employees.
type AccountStoreForManage interface {
	GetByID(ctx context.Context, companyID, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Delete(ctx context.Context, companyID, id string) error
}

// OpenWorkCounter counts an account's open records in one table.
type OpenWorkCounter func(ctx context.Context, companyID, accountID string) (int, error)

// ManageEmployeeDeps holds dependencies for the employee management orchestrators.
type ManageEmployeeDeps struct {
	AccountStore AccountStoreForManage
	// OpenWork is consulted by DeleteEmployee; every counter must report zero.
	OpenWork []OpenWorkCounter
	Audit    AuditSink
}

// UpdateEmployeeInput carries the editable profile fields.
type UpdateEmployeeInput struct {
	Principal   account.Principal
	ID          string
	Name        string
	Phone       string
	Designation string
	Role        string // empty keeps the current role
}

// ExecuteUpdateEmployee edits an employee profile.
// PRE: principal is an admin
// POST: profile saved; an admin cannot demote themself
func ExecuteUpdateEmployee(ctx context.Context, input UpdateEmployeeInput, deps ManageEmployeeDeps) (account.Account, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return account.Account{}, err
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return account.Account{}, err
	}
	acct.Name = strings.TrimSpace(input.Name)
	acct.Phone = strings.TrimSpace(input.Phone)
	acct.Designation = strings.TrimSpace(input.Designation)
	if input.Role != "" && input.Role != acct.Role {
		if acct.ID == input.Principal.AccountID {
			return account.Account{}, ErrSelfAction
		}
		acct.Role = input.Role
	}
	acct.UpdatedAt = timeNow()
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryEmployee, audit.ActionUpdate, acct.UpdatedAt).
		WithResource("account", acct.ID))
	return acct, nil
}

// EmployeeActionInput identifies the employee an admin action targets.
type EmployeeActionInput struct {
	Principal account.Principal
	ID        string
}

// ExecuteSetEmployeeDisabled disables or re-enables an account.
// PRE: principal is an admin and not the target
// POST: Disabled == disabled; enabling also clears a lockout
func ExecuteSetEmployeeDisabled(ctx context.Context, input EmployeeActionInput, disabled bool, deps ManageEmployeeDeps) (account.Account, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return account.Account{}, err
	}
	if input.ID == input.Principal.AccountID {
		return account.Account{}, ErrSelfAction
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return account.Account{}, err
	}
	acct.Disabled = disabled
	if !disabled {
		acct.Reactivate()
	}
	acct.UpdatedAt = timeNow()
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}

	desc := "account enabled"
	if disabled {
		desc = "account disabled"
	}
	slog.Info("auth_event", "event", strings.ReplaceAll(desc, " ", "_"), "account_id", acct.ID, "by", input.Principal.AccountID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryEmployee, audit.ActionUpdate, acct.UpdatedAt).
		WithResource("account", acct.ID).
		WithSeverity(audit.SeverityWarning).
		WithDescription(desc))
	return acct, nil
}

// ExecuteUnlockEmployee clears a failed-login lockout.
// PRE: principal is an admin
// POST: IsActive true, FailedLoginAttempts 0; Disabled unchanged
func ExecuteUnlockEmployee(ctx context.Context, input EmployeeActionInput, deps ManageEmployeeDeps) (account.Account, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return account.Account{}, err
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return account.Account{}, err
	}
	acct.Reactivate()
	acct.UpdatedAt = timeNow()
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}
	slog.Info("auth_event", "event", "account_unlocked", "account_id", acct.ID, "by", input.Principal.AccountID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryEmployee, audit.ActionUpdate, acct.UpdatedAt).
		WithResource("account", acct.ID).
		WithDescription("lockout cleared"))
	return acct, nil
}

// ExecuteDeleteEmployee removes an account that owns no open work.
// PRE: principal is an admin and not the target
// POST: account deleted, or ErrEmployeeHasRecords
func ExecuteDeleteEmployee(ctx context.Context, input EmployeeActionInput, deps ManageEmployeeDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	if input.ID == input.Principal.AccountID {
		return ErrSelfAction
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	for _, count := range deps.OpenWork {
		n, err := count(ctx, acct.CompanyID, acct.ID)
		if err != nil {
			return fmt.Errorf("count open work: %w", err)
		}
		if n > 0 {
			return ErrEmployeeHasRecords
		}
	}
	if err := deps.AccountStore.Delete(ctx, acct.CompanyID, acct.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryEmployee, audit.ActionDelete, timeNow()).
		WithResource("account", acct.ID).
		WithSeverity(audit.SeverityWarning).
		WithDescription("employee deleted: "+acct.Email))
	return nil
}
