package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"crm/internal/domain/account"
	"crm/internal/domain/audit"
)

// ChangePasswordInput carries input for the change-password orchestrator.
type ChangePasswordInput struct {
	Principal       account.Principal
	CurrentPassword string
	NewPassword     string
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, companyID, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
	Audit        AuditSink
}

var ErrCurrentPasswordWrong = errors.New("current password is incorrect")

// ExecuteChangePassword validates the current password and updates to the new one.
// PRE: both passwords are non-empty
// POST: Password hash replaced
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return errors.New("current and new password are required")
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.Principal.CompanyID, input.Principal.AccountID)
	if err != nil {
		return err
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return account.ErrSamePassword
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.UpdatedAt = timeNow()
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", acct.ID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryAuth, audit.ActionPasswordReset, acct.UpdatedAt).
		WithResource("account", acct.ID).
		WithDescription("password changed by owner"))
	return nil
}
