package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "crm/internal/adapters/email"
	"crm/internal/adapters/storage"
	otpStore "crm/internal/adapters/storage/otp"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/otp"
)

// OTPStore defines the store interface needed by the password reset orchestrators.
type OTPStore interface {
	GetByEmail(ctx context.Context, email string) (otp.OTP, error)
	Save(ctx context.Context, o otp.OTP) error
	ConsumeAttempt(ctx context.Context, email, id string, maxAttempts int) error
	MarkVerified(ctx context.Context, email, id string) error
	Delete(ctx context.Context, email string) error
}

// AccountStoreForReset defines the account store interface needed by password reset.
type AccountStoreForReset interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// PasswordResetDeps holds dependencies for the OTP orchestrators.
type PasswordResetDeps struct {
	AccountStore AccountStoreForReset
	OTPStore     OTPStore
	Mail         MailDeps
	TTL          time.Duration // defaults to otp.DefaultTTL
	MaxAttempts  int           // defaults to otp.DefaultMaxAttempts
	Audit        AuditSink
}

// ExecuteRequestOTP issues a reset code for an email address.
// Unknown and disabled accounts return nil without sending anything.
// POST: at most one OTP record per email; any earlier code is replaced
func ExecuteRequestOTP(ctx context.Context, email string, deps PasswordResetDeps) error {
	email = account.NormalizeEmail(email)
	if email == "" {
		return account.ErrEmptyEmail
	}
	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("auth_event", "event", "otp_requested", "email", email, "result", "unknown_email")
		return nil
	}
	if err != nil {
		return err
	}
	if acct.Disabled {
		slog.Info("auth_event", "event", "otp_requested", "email", email, "result", "disabled")
		return nil
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = otp.DefaultTTL
	}
	rec := otp.New(newID(), email, code, timeNow(), ttl)
	if err := deps.OTPStore.Save(ctx, rec); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	req, err := emailAdapter.Compose(email, emailAdapter.TemplateOTP, emailAdapter.OTPData{
		Name:    acct.Name,
		Code:    code,
		Minutes: int(ttl / time.Minute),
	})
	if err != nil {
		return err
	}
	if err := deliverEmail(ctx, deps.Mail, acct.CompanyID, req); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	slog.Info("auth_event", "event", "otp_requested", "email", email, "result", "sent")
	return nil
}

// ExecuteVerifyOTP checks a code against the stored OTP. The guess is counted
// in the store before the comparison, so concurrent guesses share one limit.
// POST: OTP marked verified on match; Attempts incremented on mismatch
func ExecuteVerifyOTP(ctx context.Context, email, code string, deps PasswordResetDeps) error {
	email = account.NormalizeEmail(email)
	rec, err := deps.OTPStore.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return otp.ErrNotFound
	}
	if err != nil {
		return err
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = otp.DefaultMaxAttempts
	}

	verr := rec.CheckUsable(timeNow(), maxAttempts)
	if verr == nil {
		err := deps.OTPStore.ConsumeAttempt(ctx, email, rec.ID, maxAttempts)
		switch {
		case errors.Is(err, otpStore.ErrNoAttemptsLeft):
			verr = otp.ErrTooManyAttempts
		case err != nil:
			return fmt.Errorf("count otp attempt: %w", err)
		case !rec.Matches(code):
			rec.Attempts++
			verr = otp.ErrInvalid
		}
	}
	if verr != nil {
		slog.Info("auth_event", "event", "otp_verify_failed", "email", email, "reason", verr.Error(), "attempts", rec.Attempts)
		return verr
	}
	if err := deps.OTPStore.MarkVerified(ctx, email, rec.ID); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	slog.Info("auth_event", "event", "otp_verified", "email", email)
	return nil
}

// ResetPasswordInput carries input for the reset-password orchestrator.
type ResetPasswordInput struct {
	Email       string
	NewPassword string
	IPAddress   string
}

// ExecuteResetPassword sets a new password after a verified OTP.
// PRE: a verified, unexpired OTP exists for the email
// POST: password replaced, lockout cleared, OTP deleted
func ExecuteResetPassword(ctx context.Context, input ResetPasswordInput, deps PasswordResetDeps) error {
	email := account.NormalizeEmail(input.Email)
	rec, err := deps.OTPStore.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return otp.ErrNotFound
	}
	if err != nil {
		return err
	}
	now := timeNow()
	if err := rec.CanReset(now); err != nil {
		return err
	}

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct.Disabled {
		return ErrAccountDisabled
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.Reactivate()
	acct.UpdatedAt = now
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}
	if err := deps.OTPStore.Delete(ctx, email); err != nil {
		slog.Error("otp_delete_failed", "email", email, "error", err)
	}

	slog.Info("auth_event", "event", "password_reset", "email", email)
	recordAudit(ctx, deps.Audit, audit.NewEvent(audit.Actor{CompanyID: acct.CompanyID, ID: acct.ID, Email: acct.Email, Role: acct.Role},
		audit.CategoryAuth, audit.ActionPasswordReset, now).
		WithResource("account", acct.ID).
		WithRequest(input.IPAddress, "").
		WithDescription("password reset with emailed code"))
	return nil
}
