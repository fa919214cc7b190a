package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	accountStore "crm/internal/adapters/storage/account"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/company"
)

// AccountStoreForLogin defines the store interface needed by Login.
type AccountStoreForLogin interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	RecordFailedLogin(ctx context.Context, id string, max int) (account.Account, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
}

// checkDummyPassword is swapped in tests to observe the unknown-email path.
var checkDummyPassword = account.CheckDummyPassword

// CompanyLookup loads a company by ID.
type CompanyLookup interface {
	GetByID(ctx context.Context, id string) (company.Company, error)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult carries the result of a successful login.
type LoginResult struct {
	Account account.Account
	Company company.Company
}

// Principal returns the identity a session or token is issued for.
func (r LoginResult) Principal() account.Principal {
	return account.Principal{
		CompanyID: r.Account.CompanyID,
		AccountID: r.Account.ID,
		Email:     r.Account.Email,
		Role:      r.Account.Role,
	}
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	AccountStore AccountStoreForLogin
	CompanyStore CompanyLookup
	Audit        AuditSink
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked after too many failed attempts; reset your password to unlock it")
	ErrAccountDisabled    = errors.New("account has been disabled by an administrator")
)

// ExecuteLogin validates credentials and returns account info for session creation.
// PRE: Valid email and password provided
// POST: Returns account info on success, records failed login on failure
// INVARIANT: A locked or disabled account is rejected before its password is checked
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (LoginResult, error) {
	email := account.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		checkDummyPassword(input.Password)
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		return LoginResult{}, ErrInvalidCredentials
	}
	now := timeNow()
	event := func(action audit.Action) audit.Event {
		return audit.NewEvent(audit.Actor{CompanyID: acct.CompanyID, ID: acct.ID, Email: acct.Email, Role: acct.Role},
			audit.CategoryAuth, action, now).
			WithResource("account", acct.ID).
			WithRequest(input.IPAddress, input.UserAgent)
	}

	if acct.Disabled {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "disabled")
		return LoginResult{}, ErrAccountDisabled
	}
	if !acct.IsActive {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "locked")
		return LoginResult{}, ErrAccountLocked
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		updated, rerr := deps.AccountStore.RecordFailedLogin(ctx, acct.ID, account.MaxFailedLoginAttempts)
		if rerr != nil {
			slog.Error("record_failed_login_failed", "account_id", acct.ID, "error", rerr)
			return LoginResult{}, ErrInvalidCredentials
		}
		if !updated.IsActive {
			slog.Warn("auth_event", "event", "lockout", "email", email, "failed_logins", updated.FailedLoginAttempts)
			recordAudit(ctx, deps.Audit, event(audit.ActionLockout).
				WithSeverity(audit.SeverityCritical).
				WithDescription("account locked after repeated failed logins"))
			return LoginResult{}, ErrAccountLocked
		}
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password", "failed_logins", updated.FailedLoginAttempts)
		recordAudit(ctx, deps.Audit, event(audit.ActionLoginFailed).WithSeverity(audit.SeverityWarning))
		return LoginResult{}, ErrInvalidCredentials
	}

	co, err := deps.CompanyStore.GetByID(ctx, acct.CompanyID)
	if err != nil {
		return LoginResult{}, err
	}
	if !co.IsActive {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "company_inactive")
		return LoginResult{}, company.ErrInactive
	}

	if err := deps.AccountStore.RecordSuccessfulLogin(ctx, acct.ID, now); err != nil {
		if errors.Is(err, accountStore.ErrNotActive) {
			slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "locked_concurrently")
			return LoginResult{}, ErrAccountLocked
		}
		return LoginResult{}, err
	}
	acct.RecordSuccessfulLogin(now)
	acct.UpdatedAt = now

	slog.Info("auth_event", "event", "login_success", "email", email, "role", acct.Role)
	recordAudit(ctx, deps.Audit, event(audit.ActionLogin))

	return LoginResult{Account: acct, Company: co}, nil
}

// LogoutInput carries input for the logout orchestrator.
type LogoutInput struct {
	Principal account.Principal
	IPAddress string
	UserAgent string
}

// ExecuteLogout records the end of a session. Session and token teardown
// belongs to the transport layer.
func ExecuteLogout(ctx context.Context, input LogoutInput, sink AuditSink) {
	slog.Info("auth_event", "event", "logout", "email", input.Principal.Email)
	recordAudit(ctx, sink, audit.NewEvent(actorOf(input.Principal), audit.CategoryAuth, audit.ActionLogout, timeNow()).
		WithResource("account", input.Principal.AccountID).
		WithRequest(input.IPAddress, input.UserAgent))
}
