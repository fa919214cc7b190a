package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crm/internal/domain/account"
	"crm/internal/domain/audit"
)

// timeNow is a variable for testability.
var timeNow = func() time.Time { return time.Now().UTC() }

// newID creates a new UUID string.
var newID = func() string { return uuid.New().String() }

var (
	// ErrForbidden is returned when the principal's role does not allow the operation.
	ErrForbidden = errors.New("you do not have permission to do that")
	// ErrSelfAction is returned when an admin tries to disable or delete their own account.
	ErrSelfAction = errors.New("you cannot do that to your own account")
)

// AuditSink records audit events.
type AuditSink interface {
	Save(ctx context.Context, e audit.Event) error
}

// actorOf converts a principal to an audit actor.
func actorOf(p account.Principal) audit.Actor {
	return audit.Actor{CompanyID: p.CompanyID, ID: p.AccountID, Email: p.Email, Role: p.Role}
}

// recordAudit saves e when a sink is configured. Failures are logged and
// never fail the audited operation.
func recordAudit(ctx context.Context, sink AuditSink, e audit.Event) {
	if sink == nil {
		return
	}
	if err := sink.Save(ctx, e); err != nil {
		slog.Error("audit_record_failed", "category", e.Category, "action", e.Action, "resource_id", e.ResourceID, "error", err)
	}
}

// requireAdmin returns ErrForbidden unless p is an admin.
func requireAdmin(p account.Principal) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
