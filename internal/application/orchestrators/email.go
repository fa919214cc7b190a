package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	emailAdapter "crm/internal/adapters/email"
	"crm/internal/domain/outbox"
)

// EmailSender delivers a rendered email.
type EmailSender interface {
	Send(ctx context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error)
}

// OutboxWriter persists outbox entries.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// MailDeps holds the dependencies for sending transactional email.
type MailDeps struct {
	Sender EmailSender
	Outbox OutboxWriter // optional; failed sends are dropped (and logged) when nil
}

// deliverEmail sends req once and, when the provider fails, queues it in the
// outbox for the background worker.
// POST: returns nil if the email was sent or queued
func deliverEmail(ctx context.Context, deps MailDeps, companyID string, req emailAdapter.SendRequest) error {
	if deps.Sender == nil {
		return fmt.Errorf("no email sender configured")
	}
	res, err := deps.Sender.Send(ctx, req)
	if err == nil {
		slog.Info("email_sent", "message_id", res.MessageID, "subject", req.Subject)
		return nil
	}
	slog.Warn("email_send_failed", "subject", req.Subject, "error", err)
	if deps.Outbox == nil {
		return err
	}

	payload, merr := json.Marshal(req)
	if merr != nil {
		return fmt.Errorf("encode email payload: %w", merr)
	}
	entry := outbox.Entry{
		ID:          newID(),
		CompanyID:   companyID,
		ActionType:  outbox.ActionTypeEmail,
		Payload:     string(payload),
		Status:      outbox.StatusPending,
		MaxAttempts: outbox.DefaultMaxAttempts,
		CreatedAt:   timeNow(),
	}
	entry.MarkAttempt(entry.CreatedAt)
	entry.MarkFailed(err)
	if verr := entry.Validate(); verr != nil {
		return verr
	}
	if serr := deps.Outbox.Save(ctx, entry); serr != nil {
		slog.Error("email_outbox_save_failed", "subject", req.Subject, "error", serr)
		return fmt.Errorf("queue email: %w", serr)
	}
	slog.Info("email_queued", "entry_id", entry.ID, "subject", req.Subject)
	return nil
}
