package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "crm/internal/adapters/email"
	domain "crm/internal/domain/outbox"
)

// OutboxStoreForProcessor defines the store interface needed by OutboxProcessor.
type OutboxStoreForProcessor interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the external action with the given payload.
	// Returns the provider's ID for the delivered action and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxProcessor retries deferred external actions with exponential backoff.
type OutboxProcessor struct {
	store     OutboxStoreForProcessor
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// NewOutboxProcessor creates a new outbox processor (base delay 30s, max 1h).
func NewOutboxProcessor(store OutboxStoreForProcessor, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 100,
		now:       timeNow,
	}
}

// ProcessResult counts what one ProcessPending pass did.
type ProcessResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int // not yet due
}

// ProcessPending processes pending outbox entries that are due.
// PRE: Context is valid
// POST: Due entries attempted once; each attempt persisted
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (ProcessResult, error) {
	var res ProcessResult
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return res, fmt.Errorf("list pending outbox entries: %w", err)
	}

	now := p.now()
	for _, entry := range entries {
		if !entry.IsDue(now, p.baseDelay, p.maxDelay) {
			res.Skipped++
			continue
		}
		res.Attempted++
		ok, err := p.attempt(ctx, &entry, now)
		if err != nil {
			slog.Error("outbox_save_failed", "entry_id", entry.ID, "error", err)
		}
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	if res.Attempted > 0 {
		slog.Info("outbox_pass_complete", "attempted", res.Attempted, "succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

// attempt runs one entry and saves the outcome.
func (p *OutboxProcessor) attempt(ctx context.Context, entry *domain.Entry, now time.Time) (bool, error) {
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.Attempts = entry.MaxAttempts
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		return false, p.store.Save(ctx, *entry)
	}

	entry.MarkAttempt(now)
	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
		if entry.IsTerminal() {
			slog.Error("outbox_entry_exhausted", "entry_id", entry.ID, "company_id", entry.CompanyID, "action_type", entry.ActionType)
		}
		return false, p.store.Save(ctx, *entry)
	}
	entry.MarkSuccess(externalID)
	slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	return true, p.store.Save(ctx, *entry)
}

// ProcessSingle manually processes one entry regardless of backoff (admin retry).
// PRE: entryID is non-empty
// POST: Entry attempted once and saved
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return entry, domain.ErrTerminal
	}
	if !entry.CanRetry() {
		// a manual retry grants one more attempt
		entry.MaxAttempts = entry.Attempts + 1
	}
	if _, err := p.attempt(ctx, &entry, p.now()); err != nil {
		return entry, err
	}
	return entry, nil
}

// AbandonEntry marks an entry as abandoned by an admin.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if err := entry.MarkAbandoned(); err != nil {
		return err
	}
	return p.store.Save(ctx, entry)
}

// Run processes pending entries every interval until ctx is cancelled.
// PRE: interval > 0
// POST: returns nil after ctx is done
func (p *OutboxProcessor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("outbox_worker_started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox_worker_stopped")
			return nil
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if _, err := p.ProcessPending(passCtx); err != nil {
				slog.Error("outbox_background_process_failed", "error", err.Error())
			}
			cancel()
		}
	}
}

// EmailExecutor re-sends queued emails.
type EmailExecutor struct {
	Sender EmailSender
}

// Execute sends an email from the payload.
// PRE: payload is JSON of an email.SendRequest
// POST: email sent via the configured sender, returns message ID
// INVARIANT: outbox entry status managed by caller
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var req emailAdapter.SendRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := e.Sender.Send(ctx, req)
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}
