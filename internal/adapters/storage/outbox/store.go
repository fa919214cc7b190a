package outbox

import (
	"context"

	domain "crm/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// POST: Returns the entry or an error wrapping storage.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry to the database.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries that need to be processed (pending or retrying).
	// PRE: limit > 0
	// POST: Returns up to limit entries ordered by created_at
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns a company's permanently failed entries.
	// POST: Returns up to limit entries ordered by last_attempted_at desc
	ListFailed(ctx context.Context, companyID string, limit int) ([]domain.Entry, error)

	// ListByCompany returns a company's entries, optionally narrowed to one status.
	ListByCompany(ctx context.Context, companyID, status string, limit int) ([]domain.Entry, error)

	// Delete removes an outbox entry.
	Delete(ctx context.Context, id string) error
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
