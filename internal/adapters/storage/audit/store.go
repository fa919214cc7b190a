package audit

import (
	"context"
	"time"

	domain "crm/internal/domain/audit"
)

// Store defines the interface for audit event persistence.
type Store interface {
	// Save persists an audit event.
	// PRE: event has an ID and CompanyID
	// POST: Event is persisted
	Save(ctx context.Context, event domain.Event) error

	// List returns a company's audit events with optional filtering.
	// POST: Returns events ordered by timestamp desc and the total match count
	List(ctx context.Context, filter Filter) ([]domain.Event, int, error)

	// GetByID retrieves a specific audit event within a company.
	GetByID(ctx context.Context, companyID, id string) (domain.Event, error)
}

// Filter defines query parameters for listing audit events.
type Filter struct {
	CompanyID  string
	Category   *domain.Category
	Action     *domain.Action
	ActorID    *string
	Severity   *domain.Severity
	ResourceID *string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
