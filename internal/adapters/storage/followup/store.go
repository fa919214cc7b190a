package followup

import (
	"context"
	"time"

	domain "crm/internal/domain/followup"
)

// Store persists FollowUp state. Every read is scoped to a company.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.FollowUp, error)
	Save(ctx context.Context, value domain.FollowUp) error
	UpdateIfStatus(ctx context.Context, value domain.FollowUp, from string) error
	Delete(ctx context.Context, companyID, id string) error
	DeleteByLead(ctx context.Context, companyID, leadID string) error
	List(ctx context.Context, filter ListFilter) ([]domain.FollowUp, int, error)
	CountPendingAssigned(ctx context.Context, companyID, accountID string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
// From/To bound scheduled_at as a half-open window.
type ListFilter struct {
	CompanyID  string
	LeadID     string
	AssignedTo string
	Status     string
	From       time.Time
	To         time.Time
	Sort       string
	Dir        string
	Limit      int
	Offset     int
}

// SortColumns are the columns List may order by.
var SortColumns = []string{"scheduled_at", "status", "mode", "created_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
