package lead

import (
	"context"
	"time"

	domain "crm/internal/domain/lead"
)

// Store persists Lead state. Every read is scoped to a company.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.Lead, error)
	Save(ctx context.Context, value domain.Lead) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Lead, int, error)

	// FindDuplicate returns a lead other than excludeID sharing the email or phone.
	// POST: error wraps storage.ErrNotFound when there is none
	FindDuplicate(ctx context.Context, companyID, email, phone, excludeID string) (domain.Lead, error)

	// ListContacts returns every email and phone on file for the company.
	ListContacts(ctx context.Context, companyID string) ([]Contact, error)

	// CountOpenAssigned counts NEW and IN_PROGRESS leads assigned to an account.
	CountOpenAssigned(ctx context.Context, companyID, accountID string) (int, error)
}

// Contact is the duplicate-detection key of a stored lead.
type Contact struct {
	Email string
	Phone string
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	CompanyID  string
	AssignedTo string
	Status     string
	Source     string
	Search     string // matches name, email, phone or organization
	From       time.Time
	To         time.Time // exclusive, on created_at
	Sort       string
	Dir        string
	Limit      int
	Offset     int
}

// SortColumns are the columns List may order by.
var SortColumns = []string{"name", "organization", "status", "source", "estimated_value", "created_at", "updated_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
