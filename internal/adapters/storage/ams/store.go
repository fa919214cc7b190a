package ams

import (
	"context"
	"time"

	domain "crm/internal/domain/ams"
)

// Store persists service Visit state. Every read is scoped to a company.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.Visit, error)
	Save(ctx context.Context, value domain.Visit) error
	UpdateIfStatus(ctx context.Context, value domain.Visit, from string) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Visit, int, error)
	CountByCustomer(ctx context.Context, companyID, customerID string) (int, error)
	CountScheduledAssigned(ctx context.Context, companyID, accountID string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
// From/To bound scheduled_for as a half-open window.
type ListFilter struct {
	CompanyID  string
	CustomerID string
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
var SortColumns = []string{"scheduled_for", "service_type", "status", "contract_end", "created_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
