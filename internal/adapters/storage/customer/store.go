package customer

import (
	"context"

	domain "crm/internal/domain/customer"
)

// Store persists Customer state. Every read is scoped to a company.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.Customer, error)
	Save(ctx context.Context, value domain.Customer) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Customer, int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	CompanyID      string
	AccountManager string
	Search         string // matches name, email, phone or organization
	Sort           string
	Dir            string
	Limit          int
	Offset         int
}

// SortColumns are the columns List may order by.
var SortColumns = []string{"name", "organization", "created_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
