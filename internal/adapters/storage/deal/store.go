package deal

import (
	"context"
	"errors"
	"time"

	domain "crm/internal/domain/deal"
)

// ErrBalanceChanged is returned when a payment or value change no longer fits the stored balance.
var ErrBalanceChanged = errors.New("deal balance changed; reload and retry")

// Store persists Deal and Payment state. Every read is scoped to a company.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.Deal, error)
	Save(ctx context.Context, value domain.Deal) error
	ChangeValue(ctx context.Context, companyID, id string, from, to int64, now time.Time) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Deal, int, error)

	// RecordPayment stores p and reduces the deal balance by p.Amount.
	// POST: returns ErrBalanceChanged when the stored balance is below p.Amount
	RecordPayment(ctx context.Context, p domain.Payment) error
	ListPayments(ctx context.Context, companyID, dealID string) ([]domain.Payment, error)

	CountByCustomer(ctx context.Context, companyID, customerID string) (int, error)
	CountOpenOwned(ctx context.Context, companyID, accountID string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
// From/To bound created_at as a half-open window.
type ListFilter struct {
	CompanyID  string
	CustomerID string
	OwnerID    string
	Status     string
	From       time.Time
	To         time.Time
	Sort       string
	Dir        string
	Limit      int
	Offset     int
}

// SortColumns are the columns List may order by.
var SortColumns = []string{"title", "value", "balance", "status", "expected_close_at", "created_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
