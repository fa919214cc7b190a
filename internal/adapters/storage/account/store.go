package account

import (
	"context"
	"errors"
	"time"

	domain "crm/internal/domain/account"
)

// ErrNotActive is returned when a login can no longer be recorded because the
// account was locked or disabled after it was read.
var ErrNotActive = errors.New("account is no longer active")

// Store persists Account state.
type Store interface {
	GetByID(ctx context.Context, companyID, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, value domain.Account) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, int, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Account, error)
	RecordFailedLogin(ctx context.Context, id string, max int) (domain.Account, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	CompanyID string
	Role      string
	Search    string // matches name, email or designation
	Status    string // "active", "locked", "disabled" or ""
	Sort      string // whitelisted column
	Dir       string
	Limit     int
	Offset    int
}

// SortColumns are the columns List may order by.
var SortColumns = []string{"name", "email", "designation", "role", "created_at", "last_login_at"}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
