package company

import (
	"context"

	domain "crm/internal/domain/company"
)

// Store persists Company state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Company, error)
	Save(ctx context.Context, value domain.Company) error
	Delete(ctx context.Context, id string) error
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
