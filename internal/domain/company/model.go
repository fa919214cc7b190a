package company

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength    = 200
	MaxAddressLength = 500
)

// Domain errors
var (
	ErrEmptyName    = errors.New("company name is required")
	ErrNameTooLong  = errors.New("company name cannot exceed 200 characters")
	ErrInvalidEmail = errors.New("company email must contain '@'")
	ErrInactive     = errors.New("company is inactive")
)

// Company is a tenant. Every other record carries its ID.
type Company struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks if the Company has valid data.
// PRE: Company struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Company) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !strings.Contains(c.Email, "@") {
		return ErrInvalidEmail
	}
	if len(c.Address) > MaxAddressLength {
		return errors.New("company address cannot exceed 500 characters")
	}
	return nil
}
