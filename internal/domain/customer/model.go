package customer

import (
	"errors"
	"strings"
	"time"

	"crm/internal/domain/lead"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 200
	MaxNotesLength = 4000
)

// Domain errors
var (
	ErrEmptyName    = errors.New("customer name is required")
	ErrNameTooLong  = errors.New("customer name cannot exceed 200 characters")
	ErrNotesTooLong = errors.New("notes cannot exceed 4000 characters")
	ErrHasRecords   = errors.New("customer still has deals or service visits")
)

// Customer is an organisation or person the company sells to.
type Customer struct {
	ID             string
	CompanyID      string
	Name           string
	Email          string
	Phone          string
	Organization   string
	Address        string
	TaxID          string
	LeadID         string // lead this customer was converted from, if any
	AccountManager string // account ID
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Normalize trims fields and canonicalises email and phone.
func (c *Customer) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = lead.NormalizePhone(c.Phone)
	c.Organization = strings.TrimSpace(c.Organization)
	c.Address = strings.TrimSpace(c.Address)
	c.TaxID = strings.TrimSpace(c.TaxID)
}

// Validate checks if the Customer has valid data.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (c *Customer) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if c.Email != "" {
		if err := lead.ValidateEmail(c.Email); err != nil {
			return err
		}
	}
	if c.Phone != "" {
		if err := lead.ValidatePhone(c.Phone); err != nil {
			return err
		}
	}
	if len(c.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// FromLead builds the customer record created when a lead converts.
// PRE: l has just transitioned to CUSTOMER
// POST: returned customer references l and is managed by the lead's assignee
func FromLead(id string, l lead.Lead, now time.Time) Customer {
	manager := l.AssignedTo
	if manager == "" {
		manager = l.CreatedBy
	}
	return Customer{
		ID:             id,
		CompanyID:      l.CompanyID,
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		Organization:   l.Organization,
		LeadID:         l.ID,
		AccountManager: manager,
		Notes:          l.Requirement,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
