package deal

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusOpen = "open"
	StatusWon  = "won"
	StatusLost = "lost"
)

// ValidStatuses contains all valid deal statuses.
var ValidStatuses = []string{StatusOpen, StatusWon, StatusLost}

// MaxTitleLength caps deal titles.
const MaxTitleLength = 200

// Domain errors
var (
	ErrEmptyCustomer     = errors.New("deal must reference a customer")
	ErrEmptyTitle        = errors.New("deal title is required")
	ErrTitleTooLong      = errors.New("deal title cannot exceed 200 characters")
	ErrNegativeValue     = errors.New("deal value cannot be negative")
	ErrInvalidStatus     = errors.New("status must be one of: open, won, lost")
	ErrValueBelowPaid    = errors.New("deal value cannot be less than the amount already paid")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
	ErrOverpayment       = errors.New("payment exceeds the outstanding balance")
	ErrEmptyOwner        = errors.New("deal must have an owner")
	ErrSameStatus        = errors.New("deal already has this status")
	ErrPaymentOnLostDeal = errors.New("cannot record a payment on a lost deal")
)

// Deal is a commercial transaction with a customer.
// Amounts are minor currency units.
// INVARIANT: 0 <= Balance <= Value
type Deal struct {
	ID                string
	CompanyID         string
	CustomerID        string
	Title             string
	Value             int64
	Balance           int64
	Status            string
	OwnerID           string
	ExpectedCloseDate time.Time
	ClosedAt          time.Time
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Payment is money received against a deal.
type Payment struct {
	ID         string
	CompanyID  string
	DealID     string
	Amount     int64
	PaidAt     time.Time
	Method     string
	Reference  string
	RecordedBy string
	CreatedAt  time.Time
}

// Validate checks if the Deal has valid data.
// PRE: Deal struct is populated
// POST: Returns nil if valid, error otherwise
func (d *Deal) Validate() error {
	if strings.TrimSpace(d.CustomerID) == "" {
		return ErrEmptyCustomer
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(d.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if d.Value < 0 {
		return ErrNegativeValue
	}
	if d.Balance < 0 || d.Balance > d.Value {
		return errors.New("deal balance must be between 0 and value")
	}
	if !IsValidStatus(d.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Paid returns the amount received so far.
func (d *Deal) Paid() int64 {
	return d.Value - d.Balance
}

// SetValue changes the deal value while keeping the paid amount.
// PRE: newValue >= Paid()
// POST: Value is newValue; Paid() unchanged
func (d *Deal) SetValue(newValue int64) error {
	if newValue < 0 {
		return ErrNegativeValue
	}
	paid := d.Paid()
	if newValue < paid {
		return ErrValueBelowPaid
	}
	d.Value = newValue
	d.Balance = newValue - paid
	return nil
}

// ApplyPayment reduces the balance by amount.
// PRE: 0 < amount <= Balance, deal not lost
// POST: Balance reduced by amount
func (d *Deal) ApplyPayment(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if d.Status == StatusLost {
		return ErrPaymentOnLostDeal
	}
	if amount > d.Balance {
		return ErrOverpayment
	}
	d.Balance -= amount
	d.UpdatedAt = now
	return nil
}

// ChangeStatus moves the deal between open, won and lost.
// POST: ClosedAt set when closing, cleared when reopening
func (d *Deal) ChangeStatus(to string, now time.Time) error {
	if !IsValidStatus(to) {
		return ErrInvalidStatus
	}
	if d.Status == to {
		return ErrSameStatus
	}
	d.Status = to
	if to == StatusOpen {
		d.ClosedAt = time.Time{}
	} else {
		d.ClosedAt = now
	}
	d.UpdatedAt = now
	return nil
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}
