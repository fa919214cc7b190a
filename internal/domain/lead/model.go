package lead

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength        = 200
	MaxRequirementLength = 2000
	MaxReasonLength      = 500
)

// Status constants
const (
	StatusNew        = "NEW"
	StatusInProgress = "IN_PROGRESS"
	StatusCustomer   = "CUSTOMER"
	StatusRejected   = "REJECTED"
)

// ValidStatuses lists every lead status in pipeline order.
var ValidStatuses = []string{StatusNew, StatusInProgress, StatusCustomer, StatusRejected}

// Source constants
const (
	SourceWebsite     = "website"
	SourceReferral    = "referral"
	SourceColdCall    = "cold_call"
	SourceSocialMedia = "social_media"
	SourceEvent       = "event"
	SourceWalkIn      = "walk_in"
	SourceUpload      = "upload"
	SourceOther       = "other"
)

// ValidSources contains all valid source values.
var ValidSources = []string{
	SourceWebsite, SourceReferral, SourceColdCall, SourceSocialMedia,
	SourceEvent, SourceWalkIn, SourceUpload, SourceOther,
}

// transitions maps a status to the statuses it may move to.
// CUSTOMER is terminal.
var transitions = map[string][]string{
	StatusNew:        {StatusInProgress, StatusCustomer, StatusRejected},
	StatusInProgress: {StatusCustomer, StatusRejected},
	StatusRejected:   {StatusInProgress},
}

// Domain errors
var (
	ErrEmptyName         = errors.New("lead name is required")
	ErrNameTooLong       = errors.New("lead name cannot exceed 200 characters")
	ErrNoContact         = errors.New("lead needs an email or a phone number")
	ErrInvalidEmail      = errors.New("lead email is not a valid address")
	ErrInvalidPhone      = errors.New("lead phone must have 7 to 15 digits")
	ErrInvalidSource     = errors.New("lead source is not recognised")
	ErrInvalidStatus     = errors.New("lead status must be one of: NEW, IN_PROGRESS, CUSTOMER, REJECTED")
	ErrInvalidTransition = errors.New("lead status change is not allowed")
	ErrReasonRequired    = errors.New("a rejection reason is required")
	ErrNegativeValue     = errors.New("estimated value cannot be negative")
	ErrDuplicate         = errors.New("a lead with this email or phone already exists")
	ErrClosed            = errors.New("lead is closed")
)

// Lead is a prospective customer moving through the sales pipeline.
type Lead struct {
	ID              string
	CompanyID       string
	Name            string
	Email           string
	Phone           string
	Organization    string
	Source          string
	Requirement     string
	EstimatedValue  int64 // minor currency units
	Status          string
	AssignedTo      string // account ID
	CreatedBy       string // account ID
	RejectionReason string
	CustomerID      string // set on conversion
	ConvertedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Normalize trims fields and canonicalises email and phone.
// POST: Email lower-cased, Phone stripped of formatting
func (l *Lead) Normalize() {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	l.Phone = NormalizePhone(l.Phone)
	l.Organization = strings.TrimSpace(l.Organization)
	l.Source = strings.ToLower(strings.TrimSpace(l.Source))
	l.Requirement = strings.TrimSpace(l.Requirement)
}

// Validate checks if the Lead has valid data.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (l *Lead) Validate() error {
	if l.Name == "" {
		return ErrEmptyName
	}
	if len(l.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if l.Email == "" && l.Phone == "" {
		return ErrNoContact
	}
	if l.Email != "" {
		if err := ValidateEmail(l.Email); err != nil {
			return err
		}
	}
	if l.Phone != "" {
		if err := ValidatePhone(l.Phone); err != nil {
			return err
		}
	}
	if !IsValidSource(l.Source) {
		return ErrInvalidSource
	}
	if !IsValidStatus(l.Status) {
		return ErrInvalidStatus
	}
	if l.EstimatedValue < 0 {
		return ErrNegativeValue
	}
	if len(l.Requirement) > MaxRequirementLength {
		return errors.New("requirement cannot exceed 2000 characters")
	}
	return nil
}

// ValidateEmail checks that s is a bare email address.
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizePhone strips spaces, dashes, dots and parentheses, keeping a leading '+'.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			// keep unexpected characters so validation rejects them
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone checks a normalized phone number.
func ValidatePhone(s string) error {
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return ErrInvalidPhone
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ErrInvalidPhone
		}
	}
	return nil
}

// CanTransition reports whether a lead may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the lead to a new status.
// PRE: reason is non-empty when to is REJECTED
// POST: Status is updated; RejectionReason set or cleared; ConvertedAt set for CUSTOMER
func (l *Lead) TransitionTo(to, reason string, now time.Time) error {
	if !IsValidStatus(to) {
		return ErrInvalidStatus
	}
	if !CanTransition(l.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, l.Status, to)
	}
	reason = strings.TrimSpace(reason)
	switch to {
	case StatusRejected:
		if reason == "" {
			return ErrReasonRequired
		}
		if len(reason) > MaxReasonLength {
			return errors.New("rejection reason cannot exceed 500 characters")
		}
		l.RejectionReason = reason
	case StatusCustomer:
		l.ConvertedAt = now
		l.RejectionReason = ""
	default:
		l.RejectionReason = ""
	}
	l.Status = to
	l.UpdatedAt = now
	return nil
}

// IsOpen reports whether the lead still accepts follow-ups.
// INVARIANT: Lead fields are not mutated
func (l *Lead) IsOpen() bool {
	return l.Status == StatusNew || l.Status == StatusInProgress
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

// IsValidSource reports whether s is a known source.
func IsValidSource(s string) bool {
	for _, v := range ValidSources {
		if v == s {
			return true
		}
	}
	return false
}
