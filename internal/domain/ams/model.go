package ams

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency constants
const (
	FrequencyOneTime    = "one_time"
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencyHalfYearly = "half_yearly"
	FrequencyYearly     = "yearly"
)

// ValidFrequencies contains all valid visit frequencies.
var ValidFrequencies = []string{FrequencyOneTime, FrequencyMonthly, FrequencyQuarterly, FrequencyHalfYearly, FrequencyYearly}

// Status constants
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Due filters for list views.
const (
	DueUpcoming = "upcoming"
	DueOverdue  = "overdue"
)

// Domain errors
var (
	ErrEmptyCustomer      = errors.New("visit must reference a customer")
	ErrEmptyAssignee      = errors.New("visit must be assigned to an employee")
	ErrEmptyServiceType   = errors.New("service type is required")
	ErrInvalidFrequency   = errors.New("frequency must be one of: one_time, monthly, quarterly, half_yearly, yearly")
	ErrInvalidContract    = errors.New("contract end must be after contract start")
	ErrOutsideContract    = errors.New("visit must be scheduled within the contract period")
	ErrNotScheduled       = errors.New("visit is no longer scheduled")
	ErrRemarksRequired    = errors.New("remarks are required to complete a visit")
	ErrInvalidDueFilter   = errors.New("due must be one of: upcoming, overdue")
	ErrEmptyScheduledTime = errors.New("visit needs a scheduled date")
)

// Visit is a contracted service visit to a customer.
// INVARIANT: ContractStart <= ScheduledFor <= ContractEnd
type Visit struct {
	ID              string
	CompanyID       string
	CustomerID      string
	DealID          string
	AssignedTo      string
	ServiceType     string
	Frequency       string
	ContractStart   time.Time
	ContractEnd     time.Time
	ScheduledFor    time.Time
	Status          string
	Remarks         string
	CompletedAt     time.Time
	PreviousVisitID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks if the Visit has valid data.
// PRE: Visit struct is populated
// POST: Returns nil if valid, error otherwise
func (v *Visit) Validate() error {
	if strings.TrimSpace(v.CustomerID) == "" {
		return ErrEmptyCustomer
	}
	if strings.TrimSpace(v.AssignedTo) == "" {
		return ErrEmptyAssignee
	}
	if strings.TrimSpace(v.ServiceType) == "" {
		return ErrEmptyServiceType
	}
	if !IsValidFrequency(v.Frequency) {
		return ErrInvalidFrequency
	}
	if v.ScheduledFor.IsZero() {
		return ErrEmptyScheduledTime
	}
	if v.ContractStart.IsZero() || v.ContractEnd.IsZero() || !v.ContractEnd.After(v.ContractStart) {
		return ErrInvalidContract
	}
	if v.ScheduledFor.Before(v.ContractStart) || v.ScheduledFor.After(v.ContractEnd) {
		return ErrOutsideContract
	}
	return nil
}

// Interval returns the number of months between recurring visits.
// Returns 0 for one_time visits.
func Interval(frequency string) int {
	switch frequency {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyHalfYearly:
		return 6
	case FrequencyYearly:
		return 12
	}
	return 0
}

// NextDate returns the date of the visit following v, or false when v is
// not recurring or the next date falls after the contract end.
func (v *Visit) NextDate() (time.Time, bool) {
	months := Interval(v.Frequency)
	if months == 0 {
		return time.Time{}, false
	}
	next := addMonths(v.ScheduledFor, months)
	if next.After(v.ContractEnd) {
		return time.Time{}, false
	}
	return next, true
}

// addMonths adds n calendar months, clamping to the last day of the target
// month so Jan 31 + 1 month is Feb 28/29 rather than early March.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Complete marks the visit done and builds the next scheduled visit when the
// contract still covers it.
// PRE: Status is scheduled, remarks non-empty
// POST: Status is completed; next is non-nil only for recurring visits within contract
func (v *Visit) Complete(remarks, nextID string, now time.Time) (*Visit, error) {
	if v.Status != StatusScheduled {
		return nil, ErrNotScheduled
	}
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return nil, ErrRemarksRequired
	}
	v.Status = StatusCompleted
	v.Remarks = remarks
	v.CompletedAt = now
	v.UpdatedAt = now

	at, ok := v.NextDate()
	if !ok {
		return nil, nil
	}
	return &Visit{
		ID:              nextID,
		CompanyID:       v.CompanyID,
		CustomerID:      v.CustomerID,
		DealID:          v.DealID,
		AssignedTo:      v.AssignedTo,
		ServiceType:     v.ServiceType,
		Frequency:       v.Frequency,
		ContractStart:   v.ContractStart,
		ContractEnd:     v.ContractEnd,
		ScheduledFor:    at,
		Status:          StatusScheduled,
		PreviousVisitID: v.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Cancel marks a scheduled visit cancelled.
func (v *Visit) Cancel(now time.Time) error {
	if v.Status != StatusScheduled {
		return ErrNotScheduled
	}
	v.Status = StatusCancelled
	v.UpdatedAt = now
	return nil
}

// IsOverdue reports whether a scheduled visit's date has passed.
func (v *Visit) IsOverdue(now time.Time) bool {
	return v.Status == StatusScheduled && v.ScheduledFor.Before(now)
}

// DueWindow maps a due filter to a [from, to) range on ScheduledFor.
// Zero bounds are open.
func DueWindow(due string, now time.Time) (from, to time.Time, err error) {
	switch due {
	case DueUpcoming:
		return now, time.Time{}, nil
	case DueOverdue:
		return time.Time{}, now, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueFilter, due)
}

// IsValidFrequency reports whether f is a known frequency.
func IsValidFrequency(f string) bool {
	for _, v := range ValidFrequencies {
		if v == f {
			return true
		}
	}
	return false
}
