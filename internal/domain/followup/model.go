package followup

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusPending   = "pending"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

// Mode constants
const (
	ModeCall     = "call"
	ModeEmail    = "email"
	ModeMeeting  = "meeting"
	ModeWhatsApp = "whatsapp"
	ModeVisit    = "visit"
)

// ValidModes contains all valid contact modes.
var ValidModes = []string{ModeCall, ModeEmail, ModeMeeting, ModeWhatsApp, ModeVisit}

// Due filters for list views.
const (
	DueToday    = "today"
	DueOverdue  = "overdue"
	DueUpcoming = "upcoming"
)

// MaxNoteLength caps note and outcome text.
const MaxNoteLength = 2000

// Domain errors
var (
	ErrEmptyLead        = errors.New("follow-up must reference a lead")
	ErrEmptyAssignee    = errors.New("follow-up must be assigned to an employee")
	ErrEmptySchedule    = errors.New("follow-up needs a scheduled time")
	ErrInvalidMode      = errors.New("mode must be one of: call, email, meeting, whatsapp, visit")
	ErrNotPending       = errors.New("follow-up is no longer pending")
	ErrOutcomeRequired  = errors.New("an outcome is required to complete a follow-up")
	ErrNextBeforeNow    = errors.New("next follow-up must be scheduled after completion")
	ErrNoteTooLong      = errors.New("note cannot exceed 2000 characters")
	ErrInvalidDueFilter = errors.New("due must be one of: today, overdue, upcoming")
)

// FollowUp is a scheduled contact with a lead, owned by an employee.
type FollowUp struct {
	ID          string
	CompanyID   string
	LeadID      string
	AssignedTo  string
	ScheduledAt time.Time
	Mode        string
	Note        string
	Status      string
	Outcome     string
	CompletedAt time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks if the FollowUp has valid data.
// PRE: FollowUp struct is populated
// POST: Returns nil if valid, error otherwise
func (f *FollowUp) Validate() error {
	if strings.TrimSpace(f.LeadID) == "" {
		return ErrEmptyLead
	}
	if strings.TrimSpace(f.AssignedTo) == "" {
		return ErrEmptyAssignee
	}
	if f.ScheduledAt.IsZero() {
		return ErrEmptySchedule
	}
	if !IsValidMode(f.Mode) {
		return ErrInvalidMode
	}
	if len(f.Note) > MaxNoteLength || len(f.Outcome) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Reschedule moves a pending follow-up.
// PRE: Status is pending
// POST: ScheduledAt updated
func (f *FollowUp) Reschedule(at, now time.Time) error {
	if f.Status != StatusPending {
		return ErrNotPending
	}
	if at.IsZero() {
		return ErrEmptySchedule
	}
	f.ScheduledAt = at
	f.UpdatedAt = now
	return nil
}

// Complete records the outcome of a pending follow-up.
// PRE: Status is pending, outcome non-empty
// POST: Status is done, CompletedAt is now
func (f *FollowUp) Complete(outcome string, now time.Time) error {
	if f.Status != StatusPending {
		return ErrNotPending
	}
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return ErrOutcomeRequired
	}
	if len(outcome) > MaxNoteLength {
		return ErrNoteTooLong
	}
	f.Status = StatusDone
	f.Outcome = outcome
	f.CompletedAt = now
	f.UpdatedAt = now
	return nil
}

// Cancel withdraws a pending follow-up.
// PRE: Status is pending
// POST: Status is cancelled
func (f *FollowUp) Cancel(now time.Time) error {
	if f.Status != StatusPending {
		return ErrNotPending
	}
	f.Status = StatusCancelled
	f.UpdatedAt = now
	return nil
}

// Next builds the follow-up that continues this one at a later time.
// PRE: f has just been completed
// POST: returned follow-up is pending, same lead/assignee/mode
func (f *FollowUp) Next(id string, at time.Time, note, createdBy string, now time.Time) (FollowUp, error) {
	if !at.After(now) {
		return FollowUp{}, ErrNextBeforeNow
	}
	return FollowUp{
		ID:          id,
		CompanyID:   f.CompanyID,
		LeadID:      f.LeadID,
		AssignedTo:  f.AssignedTo,
		ScheduledAt: at,
		Mode:        f.Mode,
		Note:        strings.TrimSpace(note),
		Status:      StatusPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsOverdue reports whether a pending follow-up's time has passed.
func (f *FollowUp) IsOverdue(now time.Time) bool {
	return f.Status == StatusPending && f.ScheduledAt.Before(now)
}

// DueWindow converts a due filter to a [from, to) range on ScheduledAt.
// A zero bound means unbounded. "today" is the UTC calendar day containing now.
func DueWindow(due string, now time.Time) (from, to time.Time, err error) {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch due {
	case DueToday:
		return startOfDay, startOfDay.AddDate(0, 0, 1), nil
	case DueOverdue:
		return time.Time{}, now, nil
	case DueUpcoming:
		return now, time.Time{}, nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidDueFilter
	}
}

// IsValidMode reports whether m is a known contact mode.
func IsValidMode(m string) bool {
	for _, v := range ValidModes {
		if v == m {
			return true
		}
	}
	return false
}
