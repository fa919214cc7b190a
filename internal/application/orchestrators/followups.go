package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crm/internal/adapters/storage"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
)

// FollowUpStore defines the follow-up store interface needed by the follow-up orchestrators.
type FollowUpStore interface {
	GetByID(ctx context.Context, companyID, id string) (followup.FollowUp, error)
	Save(ctx context.Context, f followup.FollowUp) error
	UpdateIfStatus(ctx context.Context, f followup.FollowUp, from string) error
	Delete(ctx context.Context, companyID, id string) error
}

// LeadStoreForFollowUp loads and advances the lead a follow-up belongs to.
type LeadStoreForFollowUp interface {
	GetByID(ctx context.Context, companyID, id string) (lead.Lead, error)
	Save(ctx context.Context, l lead.Lead) error
}

// FollowUpDeps holds dependencies for the follow-up orchestrators.
type FollowUpDeps struct {
	FollowUpStore FollowUpStore
	LeadStore     LeadStoreForFollowUp
	AccountStore  AccountLookup
	Audit         AuditSink
}

// CreateFollowUpInput carries input for the create-follow-up orchestrator.
type CreateFollowUpInput struct {
	Principal   account.Principal
	LeadID      string
	AssignedTo  string // admins only; defaults to the lead's assignee
	ScheduledAt time.Time
	Mode        string
	Note        string
}

// ExecuteCreateFollowUp schedules a contact with a lead.
// PRE: lead exists in the company, is visible to the principal and is open
// POST: pending follow-up saved
func ExecuteCreateFollowUp(ctx context.Context, input CreateFollowUpInput, deps FollowUpDeps) (followup.FollowUp, error) {
	p := input.Principal
	l, err := deps.LeadStore.GetByID(ctx, p.CompanyID, input.LeadID)
	if err != nil {
		return followup.FollowUp{}, err
	}
	if !p.CanSee(l.AssignedTo) {
		return followup.FollowUp{}, storage.NotFound("lead")
	}
	if !l.IsOpen() {
		return followup.FollowUp{}, lead.ErrClosed
	}

	assignee := p.AccountID
	if p.IsAdmin() {
		assignee = l.AssignedTo
		if input.AssignedTo != "" && input.AssignedTo != l.AssignedTo {
			if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AssignedTo); err != nil {
				return followup.FollowUp{}, err
			}
			assignee = input.AssignedTo
		}
	}

	now := timeNow()
	f := followup.FollowUp{
		ID:          newID(),
		CompanyID:   p.CompanyID,
		LeadID:      l.ID,
		AssignedTo:  assignee,
		ScheduledAt: input.ScheduledAt.UTC(),
		Mode:        strings.ToLower(strings.TrimSpace(input.Mode)),
		Note:        strings.TrimSpace(input.Note),
		Status:      followup.StatusPending,
		CreatedBy:   p.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.Validate(); err != nil {
		return followup.FollowUp{}, err
	}
	if err := deps.FollowUpStore.Save(ctx, f); err != nil {
		return followup.FollowUp{}, err
	}
	slog.Info("followup_created", "followup_id", f.ID, "lead_id", f.LeadID, "scheduled_at", f.ScheduledAt)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryFollowUp, audit.ActionCreate, now).
		WithResource("followup", f.ID))
	return f, nil
}

// UpdateFollowUpInput carries input for the update-follow-up orchestrator.
// A zero ScheduledAt keeps the current time; an empty Mode keeps the current mode.
type UpdateFollowUpInput struct {
	Principal   account.Principal
	ID          string
	ScheduledAt time.Time
	Mode        string
	Note        string
}

// ExecuteUpdateFollowUp edits or reschedules a pending follow-up.
// PRE: follow-up is pending and visible to the principal
// POST: follow-up saved
func ExecuteUpdateFollowUp(ctx context.Context, input UpdateFollowUpInput, deps FollowUpDeps) (followup.FollowUp, error) {
	f, err := loadVisibleFollowUp(ctx, deps.FollowUpStore, input.Principal, input.ID)
	if err != nil {
		return followup.FollowUp{}, err
	}
	if f.Status != followup.StatusPending {
		return followup.FollowUp{}, followup.ErrNotPending
	}
	now := timeNow()
	if !input.ScheduledAt.IsZero() {
		if err := f.Reschedule(input.ScheduledAt.UTC(), now); err != nil {
			return followup.FollowUp{}, err
		}
	}
	if m := strings.ToLower(strings.TrimSpace(input.Mode)); m != "" {
		f.Mode = m
	}
	f.Note = strings.TrimSpace(input.Note)
	f.UpdatedAt = now
	if err := f.Validate(); err != nil {
		return followup.FollowUp{}, err
	}
	if err := deps.FollowUpStore.UpdateIfStatus(ctx, f, followup.StatusPending); err != nil {
		return followup.FollowUp{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryFollowUp, audit.ActionUpdate, now).
		WithResource("followup", f.ID))
	return f, nil
}

// CompleteFollowUpInput carries input for the complete-follow-up orchestrator.
type CompleteFollowUpInput struct {
	Principal      account.Principal
	ID             string
	Outcome        string
	NextFollowUpAt time.Time // zero means no follow-up is scheduled
	NextNote       string
}

// CompleteFollowUpResult carries the completed follow-up and the one scheduled after it.
type CompleteFollowUpResult struct {
	FollowUp followup.FollowUp
	Next     *followup.FollowUp
}

// ExecuteCompleteFollowUp records the outcome of a follow-up.
// PRE: follow-up is pending and visible to the principal; outcome non-empty
// POST: follow-up done; a NEW lead moves to IN_PROGRESS; Next saved when requested
// INVARIANT: of concurrent completions only the one that moves the row out of
// pending schedules a next follow-up
func ExecuteCompleteFollowUp(ctx context.Context, input CompleteFollowUpInput, deps FollowUpDeps) (CompleteFollowUpResult, error) {
	f, err := loadVisibleFollowUp(ctx, deps.FollowUpStore, input.Principal, input.ID)
	if err != nil {
		return CompleteFollowUpResult{}, err
	}
	now := timeNow()
	late := f.IsOverdue(now)
	if err := f.Complete(input.Outcome, now); err != nil {
		return CompleteFollowUpResult{}, err
	}

	var next *followup.FollowUp
	if !input.NextFollowUpAt.IsZero() {
		n, err := f.Next(newID(), input.NextFollowUpAt.UTC(), input.NextNote, input.Principal.AccountID, now)
		if err != nil {
			return CompleteFollowUpResult{}, err
		}
		next = &n
	}

	if err := deps.FollowUpStore.UpdateIfStatus(ctx, f, followup.StatusPending); err != nil {
		return CompleteFollowUpResult{}, err
	}
	if next != nil {
		if err := deps.FollowUpStore.Save(ctx, *next); err != nil {
			return CompleteFollowUpResult{}, fmt.Errorf("schedule next follow-up: %w", err)
		}
	}
	advanceLead(ctx, deps.LeadStore, f.CompanyID, f.LeadID, now)

	slog.Info("followup_completed", "followup_id", f.ID, "lead_id", f.LeadID, "overdue", late, "next_scheduled", next != nil)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryFollowUp, audit.ActionStatusChange, now).
		WithResource("followup", f.ID).
		WithDescription("completed"))
	return CompleteFollowUpResult{FollowUp: f, Next: next}, nil
}

// advanceLead moves a NEW lead to IN_PROGRESS once it has been contacted.
// Failures are logged; the completed follow-up stands.
func advanceLead(ctx context.Context, store LeadStoreForFollowUp, companyID, leadID string, now time.Time) {
	l, err := store.GetByID(ctx, companyID, leadID)
	if err != nil {
		slog.Error("lead_advance_failed", "lead_id", leadID, "error", err)
		return
	}
	if l.Status != lead.StatusNew {
		return
	}
	if err := l.TransitionTo(lead.StatusInProgress, "", now); err != nil {
		return
	}
	if err := store.Save(ctx, l); err != nil {
		slog.Error("lead_advance_failed", "lead_id", leadID, "error", err)
		return
	}
	slog.Info("lead_status_changed", "lead_id", l.ID, "from", lead.StatusNew, "to", l.Status)
}

// ExecuteCancelFollowUp withdraws a pending follow-up.
// PRE: follow-up is pending and visible to the principal
// POST: Status is cancelled
func ExecuteCancelFollowUp(ctx context.Context, input DeleteInput, deps FollowUpDeps) (followup.FollowUp, error) {
	f, err := loadVisibleFollowUp(ctx, deps.FollowUpStore, input.Principal, input.ID)
	if err != nil {
		return followup.FollowUp{}, err
	}
	now := timeNow()
	if err := f.Cancel(now); err != nil {
		return followup.FollowUp{}, err
	}
	if err := deps.FollowUpStore.UpdateIfStatus(ctx, f, followup.StatusPending); err != nil {
		return followup.FollowUp{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryFollowUp, audit.ActionStatusChange, now).
		WithResource("followup", f.ID).
		WithDescription("cancelled"))
	return f, nil
}

// ExecuteDeleteFollowUp removes a follow-up.
// PRE: principal is an admin
func ExecuteDeleteFollowUp(ctx context.Context, input DeleteInput, deps FollowUpDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	f, err := deps.FollowUpStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	if err := deps.FollowUpStore.Delete(ctx, f.CompanyID, f.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryFollowUp, audit.ActionDelete, timeNow()).
		WithResource("followup", f.ID).
		WithSeverity(audit.SeverityWarning))
	return nil
}

func loadVisibleFollowUp(ctx context.Context, store FollowUpStore, p account.Principal, id string) (followup.FollowUp, error) {
	f, err := store.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return followup.FollowUp{}, err
	}
	if !p.CanSee(f.AssignedTo) {
		return followup.FollowUp{}, storage.NotFound("follow-up")
	}
	return f, nil
}
