package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crm/internal/adapters/storage"
	"crm/internal/domain/account"
	"crm/internal/domain/ams"
	"crm/internal/domain/audit"
	"crm/internal/domain/deal"
)

// ErrDealCustomerMismatch is returned when a visit's deal belongs to another customer.
var ErrDealCustomerMismatch = errors.New("deal does not belong to this customer")

// VisitStore defines the AMS store interface needed by the visit orchestrators.
type VisitStore interface {
	GetByID(ctx context.Context, companyID, id string) (ams.Visit, error)
	Save(ctx context.Context, v ams.Visit) error
	UpdateIfStatus(ctx context.Context, v ams.Visit, from string) error
	Delete(ctx context.Context, companyID, id string) error
}

// DealLookup loads a deal of a company.
type DealLookup interface {
	GetByID(ctx context.Context, companyID, id string) (deal.Deal, error)
}

// VisitDeps holds dependencies for the visit orchestrators.
type VisitDeps struct {
	VisitStore    VisitStore
	CustomerStore CustomerLookup
	DealStore     DealLookup
	AccountStore  AccountLookup
	Audit         AuditSink
}

// VisitFields carries the editable visit fields.
type VisitFields struct {
	ServiceType   string
	Frequency     string
	ContractStart time.Time
	ContractEnd   time.Time
	ScheduledFor  time.Time
}

func (f VisitFields) apply(v *ams.Visit) {
	v.ServiceType = strings.TrimSpace(f.ServiceType)
	v.Frequency = strings.ToLower(strings.TrimSpace(f.Frequency))
	if v.Frequency == "" {
		v.Frequency = ams.FrequencyOneTime
	}
	v.ContractStart = f.ContractStart.UTC()
	v.ContractEnd = f.ContractEnd.UTC()
	v.ScheduledFor = f.ScheduledFor.UTC()
}

// CreateVisitInput carries input for the create-visit orchestrator.
type CreateVisitInput struct {
	Principal  account.Principal
	CustomerID string
	DealID     string // optional
	AssignedTo string // admins only; defaults to the customer's account manager
	Fields     VisitFields
}

// ExecuteCreateVisit schedules a service visit for a customer.
// PRE: customer exists in the company; ScheduledFor within the contract window
// POST: scheduled visit saved
func ExecuteCreateVisit(ctx context.Context, input CreateVisitInput, deps VisitDeps) (ams.Visit, error) {
	p := input.Principal
	c, err := deps.CustomerStore.GetByID(ctx, p.CompanyID, input.CustomerID)
	if err != nil {
		return ams.Visit{}, err
	}
	if input.DealID != "" {
		d, err := deps.DealStore.GetByID(ctx, p.CompanyID, input.DealID)
		if err != nil {
			return ams.Visit{}, err
		}
		if d.CustomerID != c.ID {
			return ams.Visit{}, ErrDealCustomerMismatch
		}
	}

	assignee := p.AccountID
	if p.IsAdmin() {
		assignee = input.AssignedTo
		if assignee == "" {
			assignee = c.AccountManager
		}
		if assignee == "" {
			assignee = p.AccountID
		}
		if assignee != p.AccountID {
			if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, assignee); err != nil {
				return ams.Visit{}, err
			}
		}
	}

	now := timeNow()
	v := ams.Visit{
		ID:         newID(),
		CompanyID:  p.CompanyID,
		CustomerID: c.ID,
		DealID:     input.DealID,
		AssignedTo: assignee,
		Status:     ams.StatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	input.Fields.apply(&v)
	if err := v.Validate(); err != nil {
		return ams.Visit{}, err
	}
	if err := deps.VisitStore.Save(ctx, v); err != nil {
		return ams.Visit{}, err
	}
	slog.Info("visit_created", "visit_id", v.ID, "customer_id", v.CustomerID, "scheduled_for", v.ScheduledFor)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryAMS, audit.ActionCreate, now).
		WithResource("visit", v.ID))
	return v, nil
}

// UpdateVisitInput carries input for the update-visit orchestrator.
type UpdateVisitInput struct {
	Principal  account.Principal
	ID         string
	AssignedTo string // admins only; empty keeps the current assignee
	Fields     VisitFields
}

// ExecuteUpdateVisit edits a scheduled visit.
// PRE: visit is scheduled and visible to the principal
func ExecuteUpdateVisit(ctx context.Context, input UpdateVisitInput, deps VisitDeps) (ams.Visit, error) {
	p := input.Principal
	v, err := loadVisibleVisit(ctx, deps.VisitStore, p, input.ID)
	if err != nil {
		return ams.Visit{}, err
	}
	if v.Status != ams.StatusScheduled {
		return ams.Visit{}, ams.ErrNotScheduled
	}
	input.Fields.apply(&v)
	if p.IsAdmin() && input.AssignedTo != "" && input.AssignedTo != v.AssignedTo {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AssignedTo); err != nil {
			return ams.Visit{}, err
		}
		v.AssignedTo = input.AssignedTo
	}
	v.UpdatedAt = timeNow()
	if err := v.Validate(); err != nil {
		return ams.Visit{}, err
	}
	if err := deps.VisitStore.UpdateIfStatus(ctx, v, ams.StatusScheduled); err != nil {
		return ams.Visit{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryAMS, audit.ActionUpdate, v.UpdatedAt).
		WithResource("visit", v.ID))
	return v, nil
}

// CompleteVisitInput carries input for the complete-visit orchestrator.
type CompleteVisitInput struct {
	Principal account.Principal
	ID        string
	Remarks   string
}

// CompleteVisitResult carries the completed visit and, for recurring
// contracts, the visit scheduled after it.
type CompleteVisitResult struct {
	Visit ams.Visit
	Next  *ams.Visit
}

// ExecuteCompleteVisit records a visit as done.
// PRE: visit is scheduled and visible to the principal; remarks non-empty
// POST: visit completed; Next saved when the contract covers another visit
// INVARIANT: of concurrent completions only the one that moves the row out of
// scheduled saves Next
func ExecuteCompleteVisit(ctx context.Context, input CompleteVisitInput, deps VisitDeps) (CompleteVisitResult, error) {
	v, err := loadVisibleVisit(ctx, deps.VisitStore, input.Principal, input.ID)
	if err != nil {
		return CompleteVisitResult{}, err
	}
	now := timeNow()
	late := v.IsOverdue(now)
	next, err := v.Complete(input.Remarks, newID(), now)
	if err != nil {
		return CompleteVisitResult{}, err
	}
	if err := deps.VisitStore.UpdateIfStatus(ctx, v, ams.StatusScheduled); err != nil {
		return CompleteVisitResult{}, err
	}
	if next != nil {
		if err := deps.VisitStore.Save(ctx, *next); err != nil {
			return CompleteVisitResult{}, fmt.Errorf("schedule next visit: %w", err)
		}
	}
	slog.Info("visit_completed", "visit_id", v.ID, "overdue", late, "next_scheduled", next != nil)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryAMS, audit.ActionStatusChange, now).
		WithResource("visit", v.ID).
		WithDescription("completed"))
	return CompleteVisitResult{Visit: v, Next: next}, nil
}

// ExecuteCancelVisit cancels a scheduled visit.
func ExecuteCancelVisit(ctx context.Context, input DeleteInput, deps VisitDeps) (ams.Visit, error) {
	v, err := loadVisibleVisit(ctx, deps.VisitStore, input.Principal, input.ID)
	if err != nil {
		return ams.Visit{}, err
	}
	now := timeNow()
	if err := v.Cancel(now); err != nil {
		return ams.Visit{}, err
	}
	if err := deps.VisitStore.UpdateIfStatus(ctx, v, ams.StatusScheduled); err != nil {
		return ams.Visit{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryAMS, audit.ActionStatusChange, now).
		WithResource("visit", v.ID).
		WithDescription("cancelled"))
	return v, nil
}

// ExecuteDeleteVisit removes a visit.
// PRE: principal is an admin
func ExecuteDeleteVisit(ctx context.Context, input DeleteInput, deps VisitDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	v, err := deps.VisitStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	if err := deps.VisitStore.Delete(ctx, v.CompanyID, v.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryAMS, audit.ActionDelete, timeNow()).
		WithResource("visit", v.ID).
		WithSeverity(audit.SeverityWarning))
	return nil
}

func loadVisibleVisit(ctx context.Context, store VisitStore, p account.Principal, id string) (ams.Visit, error) {
	v, err := store.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return ams.Visit{}, err
	}
	if !p.CanSee(v.AssignedTo) {
		return ams.Visit{}, storage.NotFound("visit")
	}
	return v, nil
}
