package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crm/internal/adapters/storage"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/customer"
	"crm/internal/domain/lead"
)

// ErrInvalidAssignee is returned when a record is assigned to an unknown or disabled account.
var ErrInvalidAssignee = errors.New("assignee must be an active account in your company")

// LeadStore defines the lead store interface needed by the lead orchestrators.
type LeadStore interface {
	GetByID(ctx context.Context, companyID, id string) (lead.Lead, error)
	Save(ctx context.Context, l lead.Lead) error
	Delete(ctx context.Context, companyID, id string) error
	FindDuplicate(ctx context.Context, companyID, email, phone, excludeID string) (lead.Lead, error)
}

// AccountLookup loads an account of a company.
type AccountLookup interface {
	GetByID(ctx context.Context, companyID, id string) (account.Account, error)
}

// CustomerWriter persists customers.
type CustomerWriter interface {
	Save(ctx context.Context, c customer.Customer) error
	Delete(ctx context.Context, companyID, id string) error
}

// FollowUpCascade removes a lead's follow-ups.
type FollowUpCascade interface {
	DeleteByLead(ctx context.Context, companyID, leadID string) error
}

// LeadDeps holds dependencies for the lead orchestrators.
type LeadDeps struct {
	LeadStore     LeadStore
	AccountStore  AccountLookup
	CustomerStore CustomerWriter
	FollowUpStore FollowUpCascade
	Audit         AuditSink
}

// LeadFields carries the editable lead fields.
type LeadFields struct {
	Name           string
	Email          string
	Phone          string
	Organization   string
	Source         string
	Requirement    string
	EstimatedValue int64
}

// apply copies f onto l. An empty Source keeps the stored one, or defaults
// to other on a new lead.
func (f LeadFields) apply(l *lead.Lead) {
	l.Name = f.Name
	l.Email = f.Email
	l.Phone = f.Phone
	l.Organization = f.Organization
	l.Requirement = f.Requirement
	l.EstimatedValue = f.EstimatedValue
	switch {
	case strings.TrimSpace(f.Source) != "":
		l.Source = f.Source
	case strings.TrimSpace(l.Source) == "":
		l.Source = lead.SourceOther
	}
	l.Normalize()
}

// CreateLeadInput carries input for the create-lead orchestrator.
type CreateLeadInput struct {
	Principal  account.Principal
	Fields     LeadFields
	AssignedTo string // admins only; employees always own their leads
}

// ExecuteCreateLead records a new lead in status NEW.
// PRE: no lead in the company shares the email or phone
// POST: lead saved; AssignedTo is the creator for employees
func ExecuteCreateLead(ctx context.Context, input CreateLeadInput, deps LeadDeps) (lead.Lead, error) {
	p := input.Principal
	now := timeNow()
	l := lead.Lead{
		ID:        newID(),
		CompanyID: p.CompanyID,
		Status:    lead.StatusNew,
		CreatedBy: p.AccountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	input.Fields.apply(&l)

	l.AssignedTo = p.AccountID
	if p.IsAdmin() && input.AssignedTo != "" && input.AssignedTo != p.AccountID {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AssignedTo); err != nil {
			return lead.Lead{}, err
		}
		l.AssignedTo = input.AssignedTo
	}

	if err := l.Validate(); err != nil {
		return lead.Lead{}, err
	}
	if err := checkDuplicateLead(ctx, deps.LeadStore, l); err != nil {
		return lead.Lead{}, err
	}
	if err := deps.LeadStore.Save(ctx, l); err != nil {
		return lead.Lead{}, err
	}

	slog.Info("lead_created", "lead_id", l.ID, "company_id", l.CompanyID, "assigned_to", l.AssignedTo)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryLead, audit.ActionCreate, now).
		WithResource("lead", l.ID))
	return l, nil
}

// UpdateLeadInput carries input for the update-lead orchestrator.
type UpdateLeadInput struct {
	Principal account.Principal
	ID        string
	Fields    LeadFields
}

// ExecuteUpdateLead edits a lead's contact and sales details.
// PRE: principal can see the lead
// POST: lead saved; status and assignment unchanged
func ExecuteUpdateLead(ctx context.Context, input UpdateLeadInput, deps LeadDeps) (lead.Lead, error) {
	l, err := loadVisibleLead(ctx, deps.LeadStore, input.Principal, input.ID)
	if err != nil {
		return lead.Lead{}, err
	}
	input.Fields.apply(&l)
	l.UpdatedAt = timeNow()
	if err := l.Validate(); err != nil {
		return lead.Lead{}, err
	}
	if err := checkDuplicateLead(ctx, deps.LeadStore, l); err != nil {
		return lead.Lead{}, err
	}
	if err := deps.LeadStore.Save(ctx, l); err != nil {
		return lead.Lead{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryLead, audit.ActionUpdate, l.UpdatedAt).
		WithResource("lead", l.ID))
	return l, nil
}

// AssignLeadInput carries input for the assign-lead orchestrator.
type AssignLeadInput struct {
	Principal  account.Principal
	ID         string
	AssignedTo string
}

// ExecuteAssignLead hands a lead to another account.
// PRE: principal is an admin; assignee is an active account of the company
// POST: AssignedTo updated
func ExecuteAssignLead(ctx context.Context, input AssignLeadInput, deps LeadDeps) (lead.Lead, error) {
	if err := requireAdmin(input.Principal); err != nil {
		return lead.Lead{}, err
	}
	l, err := deps.LeadStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return lead.Lead{}, err
	}
	if err := checkAssignee(ctx, deps.AccountStore, l.CompanyID, input.AssignedTo); err != nil {
		return lead.Lead{}, err
	}
	from := l.AssignedTo
	l.AssignedTo = input.AssignedTo
	l.UpdatedAt = timeNow()
	if err := deps.LeadStore.Save(ctx, l); err != nil {
		return lead.Lead{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryLead, audit.ActionAssign, l.UpdatedAt).
		WithResource("lead", l.ID).
		WithDescription(fmt.Sprintf("reassigned from %s to %s", from, l.AssignedTo)))
	return l, nil
}

// ChangeLeadStatusInput carries input for the change-status orchestrator.
type ChangeLeadStatusInput struct {
	Principal account.Principal
	ID        string
	Status    string
	Reason    string // required for REJECTED
}

// ChangeLeadStatusResult carries the updated lead and, on conversion, the new customer.
type ChangeLeadStatusResult struct {
	Lead     lead.Lead
	Customer *customer.Customer
}

// ExecuteChangeLeadStatus moves a lead along the pipeline. Converting to
// CUSTOMER creates a customer from the lead and links the two.
// PRE: principal can see the lead; the transition is allowed
// POST: lead saved; on CUSTOMER, Lead.CustomerID names a saved customer
func ExecuteChangeLeadStatus(ctx context.Context, input ChangeLeadStatusInput, deps LeadDeps) (ChangeLeadStatusResult, error) {
	l, err := loadVisibleLead(ctx, deps.LeadStore, input.Principal, input.ID)
	if err != nil {
		return ChangeLeadStatusResult{}, err
	}
	from := l.Status
	now := timeNow()
	if err := l.TransitionTo(strings.ToUpper(strings.TrimSpace(input.Status)), input.Reason, now); err != nil {
		return ChangeLeadStatusResult{}, err
	}

	var created *customer.Customer
	if l.Status == lead.StatusCustomer {
		c := customer.FromLead(newID(), l, now)
		if err := deps.CustomerStore.Save(ctx, c); err != nil {
			return ChangeLeadStatusResult{}, fmt.Errorf("create customer: %w", err)
		}
		l.CustomerID = c.ID
		created = &c
	}
	if err := deps.LeadStore.Save(ctx, l); err != nil {
		if created != nil {
			if derr := deps.CustomerStore.Delete(ctx, created.CompanyID, created.ID); derr != nil {
				slog.Error("lead_conversion_rollback_failed", "customer_id", created.ID, "error", derr)
			}
		}
		return ChangeLeadStatusResult{}, err
	}

	slog.Info("lead_status_changed", "lead_id", l.ID, "from", from, "to", l.Status)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryLead, audit.ActionStatusChange, now).
		WithResource("lead", l.ID).
		WithDescription(from+" -> "+l.Status))
	return ChangeLeadStatusResult{Lead: l, Customer: created}, nil
}

// DeleteInput identifies a record to delete.
type DeleteInput struct {
	Principal account.Principal
	ID        string
}

// ExecuteDeleteLead removes a lead and its follow-ups.
// PRE: principal is an admin
// POST: lead and its follow-ups are gone; a linked customer is kept
func ExecuteDeleteLead(ctx context.Context, input DeleteInput, deps LeadDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	l, err := deps.LeadStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	if err := deps.FollowUpStore.DeleteByLead(ctx, l.CompanyID, l.ID); err != nil {
		return fmt.Errorf("delete follow-ups: %w", err)
	}
	if err := deps.LeadStore.Delete(ctx, l.CompanyID, l.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryLead, audit.ActionDelete, timeNow()).
		WithResource("lead", l.ID).
		WithSeverity(audit.SeverityWarning).
		WithDescription("lead deleted: "+l.Name))
	return nil
}

// loadVisibleLead returns the lead when the principal may see it and
// reports it as not found otherwise.
func loadVisibleLead(ctx context.Context, store LeadStore, p account.Principal, id string) (lead.Lead, error) {
	l, err := store.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return lead.Lead{}, err
	}
	if !p.CanSee(l.AssignedTo) {
		return lead.Lead{}, storage.NotFound("lead")
	}
	return l, nil
}

// checkDuplicateLead returns lead.ErrDuplicate when another lead shares l's email or phone.
func checkDuplicateLead(ctx context.Context, store LeadStore, l lead.Lead) error {
	_, err := store.FindDuplicate(ctx, l.CompanyID, l.Email, l.Phone, l.ID)
	switch {
	case err == nil:
		return lead.ErrDuplicate
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check duplicate: %w", err)
	}
}

// checkAssignee verifies id is an enabled account of the company.
func checkAssignee(ctx context.Context, store AccountLookup, companyID, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidAssignee
	}
	a, err := store.GetByID(ctx, companyID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidAssignee
	}
	if err != nil {
		return err
	}
	if a.Disabled {
		return ErrInvalidAssignee
	}
	return nil
}
