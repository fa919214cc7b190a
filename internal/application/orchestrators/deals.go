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
	"crm/internal/domain/customer"
	"crm/internal/domain/deal"
)

// DealStore defines the deal store interface needed by the deal orchestrators.
type DealStore interface {
	GetByID(ctx context.Context, companyID, id string) (deal.Deal, error)
	Save(ctx context.Context, d deal.Deal) error
	ChangeValue(ctx context.Context, companyID, id string, from, to int64, now time.Time) error
	Delete(ctx context.Context, companyID, id string) error
	RecordPayment(ctx context.Context, p deal.Payment) error
}

// CustomerLookup loads a customer of a company.
type CustomerLookup interface {
	GetByID(ctx context.Context, companyID, id string) (customer.Customer, error)
}

// DealDeps holds dependencies for the deal orchestrators.
type DealDeps struct {
	DealStore     DealStore
	CustomerStore CustomerLookup
	AccountStore  AccountLookup
	Audit         AuditSink
}

// DealFields carries the editable deal fields.
type DealFields struct {
	Title             string
	Value             int64
	ExpectedCloseDate time.Time
	Notes             string
}

// CreateDealInput carries input for the create-deal orchestrator.
type CreateDealInput struct {
	Principal  account.Principal
	CustomerID string
	OwnerID    string // admins only; defaults to the creator
	Fields     DealFields
}

// ExecuteCreateDeal opens a deal with a customer.
// PRE: customer exists in the company
// POST: deal saved open with Balance == Value
func ExecuteCreateDeal(ctx context.Context, input CreateDealInput, deps DealDeps) (deal.Deal, error) {
	p := input.Principal
	c, err := deps.CustomerStore.GetByID(ctx, p.CompanyID, input.CustomerID)
	if err != nil {
		return deal.Deal{}, err
	}
	now := timeNow()
	d := deal.Deal{
		ID:                newID(),
		CompanyID:         p.CompanyID,
		CustomerID:        c.ID,
		Title:             strings.TrimSpace(input.Fields.Title),
		Value:             input.Fields.Value,
		Balance:           input.Fields.Value,
		Status:            deal.StatusOpen,
		OwnerID:           p.AccountID,
		ExpectedCloseDate: input.Fields.ExpectedCloseDate,
		Notes:             strings.TrimSpace(input.Fields.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.IsAdmin() && input.OwnerID != "" && input.OwnerID != p.AccountID {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.OwnerID); err != nil {
			return deal.Deal{}, err
		}
		d.OwnerID = input.OwnerID
	}
	if err := d.Validate(); err != nil {
		return deal.Deal{}, err
	}
	if err := deps.DealStore.Save(ctx, d); err != nil {
		return deal.Deal{}, err
	}
	slog.Info("deal_created", "deal_id", d.ID, "customer_id", d.CustomerID, "value", d.Value)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryDeal, audit.ActionCreate, now).
		WithResource("deal", d.ID))
	return d, nil
}

// UpdateDealInput carries input for the update-deal orchestrator.
type UpdateDealInput struct {
	Principal account.Principal
	ID        string
	Fields    DealFields
	OwnerID   string // admins only; empty keeps the current owner
}

// ExecuteUpdateDeal edits a deal. Changing the value keeps the amount paid,
// including payments recorded while the edit was in flight.
// PRE: principal can see the deal; new value >= amount paid
// POST: deal saved; Paid() unchanged
func ExecuteUpdateDeal(ctx context.Context, input UpdateDealInput, deps DealDeps) (deal.Deal, error) {
	p := input.Principal
	d, err := loadVisibleDeal(ctx, deps.DealStore, p, input.ID)
	if err != nil {
		return deal.Deal{}, err
	}
	oldValue := d.Value
	if err := d.SetValue(input.Fields.Value); err != nil {
		return deal.Deal{}, err
	}
	d.Title = strings.TrimSpace(input.Fields.Title)
	d.ExpectedCloseDate = input.Fields.ExpectedCloseDate
	d.Notes = strings.TrimSpace(input.Fields.Notes)
	if p.IsAdmin() && input.OwnerID != "" && input.OwnerID != d.OwnerID {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.OwnerID); err != nil {
			return deal.Deal{}, err
		}
		d.OwnerID = input.OwnerID
	}
	d.UpdatedAt = timeNow()
	if err := d.Validate(); err != nil {
		return deal.Deal{}, err
	}
	if d.Value != oldValue {
		if err := deps.DealStore.ChangeValue(ctx, d.CompanyID, d.ID, oldValue, d.Value, d.UpdatedAt); err != nil {
			return deal.Deal{}, err
		}
	}
	if err := deps.DealStore.Save(ctx, d); err != nil {
		return deal.Deal{}, err
	}
	if d, err = deps.DealStore.GetByID(ctx, d.CompanyID, d.ID); err != nil {
		return deal.Deal{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryDeal, audit.ActionUpdate, d.UpdatedAt).
		WithResource("deal", d.ID))
	return d, nil
}

// ChangeDealStatusInput carries input for the change-deal-status orchestrator.
type ChangeDealStatusInput struct {
	Principal account.Principal
	ID        string
	Status    string
}

// ExecuteChangeDealStatus marks a deal won, lost or open again.
// POST: ClosedAt set when closing, cleared when reopening
func ExecuteChangeDealStatus(ctx context.Context, input ChangeDealStatusInput, deps DealDeps) (deal.Deal, error) {
	d, err := loadVisibleDeal(ctx, deps.DealStore, input.Principal, input.ID)
	if err != nil {
		return deal.Deal{}, err
	}
	from := d.Status
	now := timeNow()
	if err := d.ChangeStatus(strings.ToLower(strings.TrimSpace(input.Status)), now); err != nil {
		return deal.Deal{}, err
	}
	if err := deps.DealStore.Save(ctx, d); err != nil {
		return deal.Deal{}, err
	}
	if d, err = deps.DealStore.GetByID(ctx, d.CompanyID, d.ID); err != nil {
		return deal.Deal{}, err
	}
	slog.Info("deal_status_changed", "deal_id", d.ID, "from", from, "to", d.Status)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryDeal, audit.ActionStatusChange, now).
		WithResource("deal", d.ID).
		WithDescription(from+" -> "+d.Status))
	return d, nil
}

// RecordPaymentInput carries input for the record-payment orchestrator.
type RecordPaymentInput struct {
	Principal account.Principal
	DealID    string
	Amount    int64
	PaidAt    time.Time // defaults to now
	Method    string
	Reference string
}

// RecordPaymentResult carries the stored payment and the deal after it.
type RecordPaymentResult struct {
	Payment deal.Payment
	Deal    deal.Deal
}

// ExecuteRecordPayment records money received against a deal.
// PRE: 0 < amount <= Balance; deal not lost
// POST: payment stored and Balance reduced by amount
// INVARIANT: 0 <= Balance <= Value holds under concurrent payments
func ExecuteRecordPayment(ctx context.Context, input RecordPaymentInput, deps DealDeps) (RecordPaymentResult, error) {
	p := input.Principal
	d, err := loadVisibleDeal(ctx, deps.DealStore, p, input.DealID)
	if err != nil {
		return RecordPaymentResult{}, err
	}
	now := timeNow()
	if err := d.ApplyPayment(input.Amount, now); err != nil {
		return RecordPaymentResult{}, err
	}
	paidAt := input.PaidAt.UTC()
	if input.PaidAt.IsZero() {
		paidAt = now
	}
	pay := deal.Payment{
		ID:         newID(),
		CompanyID:  d.CompanyID,
		DealID:     d.ID,
		Amount:     input.Amount,
		PaidAt:     paidAt,
		Method:     strings.TrimSpace(input.Method),
		Reference:  strings.TrimSpace(input.Reference),
		RecordedBy: p.AccountID,
		CreatedAt:  now,
	}
	if err := deps.DealStore.RecordPayment(ctx, pay); err != nil {
		return RecordPaymentResult{}, err
	}
	slog.Info("payment_recorded", "deal_id", d.ID, "amount", pay.Amount, "balance", d.Balance)
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryDeal, audit.ActionUpdate, now).
		WithResource("deal", d.ID).
		WithDescription(fmt.Sprintf("payment of %d recorded", pay.Amount)))
	return RecordPaymentResult{Payment: pay, Deal: d}, nil
}

// ExecuteDeleteDeal removes a deal and its payments.
// PRE: principal is an admin
func ExecuteDeleteDeal(ctx context.Context, input DeleteInput, deps DealDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	d, err := deps.DealStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	if err := deps.DealStore.Delete(ctx, d.CompanyID, d.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryDeal, audit.ActionDelete, timeNow()).
		WithResource("deal", d.ID).
		WithSeverity(audit.SeverityWarning).
		WithDescription("deal deleted: "+d.Title))
	return nil
}

func loadVisibleDeal(ctx context.Context, store DealStore, p account.Principal, id string) (deal.Deal, error) {
	d, err := store.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return deal.Deal{}, err
	}
	if !p.CanSee(d.OwnerID) {
		return deal.Deal{}, storage.NotFound("deal")
	}
	return d, nil
}
