package orchestrators

import (
	"context"
	"fmt"

	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/customer"
)

// CustomerStore defines the customer store interface needed by the customer orchestrators.
type CustomerStore interface {
	GetByID(ctx context.Context, companyID, id string) (customer.Customer, error)
	Save(ctx context.Context, c customer.Customer) error
	Delete(ctx context.Context, companyID, id string) error
}

// CustomerRecordCounter counts the records referencing a customer in one table.
type CustomerRecordCounter interface {
	CountByCustomer(ctx context.Context, companyID, customerID string) (int, error)
}

// CustomerDeps holds dependencies for the customer orchestrators.
type CustomerDeps struct {
	CustomerStore CustomerStore
	AccountStore  AccountLookup
	// Dependents are consulted before a delete; every counter must report zero.
	Dependents []CustomerRecordCounter
	Audit      AuditSink
}

// CustomerFields carries the editable customer fields.
type CustomerFields struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Address      string
	TaxID        string
	Notes        string
}

func (f CustomerFields) apply(c *customer.Customer) {
	c.Name = f.Name
	c.Email = f.Email
	c.Phone = f.Phone
	c.Organization = f.Organization
	c.Address = f.Address
	c.TaxID = f.TaxID
	c.Notes = f.Notes
	c.Normalize()
}

// CreateCustomerInput carries input for the create-customer orchestrator.
type CreateCustomerInput struct {
	Principal      account.Principal
	Fields         CustomerFields
	AccountManager string // admins only; defaults to the creator
}

// ExecuteCreateCustomer records a customer directly, without a lead.
// POST: customer saved with an account manager from the company
func ExecuteCreateCustomer(ctx context.Context, input CreateCustomerInput, deps CustomerDeps) (customer.Customer, error) {
	p := input.Principal
	now := timeNow()
	c := customer.Customer{
		ID:             newID(),
		CompanyID:      p.CompanyID,
		AccountManager: p.AccountID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	input.Fields.apply(&c)
	if p.IsAdmin() && input.AccountManager != "" && input.AccountManager != p.AccountID {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AccountManager); err != nil {
			return customer.Customer{}, err
		}
		c.AccountManager = input.AccountManager
	}
	if err := c.Validate(); err != nil {
		return customer.Customer{}, err
	}
	if err := deps.CustomerStore.Save(ctx, c); err != nil {
		return customer.Customer{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryCustomer, audit.ActionCreate, now).
		WithResource("customer", c.ID))
	return c, nil
}

// UpdateCustomerInput carries input for the update-customer orchestrator.
type UpdateCustomerInput struct {
	Principal      account.Principal
	ID             string
	Fields         CustomerFields
	AccountManager string // admins only; empty keeps the current manager
}

// ExecuteUpdateCustomer edits a customer.
// PRE: principal is an admin or the customer's account manager
func ExecuteUpdateCustomer(ctx context.Context, input UpdateCustomerInput, deps CustomerDeps) (customer.Customer, error) {
	p := input.Principal
	c, err := deps.CustomerStore.GetByID(ctx, p.CompanyID, input.ID)
	if err != nil {
		return customer.Customer{}, err
	}
	if !p.CanSee(c.AccountManager) {
		return customer.Customer{}, ErrForbidden
	}
	input.Fields.apply(&c)
	if p.IsAdmin() && input.AccountManager != "" && input.AccountManager != c.AccountManager {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AccountManager); err != nil {
			return customer.Customer{}, err
		}
		c.AccountManager = input.AccountManager
	}
	c.UpdatedAt = timeNow()
	if err := c.Validate(); err != nil {
		return customer.Customer{}, err
	}
	if err := deps.CustomerStore.Save(ctx, c); err != nil {
		return customer.Customer{}, err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryCustomer, audit.ActionUpdate, c.UpdatedAt).
		WithResource("customer", c.ID))
	return c, nil
}

// ExecuteDeleteCustomer removes a customer with no deals or visits.
// PRE: principal is an admin
// POST: customer deleted, or customer.ErrHasRecords
func ExecuteDeleteCustomer(ctx context.Context, input DeleteInput, deps CustomerDeps) error {
	if err := requireAdmin(input.Principal); err != nil {
		return err
	}
	c, err := deps.CustomerStore.GetByID(ctx, input.Principal.CompanyID, input.ID)
	if err != nil {
		return err
	}
	for _, d := range deps.Dependents {
		n, err := d.CountByCustomer(ctx, c.CompanyID, c.ID)
		if err != nil {
			return fmt.Errorf("count customer records: %w", err)
		}
		if n > 0 {
			return customer.ErrHasRecords
		}
	}
	if err := deps.CustomerStore.Delete(ctx, c.CompanyID, c.ID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(input.Principal), audit.CategoryCustomer, audit.ActionDelete, timeNow()).
		WithResource("customer", c.ID).
		WithSeverity(audit.SeverityWarning).
		WithDescription("customer deleted: "+c.Name))
	return nil
}
