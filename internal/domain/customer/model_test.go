package customer_test

import (
	"errors"
	"testing"
	"time"

	"crm/internal/domain/customer"
	"crm/internal/domain/lead"
)

func TestCustomer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       customer.Customer
		wantErr error
	}{
		{name: "name only", c: customer.Customer{Name: "Initech"}},
		{name: "missing name", c: customer.Customer{Email: "x@y.test"}, wantErr: customer.ErrEmptyName},
		{name: "bad email", c: customer.Customer{Name: "Initech", Email: "nope"}, wantErr: lead.ErrInvalidEmail},
		{name: "bad phone", c: customer.Customer{Name: "Initech", Phone: "12"}, wantErr: lead.ErrInvalidPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.c
			c.Normalize()
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromLead(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	l := lead.Lead{
		ID: "l1", CompanyID: "c1", Name: "Globex", Email: "buy@globex.test",
		Phone: "+6421555010", Organization: "Globex Ltd", Requirement: "20 seats",
		AssignedTo: "e1", CreatedBy: "a1",
	}
	c := customer.FromLead("cu1", l, now)
	if c.LeadID != "l1" || c.CompanyID != "c1" || c.AccountManager != "e1" {
		t.Errorf("customer = %+v", c)
	}
	if c.Notes != "20 seats" {
		t.Errorf("Notes = %q", c.Notes)
	}

	l.AssignedTo = ""
	if got := customer.FromLead("cu2", l, now).AccountManager; got != "a1" {
		t.Errorf("unassigned lead manager = %q, want creator", got)
	}
}
