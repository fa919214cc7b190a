package orchestrators

import (
	"context"
	"errors"
	"testing"

	"crm/internal/adapters/storage"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
)

type leadFixture struct {
	leads     *mockLeadStore
	accounts  *mockAccountStore
	customers *mockCustomerStore
	followups *mockFollowUpStore
	sink      *mockAuditSink
}

func newLeadFixture(t *testing.T, leads ...lead.Lead) leadFixture {
	t.Helper()
	disabled := newTestAccount(t, "emp3", "co1", "gone@acme.test", account.RoleEmployee, goodPassword)
	disabled.Disabled = true
	return leadFixture{
		leads: newMockLeadStore(leads...),
		accounts: newMockAccountStore(
			newTestAccount(t, "admin1", "co1", "admin@acme.test", account.RoleAdmin, goodPassword),
			newTestAccount(t, "emp1", "co1", "emp@acme.test", account.RoleEmployee, goodPassword),
			newTestAccount(t, "emp2", "co1", "emp2@acme.test", account.RoleEmployee, goodPassword),
			disabled,
			newTestAccount(t, "admin9", "co2", "boss@other.test", account.RoleAdmin, goodPassword),
		),
		customers: newMockCustomerStore(),
		followups: newMockFollowUpStore(),
		sink:      &mockAuditSink{},
	}
}

func (f leadFixture) deps() LeadDeps {
	return LeadDeps{
		LeadStore:     f.leads,
		AccountStore:  f.accounts,
		CustomerStore: f.customers,
		FollowUpStore: f.followups,
		Audit:         f.sink,
	}
}

func TestExecuteCreateLead(t *testing.T) {
	tests := []struct {
		name         string
		principal    account.Principal
		assignedTo   string
		fields       LeadFields
		wantErr      error
		wantAssignee string
	}{
		{
			name:         "employee owns the lead",
			principal:    employeeP,
			assignedTo:   "emp2",
			fields:       LeadFields{Name: "Bob", Email: "Bob@Prospect.test"},
			wantAssignee: "emp1",
		},
		{
			name:         "admin assigns",
			principal:    adminP,
			assignedTo:   "emp2",
			fields:       LeadFields{Name: "Bob", Phone: "+1 (555) 010-0000"},
			wantAssignee: "emp2",
		},
		{
			name:       "disabled assignee",
			principal:  adminP,
			assignedTo: "emp3",
			fields:     LeadFields{Name: "Bob", Email: "bob@prospect.test"},
			wantErr:    ErrInvalidAssignee,
		},
		{
			name:       "assignee of another company",
			principal:  adminP,
			assignedTo: "admin9",
			fields:     LeadFields{Name: "Bob", Email: "bob@prospect.test"},
			wantErr:    ErrInvalidAssignee,
		},
		{
			name:      "duplicate email",
			principal: employeeP,
			fields:    LeadFields{Name: "Dup", Email: "EXISTING@prospect.test"},
			wantErr:   lead.ErrDuplicate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := newTestLead("existing", "emp2", lead.StatusNew)
			f := newLeadFixture(t, existing)
			l, err := ExecuteCreateLead(context.Background(), CreateLeadInput{
				Principal: tt.principal, Fields: tt.fields, AssignedTo: tt.assignedTo,
			}, f.deps())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if l.AssignedTo != tt.wantAssignee {
				t.Errorf("AssignedTo = %q, want %q", l.AssignedTo, tt.wantAssignee)
			}
			if l.Status != lead.StatusNew || l.Source != lead.SourceOther || l.CreatedBy != tt.principal.AccountID {
				t.Errorf("lead = %+v", l)
			}
			if _, ok := f.leads.leads[l.ID]; !ok {
				t.Error("lead not saved")
			}
		})
	}
}

func TestExecuteCreateLead_Validation(t *testing.T) {
	f := newLeadFixture(t)
	_, err := ExecuteCreateLead(context.Background(), CreateLeadInput{
		Principal: employeeP, Fields: LeadFields{Name: "No Contact"},
	}, f.deps())
	if err == nil {
		t.Fatal("expected an error for a lead with neither email nor phone")
	}
	if len(f.leads.leads) != 0 {
		t.Error("invalid lead must not be saved")
	}
}

func TestExecuteUpdateLead_Visibility(t *testing.T) {
	f := newLeadFixture(t, newTestLead("l1", "emp2", lead.StatusNew))
	_, err := ExecuteUpdateLead(context.Background(), UpdateLeadInput{
		Principal: employeeP, ID: "l1", Fields: LeadFields{Name: "Renamed", Email: "l1@prospect.test"},
	}, f.deps())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("another employee's lead should be not found, got %v", err)
	}

	l, err := ExecuteUpdateLead(context.Background(), UpdateLeadInput{
		Principal: otherEmpP, ID: "l1", Fields: LeadFields{Name: "Renamed", Email: "l1@prospect.test", Source: lead.SourceReferral},
	}, f.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Name != "Renamed" || l.Source != lead.SourceReferral || l.AssignedTo != "emp2" {
		t.Errorf("lead = %+v", l)
	}
}

func TestExecuteUpdateLead_OmittedSourceKept(t *testing.T) {
	f := newLeadFixture(t, newTestLead("l1", "emp1", lead.StatusNew))
	l, err := ExecuteUpdateLead(context.Background(), UpdateLeadInput{
		Principal: employeeP, ID: "l1", Fields: LeadFields{Name: "Renamed", Email: "l1@prospect.test"},
	}, f.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Source != lead.SourceWebsite {
		t.Errorf("Source = %q, want the stored %q", l.Source, lead.SourceWebsite)
	}

	created, err := ExecuteCreateLead(context.Background(), CreateLeadInput{
		Principal: employeeP, Fields: LeadFields{Name: "Fresh", Email: "fresh@prospect.test"},
	}, f.deps())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Source != lead.SourceOther {
		t.Errorf("new lead Source = %q, want %q", created.Source, lead.SourceOther)
	}
}

func TestExecuteAssignLead(t *testing.T) {
	f := newLeadFixture(t, newTestLead("l1", "emp1", lead.StatusNew))
	in := AssignLeadInput{Principal: employeeP, ID: "l1", AssignedTo: "emp2"}
	if _, err := ExecuteAssignLead(context.Background(), in, f.deps()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	in.Principal = adminP
	l, err := ExecuteAssignLead(context.Background(), in, f.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.AssignedTo != "emp2" {
		t.Errorf("AssignedTo = %q", l.AssignedTo)
	}
	if got := f.sink.actions(); len(got) != 1 || got[0] != audit.ActionAssign {
		t.Errorf("audit = %v", got)
	}
}

func TestExecuteChangeLeadStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		reason  string
		wantErr error
	}{
		{"new to in progress", lead.StatusNew, "in_progress", "", nil},
		{"reject needs reason", lead.StatusInProgress, lead.StatusRejected, " ", lead.ErrReasonRequired},
		{"reject", lead.StatusInProgress, lead.StatusRejected, "budget", nil},
		{"reopen rejected", lead.StatusRejected, lead.StatusInProgress, "", nil},
		{"customer is terminal", lead.StatusCustomer, lead.StatusInProgress, "", lead.ErrInvalidTransition},
		{"rejected cannot convert", lead.StatusRejected, lead.StatusCustomer, "", lead.ErrInvalidTransition},
		{"unknown status", lead.StatusNew, "WON", "", lead.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLeadFixture(t, newTestLead("l1", "emp1", tt.from))
			res, err := ExecuteChangeLeadStatus(context.Background(), ChangeLeadStatusInput{
				Principal: employeeP, ID: "l1", Status: tt.to, Reason: tt.reason,
			}, f.deps())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if f.leads.leads["l1"].Status != tt.from {
					t.Error("failed transition must not change the stored status")
				}
				return
			}
			if res.Customer != nil {
				t.Error("no customer expected")
			}
			if f.leads.leads["l1"].Status != res.Lead.Status {
				t.Error("status not saved")
			}
		})
	}
}

func TestExecuteChangeLeadStatus_ConvertCreatesCustomer(t *testing.T) {
	l := newTestLead("l1", "emp1", lead.StatusInProgress)
	l.Organization = "Prospect Inc"
	f := newLeadFixture(t, l)

	res, err := ExecuteChangeLeadStatus(context.Background(), ChangeLeadStatusInput{
		Principal: employeeP, ID: "l1", Status: lead.StatusCustomer,
	}, f.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Customer == nil {
		t.Fatal("expected a customer")
	}
	c := f.customers.items[res.Customer.ID]
	if c.LeadID != "l1" || c.AccountManager != "emp1" || c.Organization != "Prospect Inc" {
		t.Errorf("customer = %+v", c)
	}
	stored := f.leads.leads["l1"]
	if stored.CustomerID != c.ID || !stored.ConvertedAt.Equal(fixedTime) {
		t.Errorf("lead = %+v", stored)
	}
}

func TestExecuteChangeLeadStatus_ConvertRollsBackCustomer(t *testing.T) {
	f := newLeadFixture(t, newTestLead("l1", "emp1", lead.StatusNew))
	f.leads.saveErr = errStoreDown

	_, err := ExecuteChangeLeadStatus(context.Background(), ChangeLeadStatusInput{
		Principal: adminP, ID: "l1", Status: lead.StatusCustomer,
	}, f.deps())
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(f.customers.items) != 0 || len(f.customers.deleted) != 1 {
		t.Errorf("customer should be rolled back: %d left, %d deleted", len(f.customers.items), len(f.customers.deleted))
	}
}

func TestExecuteDeleteLead_CascadesFollowUps(t *testing.T) {
	f := newLeadFixture(t, newTestLead("l1", "emp1", lead.StatusNew))
	f.followups.items["f1"] = followup.FollowUp{ID: "f1", CompanyID: "co1", LeadID: "l1"}
	f.followups.items["f2"] = followup.FollowUp{ID: "f2", CompanyID: "co1", LeadID: "other"}

	if err := ExecuteDeleteLead(context.Background(), DeleteInput{Principal: employeeP, ID: "l1"}, f.deps()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := ExecuteDeleteLead(context.Background(), DeleteInput{Principal: foreignP, ID: "l1"}, f.deps()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("other tenant: expected not found, got %v", err)
	}
	if err := ExecuteDeleteLead(context.Background(), DeleteInput{Principal: adminP, ID: "l1"}, f.deps()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.leads.leads["l1"]; ok {
		t.Error("lead should be deleted")
	}
	if _, ok := f.followups.items["f1"]; ok {
		t.Error("lead's follow-up should be deleted")
	}
	if _, ok := f.followups.items["f2"]; !ok {
		t.Error("unrelated follow-up must survive")
	}
}
