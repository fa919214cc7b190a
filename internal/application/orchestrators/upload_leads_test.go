package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"crm/internal/adapters/spreadsheet"
	"crm/internal/domain/account"
	"crm/internal/domain/lead"
)

func uploadDeps(t *testing.T, leads *mockLeadStore) UploadLeadsDeps {
	t.Helper()
	f := newLeadFixture(t)
	return UploadLeadsDeps{LeadStore: leads, AccountStore: f.accounts, Audit: f.sink}
}

func csvInput(p account.Principal, body string) UploadLeadsInput {
	return UploadLeadsInput{Principal: p, Reader: strings.NewReader(body), Filename: "leads.csv"}
}

func TestExecuteUploadLeads_MixedRows(t *testing.T) {
	leads := newMockLeadStore(newTestLead("existing", "emp1", lead.StatusNew))
	body := strings.Join([]string{
		"Name,E-mail Address,Email,Phone,Company,Source,Value,Assigned To,Notes",
		"Alice,,alice@prospect.test,,Alpha,Referral,\"1,500\",emp2@acme.test,x",
		",,,,,,,,",
		"Bob,,,555-0100-22,Beta,,,,",
		"Carol,,ALICE@prospect.test,,,,,,",
		"Dave,,existing@prospect.test,,,,,,",
		",,nobody@prospect.test,,,,,,",
		"Erin,,erin@prospect.test,,,,abc,,",
		"Frank,,frank@prospect.test,,,,,ghost@acme.test,",
	}, "\n")

	res, err := ExecuteUploadLeads(context.Background(), csvInput(adminP, body), uploadDeps(t, leads))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := UploadLeadsResult{
		Total:   7,
		Created: 2,
		Skipped: 2,
		Failed:  3,
		Errors: []UploadRowError{
			{Row: 5, Message: lead.ErrDuplicate.Error()},
			{Row: 6, Message: lead.ErrDuplicate.Error()},
			{Row: 7, Message: lead.ErrEmptyName.Error()},
			{Row: 8, Message: "value must be a non-negative amount"},
			{Row: 9, Message: "unknown assignee: ghost@acme.test"},
		},
		Unknown: []string{"E-mail Address", "Notes"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	var alice, bob lead.Lead
	for _, l := range leads.leads {
		switch l.Name {
		case "Alice":
			alice = l
		case "Bob":
			bob = l
		}
	}
	if alice.AssignedTo != "emp2" || alice.Source != lead.SourceReferral || alice.EstimatedValue != 150000 || alice.Organization != "Alpha" {
		t.Errorf("alice = %+v", alice)
	}
	if bob.AssignedTo != "admin1" || bob.Source != lead.SourceUpload || bob.Phone != "555010022" {
		t.Errorf("bob = %+v", bob)
	}
}

func TestExecuteUploadLeads_DryRunWritesNothing(t *testing.T) {
	leads := newMockLeadStore()
	deps := uploadDeps(t, leads)
	in := csvInput(employeeP, "name,email\nAlice,alice@prospect.test\nBob,bob@prospect.test\n")
	in.DryRun = true

	res, err := ExecuteUploadLeads(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 2 || !res.DryRun {
		t.Errorf("result = %+v", res)
	}
	if leads.saves != 0 {
		t.Errorf("dry run saved %d leads", leads.saves)
	}
	if n := len(deps.Audit.(*mockAuditSink).events); n != 0 {
		t.Errorf("dry run recorded %d audit events", n)
	}
}

func TestExecuteUploadLeads_EmployeeAssignmentIgnored(t *testing.T) {
	leads := newMockLeadStore()
	in := csvInput(employeeP, "name,email,assignedto\nAlice,alice@prospect.test,emp2@acme.test\n")
	in.AssignedTo = "emp2"

	res, err := ExecuteUploadLeads(context.Background(), in, uploadDeps(t, leads))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("result = %+v", res)
	}
	for _, l := range leads.leads {
		if l.AssignedTo != "emp1" {
			t.Errorf("employee upload must stay with the employee, got %q", l.AssignedTo)
		}
	}
}

func TestExecuteUploadLeads_DefaultAssignee(t *testing.T) {
	leads := newMockLeadStore()
	in := csvInput(adminP, "name,email\nAlice,alice@prospect.test\n")
	in.AssignedTo = "emp1"
	if _, err := ExecuteUploadLeads(context.Background(), in, uploadDeps(t, leads)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range leads.leads {
		if l.AssignedTo != "emp1" {
			t.Errorf("AssignedTo = %q", l.AssignedTo)
		}
	}

	in = csvInput(adminP, "name,email\nBob,bob@prospect.test\n")
	in.AssignedTo = "emp3"
	if _, err := ExecuteUploadLeads(context.Background(), in, uploadDeps(t, leads)); !errors.Is(err, ErrInvalidAssignee) {
		t.Fatalf("disabled default assignee: expected ErrInvalidAssignee, got %v", err)
	}
}

func TestExecuteUploadLeads_FileErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		maxRows  int
	}{
		{"missing name column", "a.csv", "email,phone\nx@y.test,\n", 0},
		{"missing contact columns", "a.csv", "name,organization\nAlice,Alpha\n", 0},
		{"unsupported format", "a.pdf", "name,email\n", 0},
		{"too many rows", "a.csv", "name,email\nA,a@x.test\nB,b@x.test\nC,c@x.test\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads := newMockLeadStore()
			_, err := ExecuteUploadLeads(context.Background(), UploadLeadsInput{
				Principal: adminP, Reader: strings.NewReader(tt.body), Filename: tt.filename, MaxRows: tt.maxRows,
			}, uploadDeps(t, leads))
			var verr *UploadValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *UploadValidationError, got %v", err)
			}
			if len(leads.leads) != 0 {
				t.Error("nothing should be saved")
			}
		})
	}
}

func TestExecuteUploadLeads_XLSX(t *testing.T) {
	var buf bytes.Buffer
	err := spreadsheet.WriteXLSX(&buf, spreadsheet.Sheet{
		Name:    "Leads",
		Columns: UploadTemplateColumns,
		Rows: [][]string{
			{"Alice", "alice@prospect.test", "", "Alpha", "event", "Demo", "250", ""},
		},
	})
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	leads := newMockLeadStore()
	res, err := ExecuteUploadLeads(context.Background(), UploadLeadsInput{
		Principal: employeeP, Reader: &buf, Filename: "leads.xlsx",
	}, uploadDeps(t, leads))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 1 || len(res.Unknown) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, l := range leads.leads {
		if l.Source != lead.SourceEvent || l.Requirement != "Demo" || l.EstimatedValue != 25000 {
			t.Errorf("lead = %+v", l)
		}
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr error
	}{
		{in: "1,500", want: 150000},
		{in: " 12.34 ", want: 1234},
		{in: "0", want: 0},
		{in: "-1", wantErr: errInvalidAmount},
		{in: "abc", wantErr: errInvalidAmount},
		{in: "NaN", wantErr: errInvalidAmount},
		{in: "92233720368547758.08", wantErr: errAmountTooLarge},
		{in: "1e300", wantErr: errAmountTooLarge},
		{in: "1e400", wantErr: errAmountTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMoney(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseMoney(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseMoney(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestExecuteUploadLeads_ValueTooLarge(t *testing.T) {
	leads := newMockLeadStore()
	body := "Name,Email,Value\nZed,zed@prospect.test,1e300\n"
	res, err := ExecuteUploadLeads(context.Background(), csvInput(adminP, body), uploadDeps(t, leads))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []UploadRowError{{Row: 2, Message: "value too large"}}
	if diff := cmp.Diff(want, res.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if res.Created != 0 {
		t.Errorf("created = %d", res.Created)
	}
}
