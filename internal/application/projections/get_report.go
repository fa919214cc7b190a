package projections

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	amsStore "crm/internal/adapters/storage/ams"
	dealStore "crm/internal/adapters/storage/deal"
	followupStore "crm/internal/adapters/storage/followup"
	leadStore "crm/internal/adapters/storage/lead"
	reportStore "crm/internal/adapters/storage/report"
	"crm/internal/adapters/spreadsheet"
	"crm/internal/application/listutil"
	"crm/internal/domain/report"
)

// ReportQuery selects a report and narrows its rows.
type ReportQuery struct {
	CompanyID  string
	Kind       string
	From       time.Time // zero with To zero means the current calendar month
	To         time.Time // exclusive
	AssignedTo string
	Status     string
}

// GetReportDeps holds dependencies for the report projection.
type GetReportDeps struct {
	LeadStore     LeadStore
	FollowUpStore FollowUpStore
	CustomerStore CustomerStore
	DealStore     DealStore
	VisitStore    VisitStore
	AccountStore  AccountStore
	ReportStore   ReportStore
}

// QueryGetReport builds a tabular admin report.
// PRE: caller is an admin (checked by the handler)
// POST: Summary counts every row by status and by employee name
func QueryGetReport(ctx context.Context, query ReportQuery, deps GetReportDeps) (report.Report, error) {
	kind := strings.ToLower(query.Kind)
	if !report.IsValidKind(kind) {
		return report.Report{}, report.ErrInvalidKind
	}
	from, to := query.From.UTC(), query.To.UTC()
	if query.From.IsZero() && query.To.IsZero() {
		w := listutil.MonthWindow(timeNow())
		from, to = w.From, w.To
	} else if query.From.IsZero() || query.To.IsZero() {
		return report.Report{}, fmt.Errorf("%w: both from and to are required", report.ErrEmptyWindow)
	}
	if err := report.ValidateWindow(from, to); err != nil {
		return report.Report{}, err
	}

	names, err := accountNames(ctx, deps.AccountStore, query.CompanyID)
	if err != nil {
		return report.Report{}, err
	}
	b := &reportBuilder{
		r:     report.Report{Kind: kind, From: from, To: to, Rows: [][]string{}},
		names: names,
	}
	b.r.Summary = report.Summary{ByStatus: map[string]int{}, ByEmployee: map[string]int{}}
	q := query
	q.From, q.To = from, to

	switch kind {
	case report.KindLeads:
		err = b.leads(ctx, q, deps)
	case report.KindFollowUps:
		err = b.followUps(ctx, q, deps)
	case report.KindDeals:
		err = b.deals(ctx, q, deps)
	case report.KindPayments:
		err = b.payments(ctx, q, deps)
	case report.KindVisits:
		err = b.visits(ctx, q, deps)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("%s report: %w", kind, err)
	}
	return b.r, nil
}

type reportBuilder struct {
	r     report.Report
	names map[string]string
}

func (b *reportBuilder) add(status, employeeID string, amount int64, row ...string) {
	b.r.Rows = append(b.r.Rows, row)
	b.r.Summary.Total++
	b.r.Summary.Amount += amount
	b.r.Summary.ByStatus[status]++
	b.r.Summary.ByEmployee[b.name(employeeID)]++
}

func (b *reportBuilder) name(id string) string {
	if n, ok := b.names[id]; ok {
		return n
	}
	if id == "" {
		return "Unassigned"
	}
	return id
}

func (b *reportBuilder) leads(ctx context.Context, q ReportQuery, deps GetReportDeps) error {
	b.r.Columns = []string{"Name", "Email", "Phone", "Organization", "Source", "Status", "Estimated Value", "Assigned To", "Created At", "Converted At", "Rejection Reason"}
	leads, _, err := deps.LeadStore.List(ctx, leadStore.ListFilter{
		CompanyID: q.CompanyID, AssignedTo: q.AssignedTo, Status: strings.ToUpper(q.Status),
		From: q.From, To: q.To, Sort: "created_at", Dir: "asc",
	})
	if err != nil {
		return err
	}
	for _, l := range leads {
		b.add(l.Status, l.AssignedTo, l.EstimatedValue,
			l.Name, l.Email, l.Phone, l.Organization, l.Source, l.Status, formatMoney(l.EstimatedValue),
			b.name(l.AssignedTo), formatTime(l.CreatedAt), formatTime(l.ConvertedAt), l.RejectionReason)
	}
	return nil
}

func (b *reportBuilder) followUps(ctx context.Context, q ReportQuery, deps GetReportDeps) error {
	b.r.Columns = []string{"Lead", "Scheduled At", "Mode", "Status", "Assigned To", "Outcome", "Completed At", "Note"}
	fus, _, err := deps.FollowUpStore.List(ctx, followupStore.ListFilter{
		CompanyID: q.CompanyID, AssignedTo: q.AssignedTo, Status: strings.ToLower(q.Status),
		From: q.From, To: q.To, Sort: "scheduled_at", Dir: "asc",
	})
	if err != nil {
		return err
	}
	leadNames := map[string]string{}
	for _, f := range fus {
		name, ok := leadNames[f.LeadID]
		if !ok {
			name = f.LeadID
			if l, err := deps.LeadStore.GetByID(ctx, q.CompanyID, f.LeadID); err == nil {
				name = l.Name
			}
			leadNames[f.LeadID] = name
		}
		b.add(f.Status, f.AssignedTo, 0,
			name, formatTime(f.ScheduledAt), f.Mode, f.Status, b.name(f.AssignedTo), f.Outcome, formatTime(f.CompletedAt), f.Note)
	}
	return nil
}

func (b *reportBuilder) deals(ctx context.Context, q ReportQuery, deps GetReportDeps) error {
	b.r.Columns = []string{"Title", "Customer", "Value", "Paid", "Balance", "Status", "Owner", "Expected Close", "Created At", "Closed At"}
	deals, _, err := deps.DealStore.List(ctx, dealStore.ListFilter{
		CompanyID: q.CompanyID, OwnerID: q.AssignedTo, Status: strings.ToLower(q.Status),
		From: q.From, To: q.To, Sort: "created_at", Dir: "asc",
	})
	if err != nil {
		return err
	}
	customers := customerNames{store: deps.CustomerStore, companyID: q.CompanyID}
	for _, d := range deals {
		b.add(d.Status, d.OwnerID, d.Value,
			d.Title, customers.get(ctx, d.CustomerID), formatMoney(d.Value), formatMoney(d.Paid()), formatMoney(d.Balance),
			d.Status, b.name(d.OwnerID), formatDate(d.ExpectedCloseDate), formatTime(d.CreatedAt), formatTime(d.ClosedAt))
	}
	return nil
}

func (b *reportBuilder) payments(ctx context.Context, q ReportQuery, deps GetReportDeps) error {
	b.r.Columns = []string{"Paid At", "Deal", "Amount", "Method", "Reference", "Recorded By"}
	payments, err := deps.ReportStore.Payments(ctx, reportStore.PaymentFilter{
		CompanyID: q.CompanyID, RecordedBy: q.AssignedTo, From: q.From, To: q.To,
	})
	if err != nil {
		return err
	}
	titles := map[string]string{}
	for _, p := range payments {
		method := p.Method
		if method == "" {
			method = "unspecified"
		}
		if q.Status != "" && !strings.EqualFold(q.Status, method) {
			continue
		}
		title, ok := titles[p.DealID]
		if !ok {
			title = p.DealID
			if d, err := deps.DealStore.GetByID(ctx, q.CompanyID, p.DealID); err == nil {
				title = d.Title
			}
			titles[p.DealID] = title
		}
		b.add(method, p.RecordedBy, p.Amount,
			formatTime(p.PaidAt), title, formatMoney(p.Amount), p.Method, p.Reference, b.name(p.RecordedBy))
	}
	return nil
}

func (b *reportBuilder) visits(ctx context.Context, q ReportQuery, deps GetReportDeps) error {
	b.r.Columns = []string{"Customer", "Service Type", "Frequency", "Scheduled For", "Status", "Assigned To", "Completed At", "Remarks"}
	visits, _, err := deps.VisitStore.List(ctx, amsStore.ListFilter{
		CompanyID: q.CompanyID, AssignedTo: q.AssignedTo, Status: strings.ToLower(q.Status),
		From: q.From, To: q.To, Sort: "scheduled_for", Dir: "asc",
	})
	if err != nil {
		return err
	}
	customers := customerNames{store: deps.CustomerStore, companyID: q.CompanyID}
	for _, v := range visits {
		b.add(v.Status, v.AssignedTo, 0,
			customers.get(ctx, v.CustomerID), v.ServiceType, v.Frequency, formatDate(v.ScheduledFor), v.Status,
			b.name(v.AssignedTo), formatTime(v.CompletedAt), v.Remarks)
	}
	return nil
}

// customerNames memoises customer lookups while a report is built.
type customerNames struct {
	store     CustomerStore
	companyID string
	seen      map[string]string
}

func (c *customerNames) get(ctx context.Context, id string) string {
	if c.seen == nil {
		c.seen = map[string]string{}
	}
	if n, ok := c.seen[id]; ok {
		return n
	}
	n := id
	if cu, err := c.store.GetByID(ctx, c.companyID, id); err == nil {
		n = cu.Name
	}
	c.seen[id] = n
	return n
}

func accountNames(ctx context.Context, store AccountStore, companyID string) (map[string]string, error) {
	accts, err := store.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make(map[string]string, len(accts))
	for _, a := range accts {
		out[a.ID] = a.Name
	}
	return out, nil
}

// ReportSheets lays a report out as a data sheet followed by a summary sheet.
func ReportSheets(r report.Report) []spreadsheet.Sheet {
	title := strings.ToUpper(r.Kind[:1]) + r.Kind[1:]
	summary := [][]string{
		{"Window", r.From.Format("2006-01-02") + " to " + r.To.Format("2006-01-02")},
		{"Total", strconv.Itoa(r.Summary.Total)},
	}
	if r.Summary.Amount != 0 {
		summary = append(summary, []string{"Amount", formatMoney(r.Summary.Amount)})
	}
	for _, k := range sortedKeys(r.Summary.ByStatus) {
		summary = append(summary, []string{"Status: " + k, strconv.Itoa(r.Summary.ByStatus[k])})
	}
	for _, k := range sortedKeys(r.Summary.ByEmployee) {
		summary = append(summary, []string{"Employee: " + k, strconv.Itoa(r.Summary.ByEmployee[k])})
	}
	return []spreadsheet.Sheet{
		{Name: title, Columns: r.Columns, Rows: r.Rows},
		{Name: "Summary", Columns: []string{"Metric", "Value"}, Rows: summary},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
