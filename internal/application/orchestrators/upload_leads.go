package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"crm/internal/adapters/spreadsheet"
	"crm/internal/adapters/storage"
	leadStore "crm/internal/adapters/storage/lead"
	"crm/internal/domain/account"
	"crm/internal/domain/audit"
	"crm/internal/domain/lead"
)

// Upload limits applied when the input leaves them unset.
const (
	DefaultUploadMaxBytes = 5 << 20
	DefaultUploadMaxRows  = 5000
)

// Normalized upload column names.
const (
	colName         = "name"
	colEmail        = "email"
	colPhone        = "phone"
	colOrganization = "organization"
	colCompany      = "company"
	colSource       = "source"
	colRequirement  = "requirement"
	colValue        = "value"
	colAssignedTo   = "assignedto"
)

// UploadTemplateColumns is the header row of the downloadable upload template.
var UploadTemplateColumns = []string{"Name", "Email", "Phone", "Organization", "Source", "Requirement", "Value", "AssignedTo"}

var knownUploadColumns = map[string]bool{
	colName: true, colEmail: true, colPhone: true, colOrganization: true, colCompany: true,
	colSource: true, colRequirement: true, colValue: true, colAssignedTo: true,
}

// UploadLeadsInput carries the uploaded file and options.
// PRE: Reader holds a spreadsheet whose first row is a header.
type UploadLeadsInput struct {
	Principal  account.Principal
	Reader     io.Reader
	Filename   string
	DryRun     bool
	AssignedTo string // default assignee for rows without ASSIGNEDTO (admins only)
	MaxBytes   int64
	MaxRows    int
}

// UploadLeadsResult holds aggregate counts and per-row errors from an upload.
type UploadLeadsResult struct {
	Total   int              `json:"total"`
	Created int              `json:"created"`
	Skipped int              `json:"skipped"` // duplicates
	Failed  int              `json:"failed"`
	Errors  []UploadRowError `json:"errors"`
	DryRun  bool             `json:"dry_run"`
	Unknown []string         `json:"unknown_columns"`
}

// UploadRowError describes why one spreadsheet row was not imported.
// Row is the 1-based spreadsheet row; the header is row 1.
type UploadRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// UploadValidationError is returned when the file itself cannot be imported
// (unreadable, missing required columns, too many rows).
type UploadValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *UploadValidationError) Error() string {
	return e.Message
}

// LeadStoreForUpload defines the store interface needed by UploadLeads.
type LeadStoreForUpload interface {
	Save(ctx context.Context, l lead.Lead) error
	ListContacts(ctx context.Context, companyID string) ([]leadStore.Contact, error)
}

// AccountStoreForUpload resolves assignees by email.
type AccountStoreForUpload interface {
	GetByID(ctx context.Context, companyID, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// UploadLeadsDeps holds external dependencies for the upload orchestrator.
type UploadLeadsDeps struct {
	LeadStore    LeadStoreForUpload
	AccountStore AccountStoreForUpload
	Audit        AuditSink
}

// ExecuteUploadLeads parses a spreadsheet and creates a lead per valid row.
// PRE: Input.Reader contains a header with NAME and at least one of EMAIL or PHONE.
// POST: every non-blank row is created, skipped as a duplicate or reported as failed;
//
//	Total == Created + Skipped + Failed.
//
// INVARIANT: When DryRun=true no writes occur.
func ExecuteUploadLeads(ctx context.Context, input UploadLeadsInput, deps UploadLeadsDeps) (UploadLeadsResult, error) {
	maxBytes, maxRows := input.MaxBytes, input.MaxRows
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	if maxRows <= 0 {
		maxRows = DefaultUploadMaxRows
	}

	rows, err := spreadsheet.ReadRows(input.Reader, input.Filename, maxBytes)
	if err != nil {
		return UploadLeadsResult{}, &UploadValidationError{Message: "could not read file: " + err.Error()}
	}
	header := rows[0]
	colIdx := spreadsheet.HeaderIndex(header)
	if _, ok := colIdx[colName]; !ok {
		return UploadLeadsResult{}, &UploadValidationError{Message: "file missing required column: NAME"}
	}
	_, hasEmail := colIdx[colEmail]
	_, hasPhone := colIdx[colPhone]
	if !hasEmail && !hasPhone {
		return UploadLeadsResult{}, &UploadValidationError{Message: "file needs an EMAIL or PHONE column"}
	}
	if len(rows)-1 > maxRows {
		return UploadLeadsResult{}, &UploadValidationError{Message: fmt.Sprintf("file has %d rows; the limit is %d", len(rows)-1, maxRows)}
	}
	if _, ok := colIdx[colOrganization]; !ok {
		if i, ok := colIdx[colCompany]; ok {
			colIdx[colOrganization] = i
		}
	}

	var unknown []string
	for _, h := range header {
		if key := spreadsheet.NormalizeHeader(h); key != "" && !knownUploadColumns[key] {
			unknown = append(unknown, h)
		}
	}

	p := input.Principal
	defaultAssignee := p.AccountID
	if p.IsAdmin() && input.AssignedTo != "" {
		if err := checkAssignee(ctx, deps.AccountStore, p.CompanyID, input.AssignedTo); err != nil {
			return UploadLeadsResult{}, err
		}
		defaultAssignee = input.AssignedTo
	}

	seen, err := loadContacts(ctx, deps.LeadStore, p.CompanyID)
	if err != nil {
		return UploadLeadsResult{}, err
	}
	assignees := newAssigneeResolver(deps.AccountStore, p.CompanyID)

	get := func(row []string, col string) string {
		i, ok := colIdx[col]
		if !ok {
			return ""
		}
		return spreadsheet.Cell(row, i)
	}

	result := UploadLeadsResult{DryRun: input.DryRun, Unknown: unknown, Errors: []UploadRowError{}}
	now := timeNow()
	for i, row := range rows[1:] {
		rowNum := i + 2
		if spreadsheet.IsBlank(row) {
			continue
		}
		result.Total++
		fail := func(msg string) {
			result.Failed++
			result.Errors = append(result.Errors, UploadRowError{Row: rowNum, Message: msg})
		}

		l := lead.Lead{
			ID:           newID(),
			CompanyID:    p.CompanyID,
			Name:         get(row, colName),
			Email:        get(row, colEmail),
			Phone:        get(row, colPhone),
			Organization: get(row, colOrganization),
			Source:       strings.ToLower(get(row, colSource)),
			Requirement:  get(row, colRequirement),
			Status:       lead.StatusNew,
			AssignedTo:   defaultAssignee,
			CreatedBy:    p.AccountID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if !lead.IsValidSource(l.Source) {
			l.Source = lead.SourceUpload
		}
		if raw := get(row, colValue); raw != "" {
			v, err := parseMoney(raw)
			if errors.Is(err, errAmountTooLarge) {
				fail("value too large")
				continue
			}
			if err != nil {
				fail("value must be a non-negative amount")
				continue
			}
			l.EstimatedValue = v
		}
		if email := get(row, colAssignedTo); email != "" && p.IsAdmin() {
			id, err := assignees.resolve(ctx, email)
			if err != nil {
				fail("unknown assignee: " + email)
				continue
			}
			l.AssignedTo = id
		}

		l.Normalize()
		if err := l.Validate(); err != nil {
			fail(err.Error())
			continue
		}
		if seen.has(l.Email, l.Phone) {
			result.Skipped++
			result.Errors = append(result.Errors, UploadRowError{Row: rowNum, Message: lead.ErrDuplicate.Error()})
			continue
		}
		seen.add(l.Email, l.Phone)

		if input.DryRun {
			result.Created++
			continue
		}
		if err := deps.LeadStore.Save(ctx, l); err != nil {
			slog.Error("leads_upload_save_failed", "row", rowNum, "error", err)
			fail("save failed (see server log)")
			continue
		}
		result.Created++
	}

	slog.Info("leads_upload",
		"account_id", p.AccountID,
		"company_id", p.CompanyID,
		"file", input.Filename,
		"dry_run", input.DryRun,
		"total", result.Total,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	if !input.DryRun {
		recordAudit(ctx, deps.Audit, audit.NewEvent(actorOf(p), audit.CategoryLead, audit.ActionUpload, now).
			WithDescription(fmt.Sprintf("%s: %d created, %d skipped, %d failed", input.Filename, result.Created, result.Skipped, result.Failed)))
	}
	return result, nil
}

var (
	errInvalidAmount  = errors.New("invalid amount")
	errAmountTooLarge = errors.New("amount too large")
)

// parseMoney parses a non-negative decimal amount into minor units,
// tolerating thousands separators.
func parseMoney(s string) (int64, error) {
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, errInvalidAmount
	}
	if math.IsNaN(f) || f < 0 {
		return 0, errInvalidAmount
	}
	cents := math.Round(f * 100)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if math.IsInf(cents, 0) || cents >= float64(math.MaxInt64) {
		return 0, errAmountTooLarge
	}
	return int64(cents), nil
}

// contactSet tracks emails and phones already in use.
type contactSet struct {
	emails map[string]bool
	phones map[string]bool
}

func loadContacts(ctx context.Context, store LeadStoreForUpload, companyID string) (*contactSet, error) {
	contacts, err := store.ListContacts(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load existing contacts: %w", err)
	}
	s := &contactSet{emails: make(map[string]bool), phones: make(map[string]bool)}
	for _, c := range contacts {
		s.add(c.Email, c.Phone)
	}
	return s, nil
}

func (s *contactSet) has(email, phone string) bool {
	return (email != "" && s.emails[email]) || (phone != "" && s.phones[phone])
}

func (s *contactSet) add(email, phone string) {
	if email != "" {
		s.emails[email] = true
	}
	if phone != "" {
		s.phones[phone] = true
	}
}

// assigneeResolver caches ASSIGNEDTO email lookups for one upload.
type assigneeResolver struct {
	store     AccountStoreForUpload
	companyID string
	cache     map[string]string
}

func newAssigneeResolver(store AccountStoreForUpload, companyID string) *assigneeResolver {
	return &assigneeResolver{store: store, companyID: companyID, cache: make(map[string]string)}
}

// resolve returns the account ID for an email of an enabled account in the company.
func (r *assigneeResolver) resolve(ctx context.Context, email string) (string, error) {
	email = account.NormalizeEmail(email)
	if id, ok := r.cache[email]; ok {
		if id == "" {
			return "", ErrInvalidAssignee
		}
		return id, nil
	}
	a, err := r.store.GetByEmail(ctx, email)
	if err != nil || a.CompanyID != r.companyID || a.Disabled {
		r.cache[email] = ""
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		return "", ErrInvalidAssignee
	}
	r.cache[email] = a.ID
	return a.ID, nil
}
