package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	emailAdapter "crm/internal/adapters/email"
	"crm/internal/adapters/storage"
	accountStore "crm/internal/adapters/storage/account"
	dealStore "crm/internal/adapters/storage/deal"
	leadStore "crm/internal/adapters/storage/lead"
	otpStore "crm/internal/adapters/storage/otp"
	"crm/internal/domain/account"
	"crm/internal/domain/ams"
	"crm/internal/domain/audit"
	"crm/internal/domain/company"
	"crm/internal/domain/customer"
	"crm/internal/domain/deal"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
	"crm/internal/domain/otp"
	"crm/internal/domain/outbox"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	account.BcryptCost = bcrypt.MinCost
	timeNow = func() time.Time { return fixedTime }
	var mu sync.Mutex
	seq := 0
	newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	goleak.VerifyTestMain(m)
}

var (
	adminP    = account.Principal{CompanyID: "co1", AccountID: "admin1", Email: "admin@acme.test", Role: account.RoleAdmin}
	employeeP = account.Principal{CompanyID: "co1", AccountID: "emp1", Email: "emp@acme.test", Role: account.RoleEmployee}
	otherEmpP = account.Principal{CompanyID: "co1", AccountID: "emp2", Email: "emp2@acme.test", Role: account.RoleEmployee}
	foreignP  = account.Principal{CompanyID: "co2", AccountID: "admin9", Email: "boss@other.test", Role: account.RoleAdmin}
)

// --- accounts ---

type mockAccountStore struct {
	accounts map[string]account.Account
	saveErr  error
}

func newMockAccountStore(accts ...account.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[string]account.Account)}
	for _, a := range accts {
		m.accounts[a.ID] = a
	}
	return m
}

// GetByID returns the account when it belongs to companyID.
func (m *mockAccountStore) GetByID(_ context.Context, companyID, id string) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.CompanyID != companyID {
		return account.Account{}, storage.NotFound("account")
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return account.Account{}, storage.NotFound("account")
}

func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountStore) Delete(_ context.Context, companyID, id string) error {
	if a, ok := m.accounts[id]; ok && a.CompanyID == companyID {
		delete(m.accounts, id)
	}
	return nil
}

func (m *mockAccountStore) RecordFailedLogin(_ context.Context, id string, _ int) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return account.Account{}, storage.NotFound("account")
	}
	a.RecordFailedLogin()
	m.accounts[id] = a
	return a, nil
}

// RecordSuccessfulLogin mirrors the guarded UPDATE of the SQL store.
func (m *mockAccountStore) RecordSuccessfulLogin(_ context.Context, id string, now time.Time) error {
	a, ok := m.accounts[id]
	if !ok || !a.IsActive || a.Disabled {
		return accountStore.ErrNotActive
	}
	a.RecordSuccessfulLogin(now)
	a.UpdatedAt = now
	m.accounts[id] = a
	return nil
}

func newTestAccount(t *testing.T, id, companyID, email, role, password string) account.Account {
	t.Helper()
	a := account.Account{
		ID: id, CompanyID: companyID, Name: "User " + id, Email: email, Role: role,
		IsActive: true, CreatedAt: fixedTime, UpdatedAt: fixedTime,
	}
	if err := a.SetPassword(password); err != nil {
		t.Fatalf("set password: %v", err)
	}
	return a
}

// --- companies ---

type mockCompanyStore struct {
	companies map[string]company.Company
	deleted   []string
}

func newMockCompanyStore(cs ...company.Company) *mockCompanyStore {
	m := &mockCompanyStore{companies: make(map[string]company.Company)}
	for _, c := range cs {
		m.companies[c.ID] = c
	}
	return m
}

func (m *mockCompanyStore) GetByID(_ context.Context, id string) (company.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return company.Company{}, storage.NotFound("company")
	}
	return c, nil
}

func (m *mockCompanyStore) Save(_ context.Context, c company.Company) error {
	m.companies[c.ID] = c
	return nil
}

func (m *mockCompanyStore) Delete(_ context.Context, id string) error {
	delete(m.companies, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// --- audit ---

type mockAuditSink struct {
	events []audit.Event
}

func (m *mockAuditSink) Save(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockAuditSink) actions() []audit.Action {
	out := make([]audit.Action, len(m.events))
	for i, e := range m.events {
		out[i] = e.Action
	}
	return out
}

// --- otp ---

type mockOTPStore struct {
	codes map[string]otp.OTP
}

func newMockOTPStore() *mockOTPStore {
	return &mockOTPStore{codes: make(map[string]otp.OTP)}
}

func (m *mockOTPStore) GetByEmail(_ context.Context, email string) (otp.OTP, error) {
	o, ok := m.codes[email]
	if !ok {
		return otp.OTP{}, storage.NotFound("otp")
	}
	return o, nil
}

func (m *mockOTPStore) Save(_ context.Context, o otp.OTP) error {
	m.codes[o.Email] = o
	return nil
}

// ConsumeAttempt mirrors the guarded UPDATE of the SQL store.
func (m *mockOTPStore) ConsumeAttempt(_ context.Context, email, id string, maxAttempts int) error {
	o, ok := m.codes[email]
	if !ok || o.ID != id || o.Attempts >= maxAttempts {
		return otpStore.ErrNoAttemptsLeft
	}
	o.Attempts++
	m.codes[email] = o
	return nil
}

func (m *mockOTPStore) MarkVerified(_ context.Context, email, id string) error {
	o, ok := m.codes[email]
	if !ok || o.ID != id || o.Attempts == 0 {
		return storage.NotFound("otp")
	}
	o.Verified = true
	o.Attempts--
	m.codes[email] = o
	return nil
}

func (m *mockOTPStore) Delete(_ context.Context, email string) error {
	delete(m.codes, email)
	return nil
}

// --- email ---

type mockSender struct {
	mu   sync.Mutex
	sent []emailAdapter.SendRequest
	err  error
}

func (m *mockSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return emailAdapter.SendResult{}, m.err
	}
	m.sent = append(m.sent, req)
	return emailAdapter.SendResult{MessageID: fmt.Sprintf("msg-%d", len(m.sent))}, nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: make(map[string]outbox.Entry)}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, storage.NotFound("outbox entry")
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e outbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Entry
	for _, e := range m.entries {
		if e.CanRetry() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockOutboxStore) get(id string) outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

// --- leads ---

type mockLeadStore struct {
	leads   map[string]lead.Lead
	saveErr error
	saves   int
}

func newMockLeadStore(ls ...lead.Lead) *mockLeadStore {
	m := &mockLeadStore{leads: make(map[string]lead.Lead)}
	for _, l := range ls {
		m.leads[l.ID] = l
	}
	return m
}

func (m *mockLeadStore) GetByID(_ context.Context, companyID, id string) (lead.Lead, error) {
	l, ok := m.leads[id]
	if !ok || l.CompanyID != companyID {
		return lead.Lead{}, storage.NotFound("lead")
	}
	return l, nil
}

func (m *mockLeadStore) Save(_ context.Context, l lead.Lead) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.leads[l.ID] = l
	return nil
}

func (m *mockLeadStore) Delete(_ context.Context, companyID, id string) error {
	if l, ok := m.leads[id]; ok && l.CompanyID == companyID {
		delete(m.leads, id)
	}
	return nil
}

func (m *mockLeadStore) FindDuplicate(_ context.Context, companyID, email, phone, excludeID string) (lead.Lead, error) {
	for _, l := range m.leads {
		if l.CompanyID != companyID || l.ID == excludeID {
			continue
		}
		if (email != "" && l.Email == email) || (phone != "" && l.Phone == phone) {
			return l, nil
		}
	}
	return lead.Lead{}, storage.NotFound("lead")
}

func (m *mockLeadStore) ListContacts(_ context.Context, companyID string) ([]leadStore.Contact, error) {
	var out []leadStore.Contact
	for _, l := range m.leads {
		if l.CompanyID == companyID {
			out = append(out, leadStore.Contact{Email: l.Email, Phone: l.Phone})
		}
	}
	return out, nil
}

func newTestLead(id, assignedTo, status string) lead.Lead {
	return lead.Lead{
		ID: id, CompanyID: "co1", Name: "Lead " + id, Email: id + "@prospect.test",
		Source: lead.SourceWebsite, Status: status, AssignedTo: assignedTo, CreatedBy: assignedTo,
		CreatedAt: fixedTime, UpdatedAt: fixedTime,
	}
}

// --- follow-ups ---

type mockFollowUpStore struct {
	items         map[string]followup.FollowUp
	deletedByLead []string
}

func newMockFollowUpStore(fs ...followup.FollowUp) *mockFollowUpStore {
	m := &mockFollowUpStore{items: make(map[string]followup.FollowUp)}
	for _, f := range fs {
		m.items[f.ID] = f
	}
	return m
}

func (m *mockFollowUpStore) GetByID(_ context.Context, companyID, id string) (followup.FollowUp, error) {
	f, ok := m.items[id]
	if !ok || f.CompanyID != companyID {
		return followup.FollowUp{}, storage.NotFound("follow-up")
	}
	return f, nil
}

func (m *mockFollowUpStore) Save(_ context.Context, f followup.FollowUp) error {
	m.items[f.ID] = f
	return nil
}

func (m *mockFollowUpStore) UpdateIfStatus(_ context.Context, f followup.FollowUp, from string) error {
	cur, ok := m.items[f.ID]
	if !ok || cur.CompanyID != f.CompanyID || cur.Status != from {
		return followup.ErrNotPending
	}
	m.items[f.ID] = f
	return nil
}

func (m *mockFollowUpStore) Delete(_ context.Context, companyID, id string) error {
	delete(m.items, id)
	return nil
}

func (m *mockFollowUpStore) DeleteByLead(_ context.Context, companyID, leadID string) error {
	for id, f := range m.items {
		if f.CompanyID == companyID && f.LeadID == leadID {
			delete(m.items, id)
		}
	}
	m.deletedByLead = append(m.deletedByLead, leadID)
	return nil
}

// --- customers ---

type mockCustomerStore struct {
	items   map[string]customer.Customer
	saveErr error
	deleted []string
}

func newMockCustomerStore(cs ...customer.Customer) *mockCustomerStore {
	m := &mockCustomerStore{items: make(map[string]customer.Customer)}
	for _, c := range cs {
		m.items[c.ID] = c
	}
	return m
}

func (m *mockCustomerStore) GetByID(_ context.Context, companyID, id string) (customer.Customer, error) {
	c, ok := m.items[id]
	if !ok || c.CompanyID != companyID {
		return customer.Customer{}, storage.NotFound("customer")
	}
	return c, nil
}

func (m *mockCustomerStore) Save(_ context.Context, c customer.Customer) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[c.ID] = c
	return nil
}

func (m *mockCustomerStore) Delete(_ context.Context, companyID, id string) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type countByCustomer map[string]int

func (c countByCustomer) CountByCustomer(_ context.Context, _, customerID string) (int, error) {
	return c[customerID], nil
}

// --- deals ---

type mockDealStore struct {
	items    map[string]deal.Deal
	payments []deal.Payment
}

func newMockDealStore(ds ...deal.Deal) *mockDealStore {
	m := &mockDealStore{items: make(map[string]deal.Deal)}
	for _, d := range ds {
		m.items[d.ID] = d
	}
	return m
}

func (m *mockDealStore) GetByID(_ context.Context, companyID, id string) (deal.Deal, error) {
	d, ok := m.items[id]
	if !ok || d.CompanyID != companyID {
		return deal.Deal{}, storage.NotFound("deal")
	}
	return d, nil
}

// Save mirrors the SQL upsert: value and balance are only written on insert.
func (m *mockDealStore) Save(_ context.Context, d deal.Deal) error {
	if old, ok := m.items[d.ID]; ok {
		d.Value, d.Balance = old.Value, old.Balance
	}
	m.items[d.ID] = d
	return nil
}

func (m *mockDealStore) ChangeValue(_ context.Context, companyID, id string, from, to int64, now time.Time) error {
	d, ok := m.items[id]
	if !ok || d.CompanyID != companyID || d.Value != from || d.Balance+to-from < 0 {
		return dealStore.ErrBalanceChanged
	}
	d.Value, d.Balance, d.UpdatedAt = to, d.Balance+to-from, now
	m.items[id] = d
	return nil
}

func (m *mockDealStore) Delete(_ context.Context, companyID, id string) error {
	delete(m.items, id)
	return nil
}

// RecordPayment mirrors the guarded UPDATE of the SQL store.
func (m *mockDealStore) RecordPayment(_ context.Context, p deal.Payment) error {
	d, ok := m.items[p.DealID]
	if !ok || d.Status == deal.StatusLost || d.Balance < p.Amount {
		return dealStore.ErrBalanceChanged
	}
	d.Balance -= p.Amount
	m.items[d.ID] = d
	m.payments = append(m.payments, p)
	return nil
}

// --- visits ---

type mockVisitStore struct {
	items map[string]ams.Visit
}

func newMockVisitStore(vs ...ams.Visit) *mockVisitStore {
	m := &mockVisitStore{items: make(map[string]ams.Visit)}
	for _, v := range vs {
		m.items[v.ID] = v
	}
	return m
}

func (m *mockVisitStore) GetByID(_ context.Context, companyID, id string) (ams.Visit, error) {
	v, ok := m.items[id]
	if !ok || v.CompanyID != companyID {
		return ams.Visit{}, storage.NotFound("visit")
	}
	return v, nil
}

func (m *mockVisitStore) Save(_ context.Context, v ams.Visit) error {
	m.items[v.ID] = v
	return nil
}

func (m *mockVisitStore) UpdateIfStatus(_ context.Context, v ams.Visit, from string) error {
	cur, ok := m.items[v.ID]
	if !ok || cur.CompanyID != v.CompanyID || cur.Status != from {
		return ams.ErrNotScheduled
	}
	m.items[v.ID] = v
	return nil
}

func (m *mockVisitStore) Delete(_ context.Context, companyID, id string) error {
	delete(m.items, id)
	return nil
}

var errStoreDown = errors.New("store unavailable")
