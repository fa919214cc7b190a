package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"crm/internal/adapters/cache"
	"crm/internal/adapters/http/middleware"
	"crm/internal/adapters/http/perf"
	"crm/internal/adapters/storage"
	"crm/internal/adapters/storage/storagetest"
	"crm/internal/domain/outbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// client drives the full middleware chain with either a bearer token or a session cookie.
type client struct {
	t      *testing.T
	h      http.Handler
	token  string
	cookie *http.Cookie
}

func newTestServer(t *testing.T) (http.Handler, *Stores) {
	t.Helper()
	db := storagetest.Open(t)
	s := NewSQLStores(db)
	mem := cache.NewMemory(time.Minute)
	t.Cleanup(func() { mem.Close() })

	h, stop := NewMux(s, perf.NewCollector(64), Options{
		CSRFKey:            bytes.Repeat([]byte{7}, 32),
		RateLimitPerSecond: 1000,
		Tokens:             middleware.NewTokenIssuer([]byte("handler-test-secret-0123456789abcdef"), time.Hour),
		Cache:              cache.NewLoader(mem),
		BaseURL:            "http://crm.test",
	})
	t.Cleanup(stop)
	return h, s
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type loginBody struct {
	Account struct {
		ID        string
		CompanyID string
		Role      string
	}
	Token string
}

// login returns a token client and a cookie client for the same account.
func login(t *testing.T, h http.Handler, email, password string) (*client, *client, loginBody) {
	t.Helper()
	anon := &client{t: t, h: h}
	rec := anon.do("POST", "/api/auth/login", map[string]string{"Email": email, "Password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[loginBody](t, rec)
	require.NotEmpty(t, body.Token)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie")
	return &client{t: t, h: h, token: body.Token}, &client{t: t, h: h, cookie: cookie}, body
}

// registerCompany creates a tenant and returns its admin's token client.
func registerCompany(t *testing.T, h http.Handler, name, email string) (*client, loginBody) {
	t.Helper()
	anon := &client{t: t, h: h}
	rec := anon.do("POST", "/api/companies/register", map[string]string{
		"CompanyName":   name,
		"CompanyEmail":  "office@" + strings.Split(email, "@")[1],
		"AdminName":     "Admin " + name,
		"AdminEmail":    email,
		"AdminPassword": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	admin, _, body := login(t, h, email, "correct-horse")
	return admin, body
}

func createEmployee(t *testing.T, admin *client, name, email string) string {
	t.Helper()
	rec := admin.do("POST", "/api/employees", map[string]string{
		"Name":        name,
		"Email":       email,
		"Designation": "Sales",
		"Role":        "employee",
		"Password":    "employee-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct{ ID string }](t, rec).ID
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	rec := (&client{t: t, h: h}).do("GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestAuthFlow(t *testing.T) {
	h, _ := newTestServer(t)
	admin, body := registerCompany(t, h, "Acme", "owner@acme.test")
	assert.Equal(t, "admin", body.Account.Role)

	t.Run("me with token", func(t *testing.T) {
		rec := admin.do("GET", "/api/auth/me", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[struct {
			Account struct{ Email string }
			Company struct{ Name string }
		}](t, rec)
		assert.Equal(t, "owner@acme.test", me.Account.Email)
		assert.Equal(t, "Acme", me.Company.Name)
	})

	t.Run("me with cookie returns csrf token", func(t *testing.T) {
		_, cookieClient, _ := login(t, h, "owner@acme.test", "correct-horse")
		rec := cookieClient.do("GET", "/api/auth/me", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-CSRF-Token"))
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do("GET", "/api/leads", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do("POST", "/api/auth/login", map[string]string{"Email": "owner@acme.test", "Password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do("POST", "/api/companies/register", map[string]string{
			"CompanyName":   "Acme Two",
			"CompanyEmail":  "office@acme-two.test",
			"AdminName":     "Other",
			"AdminEmail":    "owner@acme.test",
			"AdminPassword": "correct-horse",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do("POST", "/api/auth/login", map[string]string{"Email": "x@y.test", "Pass": "z"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEmployeeAccessControl(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")
	empID := createEmployee(t, admin, "Sam Seller", "sam@acme.test")
	emp, _, _ := login(t, h, "sam@acme.test", "employee-pass")

	assert.Equal(t, http.StatusForbidden, emp.do("GET", "/api/employees", nil).Code)
	assert.Equal(t, http.StatusForbidden, emp.do("GET", "/api/reports/leads", nil).Code)
	assert.Equal(t, http.StatusForbidden, emp.do("GET", "/api/admin/audit", nil).Code)

	rec := admin.do("GET", "/api/employees/"+empID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sam@acme.test", decode[struct{ Email string }](t, rec).Email)

	rec = admin.do("POST", "/api/employees/"+empID+"/promote", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisableRevokesAccess(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")
	empID := createEmployee(t, admin, "Sam Seller", "sam@acme.test")
	emp, empCookie, _ := login(t, h, "sam@acme.test", "employee-pass")
	require.Equal(t, http.StatusOK, emp.do("GET", "/api/auth/me", nil).Code)

	rec := admin.do("POST", "/api/employees/"+empID+"/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, emp.do("GET", "/api/auth/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, empCookie.do("GET", "/api/auth/me", nil).Code)

	rec = (&client{t: t, h: h}).do("POST", "/api/auth/login", map[string]string{"Email": "sam@acme.test", "Password": "employee-pass"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeadLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")

	rec := admin.do("POST", "/api/leads", map[string]any{
		"Name":           "Priya Patel",
		"Email":          "priya@globex.test",
		"Organization":   "Globex",
		"Source":         "referral",
		"EstimatedValue": 250000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	leadID := decode[struct{ ID string }](t, rec).ID

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := admin.do("POST", "/api/leads", map[string]any{"Name": "Priya Again", "Email": "PRIYA@globex.test"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := admin.do("GET", "/api/leads?status=NEW", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[struct {
			Items []struct{ ID string } `json:"items"`
		}](t, rec)
		require.Len(t, page.Items, 1)
		assert.Equal(t, leadID, page.Items[0].ID)
	})

	t.Run("malformed date filter", func(t *testing.T) {
		rec := admin.do("GET", "/api/leads?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("follow-up", func(t *testing.T) {
		rec := admin.do("POST", "/api/followups", map[string]string{
			"LeadID":      leadID,
			"ScheduledAt": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
			"Mode":        "call",
			"Note":        "intro call",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		fuID := decode[struct{ ID string }](t, rec).ID

		rec = admin.do("POST", "/api/followups/"+fuID+"/complete", map[string]string{"Outcome": "interested"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = admin.do("POST", "/api/followups/"+fuID+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = admin.do("GET", "/api/leads/"+leadID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		detail := decode[struct{ FollowUps []struct{ ID string } }](t, rec)
		assert.Len(t, detail.FollowUps, 1)
	})

	var customerID string
	t.Run("convert to customer", func(t *testing.T) {
		rec := admin.do("POST", "/api/leads/"+leadID+"/status", map[string]string{"Status": "CUSTOMER"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode[struct {
			Lead     struct{ Status, CustomerID string }
			Customer *struct{ ID, Name string }
		}](t, rec)
		assert.Equal(t, "CUSTOMER", result.Lead.Status)
		require.NotNil(t, result.Customer)
		assert.Equal(t, result.Customer.ID, result.Lead.CustomerID)
		customerID = result.Customer.ID

		rec = admin.do("POST", "/api/leads/"+leadID+"/status", map[string]string{"Status": "NEW"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("deal and payment", func(t *testing.T) {
		require.NotEmpty(t, customerID)
		rec := admin.do("POST", "/api/deals", map[string]any{
			"CustomerID": customerID,
			"Title":      "Annual support",
			"Value":      500000,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		dealID := decode[struct{ ID string }](t, rec).ID

		rec = admin.do("POST", "/api/deals/"+dealID+"/payments", map[string]any{"Amount": 200000, "Method": "bank_transfer"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		result := decode[struct{ Deal struct{ Balance int64 } }](t, rec)
		assert.Equal(t, int64(300000), result.Deal.Balance)

		rec = admin.do("POST", "/api/deals/"+dealID+"/payments", map[string]any{"Amount": 900000, "Method": "bank_transfer"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = admin.do("DELETE", "/api/customers/"+customerID, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestTenantIsolation(t *testing.T) {
	h, _ := newTestServer(t)
	acme, _ := registerCompany(t, h, "Acme", "owner@acme.test")
	globex, _ := registerCompany(t, h, "Globex", "owner@globex.test")

	rec := acme.do("POST", "/api/leads", map[string]any{"Name": "Secret Lead", "Phone": "+15550100"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	leadID := decode[struct{ ID string }](t, rec).ID

	assert.Equal(t, http.StatusNotFound, globex.do("GET", "/api/leads/"+leadID, nil).Code)
	assert.Equal(t, http.StatusNotFound, globex.do("DELETE", "/api/leads/"+leadID, nil).Code)

	rec = globex.do("GET", "/api/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items []struct{ ID string } `json:"items"`
	}](t, rec)
	assert.Empty(t, page.Items)
}

func TestLeadUpload(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")

	t.Run("template", func(t *testing.T) {
		rec := admin.do("GET", "/api/leads/upload/template", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "lead-upload-template.xlsx")
		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Leads")
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		assert.Equal(t, "Name", rows[0][0])
	})

	upload := func(csv string, dryRun bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "leads.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csv))
		require.NoError(t, err)
		if dryRun {
			require.NoError(t, mw.WriteField("dry_run", "true"))
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/leads/upload", &buf)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin.token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	csv := "Name,Email,Phone\nAda Lovelace,ada@engine.test,\nCharles Babbage,charles@engine.test,\nAda Copy,ADA@engine.test,\n"

	rec := upload(csv, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dry := decode[struct{ Total, Created, Skipped int }](t, rec)
	assert.Equal(t, 3, dry.Total)
	assert.Equal(t, 2, dry.Created)
	assert.Equal(t, 1, dry.Skipped)

	rec = admin.do("GET", "/api/leads", nil)
	page := decode[struct {
		Items []struct{ ID string } `json:"items"`
	}](t, rec)
	assert.Empty(t, page.Items, "dry run must not write")

	rec = upload(csv, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[struct{ Created int }](t, rec).Created)

	rec = upload("Email\nnobody@engine.test\n", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing Name column")
}

func TestReportsAndLeaderboard(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")
	rec := admin.do("POST", "/api/leads", map[string]any{"Name": "Reported Lead", "Email": "r@lead.test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = admin.do("GET", "/api/reports/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[struct {
		Kind string
		Rows [][]string
	}](t, rec)
	assert.Equal(t, "leads", rep.Kind)
	assert.Len(t, rep.Rows, 1)

	rec = admin.do("GET", "/api/reports/leads?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, f.GetSheetList())
	f.Close()

	assert.Equal(t, http.StatusBadRequest, admin.do("GET", "/api/reports/invoices", nil).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do("GET", "/api/reports/leads?from=2025-02-01&to=2025-01-01", nil).Code)

	rec = admin.do("GET", "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin.do("GET", "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminOutboxTenancy(t *testing.T) {
	h, s := newTestServer(t)
	acme, acmeLogin := registerCompany(t, h, "Acme", "owner@acme.test")
	globex, _ := registerCompany(t, h, "Globex", "owner@globex.test")

	entry := outbox.Entry{
		ID:          "entry-1",
		CompanyID:   acmeLogin.Account.CompanyID,
		ActionType:  outbox.ActionTypeEmail,
		Payload:     `{"To":"someone@acme.test","Subject":"Hi","HTML":"<p>Hi</p>"}`,
		Status:      outbox.StatusFailed,
		Attempts:    outbox.DefaultMaxAttempts,
		MaxAttempts: outbox.DefaultMaxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.OutboxStore.Save(context.Background(), entry))

	rec := acme.do("GET", "/api/admin/outbox", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]struct{ ID string }](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, globex.do("POST", "/api/admin/outbox/entry-1/abandon", nil).Code)

	rec = acme.do("POST", "/api/admin/outbox/entry-1/abandon", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusConflict, acme.do("POST", "/api/admin/outbox/entry-1/abandon", nil).Code)
}

func TestAdminPerfAndAudit(t *testing.T) {
	h, _ := newTestServer(t)
	admin, _ := registerCompany(t, h, "Acme", "owner@acme.test")

	rec := admin.do("GET", "/api/admin/perf?minutes=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin.do("GET", "/api/admin/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[struct {
		Items []struct{ Action string } `json:"items"`
	}](t, rec)
	assert.NotEmpty(t, page.Items, "registration and login are audited")
}

func TestPasswordResetFlow(t *testing.T) {
	h, _ := newTestServer(t)
	registerCompany(t, h, "Acme", "owner@acme.test")
	anon := &client{t: t, h: h}

	rec := anon.do("POST", "/api/auth/otp/request", map[string]string{"Email": "unknown@acme.test"})
	assert.Equal(t, http.StatusAccepted, rec.Code, "unknown addresses look the same as known ones")

	rec = anon.do("POST", "/api/auth/otp/verify", map[string]string{"Email": "owner@acme.test", "Code": "000000"})
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = anon.do("POST", "/api/auth/password/reset", map[string]string{"Email": "owner@acme.test", "NewPassword": "new-password"})
	assert.NotEqual(t, http.StatusNoContent, rec.Code, "reset requires a verified code")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(storage.NotFound("lead")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
