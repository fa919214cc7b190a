package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"crm/internal/adapters/http/perf"
	"crm/internal/domain/account"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var alice = account.Principal{CompanyID: "co1", AccountID: "e1", Email: "alice@acme.test", Role: account.RoleEmployee}

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// whoami writes the authenticated account ID, or "anonymous".
func whoami(w http.ResponseWriter, r *http.Request) {
	if s, ok := GetSessionFromContext(r.Context()); ok {
		w.Write([]byte(s.AccountID + "/" + s.CompanyID))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestTiming_RecordsEntry(t *testing.T) {
	collector := perf.NewCollector(1)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/leads", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("request id header not set")
	}
	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "POST /api/leads" {
		t.Errorf("SlowestPaths = %+v, want one POST /api/leads entry", snap.SlowestPaths)
	}
}

func TestTiming_SkipsHealthz(t *testing.T) {
	collector := perf.NewCollector(10)
	Timing(collector, 0)(http.HandlerFunc(okHandler)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0", collector.TotalRecorded())
	}
}

func TestTiming_PoolDoesNotLeakStatus(t *testing.T) {
	handler500 := Timing(nil, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler500.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/fail", nil))

	collector := perf.NewCollector(1)
	handler := Timing(collector, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/ok", nil))
	if snap := collector.Snapshot(time.Time{}, 1); snap.ServerErrors != 0 {
		t.Errorf("ServerErrors = %d, want 0 (pool must reset status)", snap.ServerErrors)
	}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	defer ss.Stop()
	token, err := ss.Create(alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, _ := ss.Create(alice)

	got, ok := ss.Get(token)
	if !ok || got.Principal() != alice {
		t.Fatalf("Get = %+v, %v; want alice's session", got, ok)
	}

	ss.Delete(token)
	if _, ok := ss.Get(token); ok {
		t.Error("session still present after Delete")
	}
	if n := ss.DeleteByAccount("e1"); n != 1 {
		t.Errorf("DeleteByAccount removed %d, want 1", n)
	}
	if _, ok := ss.Get(other); ok {
		t.Error("session still present after DeleteByAccount")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	defer ss.Stop()
	token, _ := ss.Create(alice)
	s, _ := ss.Get(token)
	s.CreatedAt = time.Now().Add(-2 * time.Hour)
	ss.sessions[token] = s

	if _, ok := ss.Get(token); ok {
		t.Error("expired session returned")
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	defer ss.Stop()
	fresh, _ := ss.Create(alice)
	stale, _ := ss.Create(alice)
	s := ss.sessions[stale]
	s.CreatedAt = time.Now().Add(-2 * time.Hour)
	ss.sessions[stale] = s

	if n := ss.sweep(time.Now()); n != 1 {
		t.Errorf("sweep removed %d, want 1", n)
	}
	if _, ok := ss.sessions[stale]; ok {
		t.Error("expired session kept in memory")
	}
	if _, ok := ss.Get(fresh); !ok {
		t.Error("live session swept")
	}
	ss.Stop()
	ss.Stop()
}

func TestAuth_CookieAndBearer(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	defer ss.Stop()
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	handler := Auth(ss, issuer)(http.HandlerFunc(whoami))

	cookieToken, _ := ss.Create(alice)
	jwtToken, _, err := issuer.Issue(alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect string
	}{
		{name: "no credentials", setup: func(*http.Request) {}, expect: "anonymous"},
		{name: "cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieToken})
		}, expect: "e1/co1"},
		{name: "unknown cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "nope"})
		}, expect: "anonymous"},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+jwtToken) }, expect: "e1/co1"},
		{name: "bearer lower-case scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+jwtToken) }, expect: "e1/co1"},
		{name: "tampered bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+jwtToken+"x") }, expect: "anonymous"},
		{name: "basic auth ignored", setup: func(r *http.Request) { r.SetBasicAuth("alice", "pw") }, expect: "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/me", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Body.String() != tt.expect {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.expect)
			}
		})
	}
}

func TestTokenIssuer(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	issuer := NewTokenIssuer(secret, time.Hour)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return clock }

	token, exp, err := issuer.Issue(alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(clock.Add(time.Hour)) {
		t.Errorf("exp = %v, want %v", exp, clock.Add(time.Hour))
	}
	s, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Principal() != alice || !s.Token {
		t.Errorf("session = %+v, want alice via token", s)
	}

	if _, err := NewTokenIssuer([]byte("another-secret-another-secret-xx"), time.Hour).Parse(token); err == nil {
		t.Error("token verified under a different secret")
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := issuer.Parse(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTokenIssuer_RevokeAccount(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return clock }

	old, _, _ := issuer.Issue(alice)
	clock = clock.Add(time.Minute)
	issuer.RevokeAccount(alice.AccountID)
	if _, err := issuer.Parse(old); err == nil {
		t.Error("revoked token accepted")
	}

	clock = clock.Add(time.Second)
	fresh, _, _ := issuer.Issue(alice)
	if _, err := issuer.Parse(fresh); err != nil {
		t.Errorf("token issued after revocation rejected: %v", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Stop()
	handler := RateLimit(rl)(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/leads", nil)
		req.RemoteAddr = "10.0.0.1:" + string(rune('1'+i)) + "000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429] (port must not split the bucket)", codes)
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("a different IP should have its own bucket")
	}
	rl.Stop()
}

func TestCSRF_ExemptsJSONAndBearer(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	handler := CSRF(key, false)(http.HandlerFunc(okHandler))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "json", headers: map[string]string{"Content-Type": "application/json"}, want: http.StatusOK},
		{name: "bearer form", headers: map[string]string{"Content-Type": "multipart/form-data; boundary=x", "Authorization": "Bearer t"}, want: http.StatusOK},
		{name: "cookie form without token", headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/leads/upload", strings.NewReader(""))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("%s not set", h)
		}
	}
}

func TestChain_FirstIsInnermost(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(http.HandlerFunc(okHandler), mark("inner"), mark("outer")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want [outer inner]", order)
	}
}
