package web

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"crm/internal/adapters/cache"
	"crm/internal/adapters/email"
	"crm/internal/adapters/http/middleware"
	"crm/internal/adapters/http/perf"
	"crm/internal/adapters/storage"
	accountStore "crm/internal/adapters/storage/account"
	amsStore "crm/internal/adapters/storage/ams"
	auditStore "crm/internal/adapters/storage/audit"
	companyStore "crm/internal/adapters/storage/company"
	customerStore "crm/internal/adapters/storage/customer"
	dealStore "crm/internal/adapters/storage/deal"
	followupStore "crm/internal/adapters/storage/followup"
	leadStore "crm/internal/adapters/storage/lead"
	otpStore "crm/internal/adapters/storage/otp"
	outboxStore "crm/internal/adapters/storage/outbox"
	reportStore "crm/internal/adapters/storage/report"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore  accountStore.Store
	CompanyStore  companyStore.Store
	LeadStore     leadStore.Store
	FollowUpStore followupStore.Store
	CustomerStore customerStore.Store
	DealStore     dealStore.Store
	VisitStore    amsStore.Store
	AuditStore    auditStore.Store
	OutboxStore   outboxStore.Store
	OTPStore      otpStore.Store
	ReportStore   reportStore.Store
}

// NewSQLStores builds every store on one database handle.
func NewSQLStores(db storage.SQLDB) *Stores {
	return &Stores{
		AccountStore:  accountStore.NewSQLStore(db),
		CompanyStore:  companyStore.NewSQLStore(db),
		LeadStore:     leadStore.NewSQLStore(db),
		FollowUpStore: followupStore.NewSQLStore(db),
		CustomerStore: customerStore.NewSQLStore(db),
		DealStore:     dealStore.NewSQLStore(db),
		VisitStore:    amsStore.NewSQLStore(db),
		AuditStore:    auditStore.NewSQLStore(db),
		OutboxStore:   outboxStore.NewSQLStore(db),
		OTPStore:      otpStore.NewSQLStore(db),
		ReportStore:   reportStore.NewSQLStore(db),
	}
}

// Options carries the runtime settings the handlers need.
type Options struct {
	CSRFKey            []byte // 32 bytes; a random key is generated when empty
	Secure             bool   // production: Secure cookies, strict CSRF origin checks
	TrustedOrigins     []string
	RateLimitPerSecond int
	SlowRequestMs      int
	SessionTTL         time.Duration
	Tokens             *middleware.TokenIssuer // nil disables bearer tokens
	Cache              *cache.Loader           // nil computes dashboards and leaderboards on every call
	LeaderboardTTL     time.Duration
	DashboardTTL       time.Duration
	UploadMaxBytes     int64
	UploadMaxRows      int
	BaseURL            string
	OTPTTL             time.Duration
	OTPMaxAttempts     int
	EmailSender        email.Sender
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// Global token issuer; nil when bearer tokens are disabled
var tokens *middleware.TokenIssuer

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Global email sender instance
var emailSender email.Sender

// opts holds the settings NewMux was called with.
var opts Options

// NewMux wires HTTP handlers for the app. The returned stop function releases
// the background sweepers of the rate limiter and the session store.
func NewMux(s *Stores, collector *perf.Collector, o Options) (http.Handler, func()) {
	stores = s
	perfCollector = collector
	opts = o
	sessionStore := middleware.NewSessionStore(o.SessionTTL)
	sessions = sessionStore
	tokens = o.Tokens
	emailSender = o.EmailSender
	if emailSender == nil {
		emailSender = email.NewNoopSender()
	}

	mux := http.NewServeMux()
	registerRoutes(mux)

	csrfKey := o.CSRFKey
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			panic("generate csrf key: " + err.Error())
		}
		slog.Warn("csrf_key_generated", "detail", "random key; form sessions will not survive a restart")
	}

	rate := o.RateLimitPerSecond
	if rate <= 0 {
		rate = 10
	}
	limiter := middleware.NewRateLimiter(rate, time.Second)

	// Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	h := middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, o.Secure, o.TrustedOrigins...),
		middleware.Auth(sessions, tokens),
		middleware.RateLimit(limiter),
		middleware.Timing(collector, o.SlowRequestMs),
	)
	return h, func() {
		limiter.Stop()
		sessionStore.Stop()
	}
}
