package web

import "net/http"

// registerRoutes attaches every API endpoint to mux.
// Resource handlers switch on the method themselves; action routes are POST only.
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealthz)

	// Tenant and authentication
	mux.HandleFunc("POST /api/companies/register", handleRegisterCompany)
	mux.HandleFunc("/api/company", handleCompany)
	mux.HandleFunc("POST /api/auth/login", handleLogin)
	mux.HandleFunc("POST /api/auth/logout", handleLogout)
	mux.HandleFunc("GET /api/auth/me", handleMe)
	mux.HandleFunc("POST /api/auth/change-password", handleChangePassword)
	mux.HandleFunc("POST /api/auth/otp/request", handleRequestOTP)
	mux.HandleFunc("POST /api/auth/otp/verify", handleVerifyOTP)
	mux.HandleFunc("POST /api/auth/password/reset", handleResetPassword)

	// Employees
	mux.HandleFunc("/api/employees", handleEmployees)
	mux.HandleFunc("/api/employees/{id}", handleEmployee)
	mux.HandleFunc("POST /api/employees/{id}/{action}", handleEmployeeAction)

	// Leads
	mux.HandleFunc("/api/leads", handleLeads)
	mux.HandleFunc("POST /api/leads/upload", handleLeadUpload)
	mux.HandleFunc("GET /api/leads/upload/template", handleLeadUploadTemplate)
	mux.HandleFunc("/api/leads/{id}", handleLead)
	mux.HandleFunc("POST /api/leads/{id}/status", handleLeadStatus)
	mux.HandleFunc("POST /api/leads/{id}/assign", handleLeadAssign)

	// Follow-ups
	mux.HandleFunc("/api/followups", handleFollowUps)
	mux.HandleFunc("/api/followups/{id}", handleFollowUp)
	mux.HandleFunc("POST /api/followups/{id}/{action}", handleFollowUpAction)

	// Customers, deals and AMS visits
	mux.HandleFunc("/api/customers", handleCustomers)
	mux.HandleFunc("/api/customers/{id}", handleCustomer)
	mux.HandleFunc("/api/deals", handleDeals)
	mux.HandleFunc("/api/deals/{id}", handleDeal)
	mux.HandleFunc("POST /api/deals/{id}/status", handleDealStatus)
	mux.HandleFunc("POST /api/deals/{id}/payments", handleDealPayments)
	mux.HandleFunc("/api/ams", handleVisits)
	mux.HandleFunc("/api/ams/{id}", handleVisit)
	mux.HandleFunc("POST /api/ams/{id}/{action}", handleVisitAction)

	// Reporting
	mux.HandleFunc("GET /api/dashboard", handleDashboard)
	mux.HandleFunc("GET /api/leaderboard", handleLeaderboard)
	mux.HandleFunc("GET /api/reports/{kind}", handleReport)

	// Admin
	mux.HandleFunc("GET /api/admin/audit", handleAdminAudit)
	mux.HandleFunc("GET /api/admin/outbox", handleAdminOutbox)
	mux.HandleFunc("POST /api/admin/outbox/{id}/{action}", handleAdminOutboxAction)
	mux.HandleFunc("GET /api/admin/perf", handleAdminPerf)
}
