package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"crm/internal/adapters/http/middleware"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
	"crm/internal/domain/account"
	"crm/internal/domain/company"
)

// handleRegisterCompany handles POST /api/companies/register.
// Creates a tenant and its first admin; the caller signs in afterwards.
func handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CompanyName    string `json:"CompanyName"`
		CompanyEmail   string `json:"CompanyEmail"`
		CompanyPhone   string `json:"CompanyPhone"`
		CompanyAddress string `json:"CompanyAddress"`
		AdminName      string `json:"AdminName"`
		AdminEmail     string `json:"AdminEmail"`
		AdminPhone     string `json:"AdminPhone"`
		AdminPassword  string `json:"AdminPassword"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	result, err := orchestrators.ExecuteRegisterCompany(r.Context(), orchestrators.RegisterCompanyInput{
		CompanyName:    input.CompanyName,
		CompanyEmail:   input.CompanyEmail,
		CompanyPhone:   input.CompanyPhone,
		CompanyAddress: input.CompanyAddress,
		AdminName:      input.AdminName,
		AdminEmail:     input.AdminEmail,
		AdminPhone:     input.AdminPhone,
		AdminPassword:  input.AdminPassword,
	}, orchestrators.RegisterCompanyDeps{
		CompanyStore: stores.CompanyStore,
		AccountStore: stores.AccountStore,
		Audit:        stores.AuditStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"Company": result.Company,
		"Admin":   projections.EmployeeFromAccount(result.Admin),
	})
}

// handleCompany handles GET/PUT /api/company for the caller's tenant.
func handleCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		c, err := stores.CompanyStore.GetByID(ctx, sess.CompanyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)

	case "PUT":
		var input struct {
			Name    string `json:"Name"`
			Email   string `json:"Email"`
			Phone   string `json:"Phone"`
			Address string `json:"Address"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		c, err := orchestrators.ExecuteUpdateCompany(ctx, orchestrators.UpdateCompanyInput{
			Principal: sess.Principal(),
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			Address:   input.Address,
		}, orchestrators.UpdateCompanyDeps{CompanyStore: stores.CompanyStore, Audit: stores.AuditStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// loginResponse is returned by a successful login.
type loginResponse struct {
	Account        projections.Employee
	Company        company.Company
	Token          string    `json:",omitempty"`
	TokenExpiresAt time.Time `json:",omitzero"`
}

// handleLogin handles POST /api/auth/login.
// Sets the session cookie and, when tokens are enabled, returns a bearer token.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"Email"`
		Password string `json:"Password"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:     input.Email,
		Password:  input.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}, orchestrators.LoginDeps{
		AccountStore: stores.AccountStore,
		CompanyStore: stores.CompanyStore,
		Audit:        stores.AuditStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := result.Principal()
	token, err := sessions.Create(p)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token, sessions.TTL(), opts.Secure)

	resp := loginResponse{Account: projections.EmployeeFromAccount(result.Account), Company: result.Company}
	if tokens != nil {
		resp.Token, resp.TokenExpiresAt, err = tokens.Issue(p)
		if err != nil {
			internalError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout handles POST /api/auth/logout.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessions.Delete(cookie.Value)
	}
	if sess.Token && tokens != nil {
		tokens.RevokeAccount(sess.AccountID)
	}
	middleware.ClearSessionCookie(w, opts.Secure)
	orchestrators.ExecuteLogout(r.Context(), orchestrators.LogoutInput{
		Principal: sess.Principal(),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}, stores.AuditStore)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/auth/me. The CSRF token for form posts rides along in a header.
func handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	me, err := projections.QueryMe(r.Context(), sess.Principal(), projections.MeDeps{
		AccountStore: stores.AccountStore,
		CompanyStore: stores.CompanyStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	writeJSON(w, http.StatusOK, me)
}

// handleChangePassword handles POST /api/auth/change-password.
// Every session and token of the account is revoked; a cookie caller gets a fresh session.
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var input struct {
		CurrentPassword string `json:"CurrentPassword"`
		NewPassword     string `json:"NewPassword"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		Principal:       sess.Principal(),
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
	}, orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore, Audit: stores.AuditStore})
	if err != nil {
		writeError(w, r, err)
		return
	}

	revokeAccess(sess.AccountID)
	if !sess.Token {
		token, err := sessions.Create(sess.Principal())
		if err != nil {
			internalError(w, err)
			return
		}
		middleware.SetSessionCookie(w, token, sessions.TTL(), opts.Secure)
	}
	w.WriteHeader(http.StatusNoContent)
}

// revokeAccess ends every cookie session and bearer token of an account.
func revokeAccess(accountID string) {
	n := sessions.DeleteByAccount(accountID)
	if tokens != nil {
		tokens.RevokeAccount(accountID)
	}
	slog.Info("auth_event", "event", "access_revoked", "account_id", accountID, "sessions", n)
}

func passwordResetDeps() orchestrators.PasswordResetDeps {
	return orchestrators.PasswordResetDeps{
		AccountStore: stores.AccountStore,
		OTPStore:     stores.OTPStore,
		Mail:         orchestrators.MailDeps{Sender: emailSender, Outbox: stores.OutboxStore},
		TTL:          opts.OTPTTL,
		MaxAttempts:  opts.OTPMaxAttempts,
		Audit:        stores.AuditStore,
	}
}

// handleRequestOTP handles POST /api/auth/otp/request.
// The response is the same whether or not the email belongs to an account.
func handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"Email"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := orchestrators.ExecuteRequestOTP(r.Context(), input.Email, passwordResetDeps()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "if the account exists, a code has been sent"})
}

// handleVerifyOTP handles POST /api/auth/otp/verify.
func handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"Email"`
		Code  string `json:"Code"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := orchestrators.ExecuteVerifyOTP(r.Context(), input.Email, input.Code, passwordResetDeps()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// handleResetPassword handles POST /api/auth/password/reset after a verified OTP.
func handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input struct {
		Email       string `json:"Email"`
		NewPassword string `json:"NewPassword"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	err := orchestrators.ExecuteResetPassword(ctx, orchestrators.ResetPasswordInput{
		Email:       input.Email,
		NewPassword: input.NewPassword,
		IPAddress:   clientIP(r),
	}, passwordResetDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if acct, err := stores.AccountStore.GetByEmail(ctx, account.NormalizeEmail(input.Email)); err == nil {
		revokeAccess(acct.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}
