package web

import (
	"errors"
	"log/slog"
	"net/http"

	"crm/internal/adapters/http/middleware"
	"crm/internal/adapters/spreadsheet"
	"crm/internal/adapters/storage"
	dealStore "crm/internal/adapters/storage/deal"
	"crm/internal/application/listutil"
	"crm/internal/application/orchestrators"
	"crm/internal/domain/account"
	"crm/internal/domain/ams"
	"crm/internal/domain/company"
	"crm/internal/domain/customer"
	"crm/internal/domain/deal"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
	"crm/internal/domain/otp"
	"crm/internal/domain/outbox"
	"crm/internal/domain/report"
)

// errorStatuses maps known errors to response codes. The first match wins.
var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{storage.ErrNotFound}},
	{http.StatusUnauthorized, []error{orchestrators.ErrInvalidCredentials, middleware.ErrInvalidToken}},
	{http.StatusLocked, []error{orchestrators.ErrAccountLocked}},
	{http.StatusForbidden, []error{
		orchestrators.ErrForbidden, orchestrators.ErrSelfAction, orchestrators.ErrAccountDisabled,
		company.ErrInactive,
	}},
	{http.StatusConflict, []error{
		lead.ErrDuplicate, lead.ErrInvalidTransition, lead.ErrClosed,
		orchestrators.ErrEmailTaken, orchestrators.ErrEmployeeHasRecords,
		customer.ErrHasRecords, dealStore.ErrBalanceChanged,
		deal.ErrSameStatus, deal.ErrPaymentOnLostDeal,
		followup.ErrNotPending, ams.ErrNotScheduled,
		outbox.ErrTerminal, outbox.ErrMaxRetries,
	}},
	{http.StatusTooManyRequests, []error{otp.ErrTooManyAttempts}},
	{http.StatusRequestEntityTooLarge, []error{spreadsheet.ErrTooLarge}},
	{http.StatusBadRequest, []error{
		account.ErrInvalidEmail, account.ErrEmptyEmail, account.ErrEmptyName, account.ErrEmptyCompany,
		account.ErrInvalidRole, account.ErrEmptyPassword, account.ErrPasswordTooShort,
		account.ErrWrongPassword, account.ErrSamePassword, orchestrators.ErrCurrentPasswordWrong,
		company.ErrEmptyName, company.ErrNameTooLong, company.ErrInvalidEmail,
		otp.ErrNotFound, otp.ErrExpired, otp.ErrInvalid, otp.ErrNotVerified,
		lead.ErrEmptyName, lead.ErrNameTooLong, lead.ErrNoContact, lead.ErrInvalidEmail,
		lead.ErrInvalidPhone, lead.ErrInvalidSource, lead.ErrInvalidStatus,
		lead.ErrReasonRequired, lead.ErrNegativeValue,
		customer.ErrEmptyName, customer.ErrNameTooLong, customer.ErrNotesTooLong,
		deal.ErrEmptyCustomer, deal.ErrEmptyTitle, deal.ErrTitleTooLong, deal.ErrNegativeValue,
		deal.ErrInvalidStatus, deal.ErrValueBelowPaid, deal.ErrInvalidAmount, deal.ErrOverpayment,
		deal.ErrEmptyOwner,
		ams.ErrEmptyCustomer, ams.ErrEmptyAssignee, ams.ErrEmptyServiceType, ams.ErrInvalidFrequency,
		ams.ErrInvalidContract, ams.ErrOutsideContract, ams.ErrRemarksRequired,
		ams.ErrInvalidDueFilter, ams.ErrEmptyScheduledTime,
		followup.ErrEmptyLead, followup.ErrEmptyAssignee, followup.ErrEmptySchedule,
		followup.ErrInvalidMode, followup.ErrOutcomeRequired, followup.ErrNextBeforeNow,
		followup.ErrNoteTooLong, followup.ErrInvalidDueFilter,
		report.ErrInvalidMetric, report.ErrInvalidKind, report.ErrEmptyWindow, report.ErrWindowTooLong,
		listutil.ErrInvalidDate, listutil.ErrInvalidRange,
		orchestrators.ErrInvalidAssignee, orchestrators.ErrDealCustomerMismatch,
		spreadsheet.ErrUnsupportedFormat, spreadsheet.ErrNoWorksheet,
		spreadsheet.ErrMultipleSheets, spreadsheet.ErrEmptySheet,
	}},
}

// statusFor returns the response code for err, or 500 when it is unexpected.
func statusFor(err error) int {
	var uve *orchestrators.UploadValidationError
	if errors.As(err, &uve) {
		return http.StatusBadRequest
	}
	for _, group := range errorStatuses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status code. Unexpected errors are logged and
// answered with a generic 500 so internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		internalError(w, err)
		return
	}
	if status == http.StatusForbidden {
		slog.Warn("auth_denied", "path", r.URL.Path, "reason", err.Error())
	}
	http.Error(w, err.Error(), status)
}
