package http

import (
	"context"
	"errors"
	"net/http"

	"invoicedash/internal/backend"
	"invoicedash/internal/core"
	"invoicedash/internal/log"
	gsheet "invoicedash/internal/sheets/google"
	"invoicedash/internal/session"
)

// validationErrors are user input problems, reported as 422 with their text.
var validationErrors = []error{
	core.ErrEmptyCustomerName,
	core.ErrInvalidEmail,
	core.ErrEmptyProduct,
	core.ErrEmptyDescription,
	core.ErrEmptyInvoiceLink,
	core.ErrInvalidPrice,
	core.ErrNegativePrice,
	core.ErrUnknownStatus,
	core.ErrInvalidDate,
	core.ErrEmptyWorksheet,
	core.ErrRowOutOfRange,
	core.ErrDuplicateRowEdit,
	core.ErrMissingRecipient,
	ErrBadRow,
	errMissingSpreadsheet,
	errNothingToSave,
}

var credentialErrors = []error{
	gsheet.ErrCredentialsEmpty,
	gsheet.ErrCredentialsMalformed,
	gsheet.ErrCredentialsType,
	gsheet.ErrCredentialsMissing,
	gsheet.ErrCredentialsTrailing,
	backend.ErrCredentialsRequired,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// classifyError picks the status code, the message shown to the user and
// the error type logged for err.
func classifyError(err error) (status int, message string, errType string) {
	var (
		schemaErr    *core.SchemaError
		writeErr     *core.StoreWriteError
		transportErr *core.TransportError
		exportErr    *core.ExportError
	)

	switch {
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict, "Your session has ended. Connect again to continue.", log.ErrorTypeNotFound
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict, "No record store is configured. Upload service account credentials to connect.", log.ErrorTypeConfiguration
	case errors.Is(err, errUploadDisabled):
		return http.StatusForbidden, "Credential uploads are disabled on this server.", log.ErrorTypeAuth
	case errors.Is(err, session.ErrNotLoaded):
		return http.StatusConflict, "Open a worksheet first.", log.ErrorTypeNotFound
	case isAny(err, validationErrors):
		return http.StatusUnprocessableEntity, err.Error(), log.ErrorTypeValidation
	case isAny(err, credentialErrors):
		return http.StatusBadRequest, "Invalid credentials: " + err.Error(), log.ErrorTypeAuth
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity, schemaErr.Error(), log.ErrorTypeSchema
	case errors.As(err, &writeErr):
		return http.StatusBadGateway, "The record store rejected the change: " + writeErr.Err.Error(), log.ErrorTypeStoreWrite
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, transportErr.Error(), log.ErrorTypeTransport
	case errors.As(err, &exportErr):
		return http.StatusInternalServerError, exportErr.Error(), log.ErrorTypeExport
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The record store did not answer in time.", log.ErrorTypeTimeout
	default:
		return http.StatusBadGateway, "Could not reach the record store: " + err.Error(), log.ErrorTypeNetwork
	}
}

// writeError logs err and answers with an error fragment. htmx requests
// also get a notification trigger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message, errType := classifyError(err)

	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldError, err, log.FieldErrorType, errType, log.FieldStatusCode, status)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err, log.FieldErrorType, errType, log.FieldStatusCode, status)
	}

	b := ErrorResponse(status, message)
	if isHTMX(r) {
		b.TriggerErrorNotification(message)
	}
	b.Write(w)
}
