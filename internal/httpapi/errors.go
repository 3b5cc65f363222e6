package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// statusFor maps an error kind to its HTTP status code.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAccountNotFound, domain.KindRecipientNotFound:
		return http.StatusNotFound
	case domain.KindTransferInProgress, domain.KindAmbiguousRecipient:
		return http.StatusConflict
	case domain.KindInsufficientFunds, domain.KindLimitExceeded, domain.KindSelfTransferNotAllowed:
		return http.StatusUnprocessableEntity
	case domain.KindAccountSuspended:
		return http.StatusLocked
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// newErrorView describes err for clients. Internal causes are not exposed.
func newErrorView(err error) *ErrorView {
	view := &ErrorView{
		ID:      uuid.New(),
		Kind:    string(domain.KindOf(err)),
		Message: domain.PublicMessage(err),
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		view.Field = validationErr.Field
	}
	var limitErr *domain.LimitExceededError
	if errors.As(err, &limitErr) {
		view.LimitKind = string(limitErr.Kind)
	}
	return view
}

// sendError writes the failure body of err with its mapped status.
func sendError(w http.ResponseWriter, err error) *ErrorView {
	view := newErrorView(err)
	sendJSON(w, statusFor(domain.KindOf(err)), ErrorResponse{Status: "failed", Error: view})
	return view
}

func sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
