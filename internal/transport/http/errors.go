package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/walkin-queue/internal/domain"
	"github.com/rs/zerolog"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeNameRequired       = "name_required"
	codeRateLimited        = "rate_limited"
	codeStorageError       = "storage_error"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Success: false,
		Error:   msg,
		Code:    code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeQueueError maps a queue error onto a response. Validation messages go
// back to the caller verbatim; anything else is logged and hidden.
func writeQueueError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Code, verr.Message)
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("queue operation failed")
	if domain.IsStorage(err) {
		writeError(w, http.StatusInternalServerError, codeStorageError, "queue storage unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
