package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/storage"
)

// Error codes returned in the "error" field of non-2xx responses. Rejected
// candidates use the violation code instead (CARBS_EXCEED_CAP, ...).
const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeConflict    = "CONFLICT"
	codeTooLarge    = "BODY_TOO_LARGE"
	codeUnavailable = "STORAGE_UNAVAILABLE"
	codeInternal    = "INTERNAL"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
// On failure it writes the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidation, "invalid json: "+err.Error())
	return false
}

// fail maps an error onto a status code. Unexpected errors are logged and
// hidden behind a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, codeValidation, ve.Error())
	case errors.Is(err, decision.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, decision.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, decision.ErrNotPending):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
