package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/middleware"
)

// Error kinds carried in the response envelope.
const (
	kindUnauthenticated    = "Unauthenticated"
	kindInvalidCredentials = "InvalidCredentials"
	kindAccountSuspended   = "AccountSuspended"
	kindForbidden          = "Forbidden"
	kindNotFound           = "NotFound"
	kindValidation         = "ValidationFailed"
	kindQuotaExceeded      = "QuotaExceeded"
	kindAlreadyOnPlan      = "AlreadyOnPlan"
	kindConflict           = "Conflict"
	kindPayloadTooLarge    = "PayloadTooLarge"
	kindInternal           = "Internal"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "request body too large", nil)
		} else {
			writeError(w, http.StatusBadRequest, kindValidation, "invalid request body", nil)
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// principal returns the caller attached by the auth middleware. Routes
// that call it are mounted behind middleware.Auth, so a nil result is a
// wiring bug and is answered with 401.
func principal(w http.ResponseWriter, r *http.Request) (*user.Principal, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, kindUnauthenticated, "authentication required", nil)
		return nil, false
	}
	return p, true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type quotaDetails struct {
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string, details any) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Kind: kind, Message: message, Details: details}})
}

// writeDomainError maps service errors onto the error envelope. Internal
// failures are logged and their message is only exposed when debug is set.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	var (
		verr  *domain.ValidationError
		quota *domain.QuotaExceededError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, kindValidation, "validation failed", verr.Fields)
	case errors.As(err, &quota):
		writeError(w, http.StatusForbidden, kindQuotaExceeded, quota.Error(),
			quotaDetails{Current: quota.Current, Limit: quota.Limit})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, kindInvalidCredentials, "invalid email or password", nil)
	case errors.Is(err, domain.ErrAccountSuspended):
		writeError(w, http.StatusUnauthorized, kindAccountSuspended, "account suspended", nil)
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, kindUnauthenticated, "authentication required", nil)
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, kindForbidden, "insufficient permissions", nil)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "resource not found", nil)
	case errors.Is(err, domain.ErrAlreadyOnPlan):
		writeError(w, http.StatusConflict, kindAlreadyOnPlan, domain.ErrAlreadyOnPlan.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, kindConflict, "resource already exists", nil)
	default:
		writeInternalError(w, r, err, debug)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	msg := "internal server error"
	if debug {
		msg = err.Error()
	}
	writeError(w, http.StatusInternalServerError, kindInternal, msg, nil)
}
