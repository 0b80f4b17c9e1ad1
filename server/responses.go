package server

import (
	"encoding/json"
	"net/http"
	"time"

	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
)

const (
	contentTypeJSON  = "application/json; charset=utf-8"
	maxAuthBodyBytes = 1 << 16
)

type errorResponse struct {
	Error             string     `json:"error"`
	ErrorDescription  string     `json:"error_description"`
	RemainingAttempts *int       `json:"remainingAttempts,omitempty"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
}

// StatusFor maps an authentication failure to its HTTP status.
func StatusFor(kind autherrors.Kind) int {
	switch kind {
	case autherrors.InvalidCredentials, autherrors.InvalidToken, autherrors.TokenExpired:
		return http.StatusUnauthorized
	case autherrors.AccountLocked:
		return http.StatusLocked
	case autherrors.AccountInactive, autherrors.PartnershipInactive:
		return http.StatusForbidden
	case autherrors.ConfigurationError:
		return http.StatusInternalServerError
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: errorCode, ErrorDescription: description})
}

// writeAuthError renders err with only its kind, generic message and client hints.
// The cause is never written to the response.
func writeAuthError(w http.ResponseWriter, err error) {
	ae := autherrors.AsAuthError(err)
	resp := errorResponse{
		Error:             string(ae.Kind),
		ErrorDescription:  ae.Kind.Message(),
		RemainingAttempts: ae.RemainingAttempts,
		LockedUntil:       ae.LockedUntil,
	}
	if ae.Kind == autherrors.TokenExpired || ae.Kind == autherrors.InvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	writeJSON(w, StatusFor(ae.Kind), resp)
}
