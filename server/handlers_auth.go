package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginHandler handles POST /login.
//
//	200 {accessToken, refreshToken, principal}
//	401 {remainingAttempts?}  bad credentials
//	423 {lockedUntil}         locked
//	403                       inactive account or partnership
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "identifier and password are required", http.StatusBadRequest)
			return
		}

		res, err := s.auth.Login(r.Context(), req.Identifier, req.Password)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// RefreshHandler handles POST /refresh. The refresh token is echoed back unchanged.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed request body", http.StatusBadRequest)
			return
		}
		if req.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "refreshToken is required", http.StatusBadRequest)
			return
		}

		res, err := s.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
