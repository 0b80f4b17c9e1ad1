package server

import (
	"net/http"

	"github.com/jrsteele09/ses-client-auth/engineers"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/session"
	"github.com/jrsteele09/ses-client-auth/visibility"
)

type meResponse struct {
	Principal  *session.Principal `json:"principal"`
	Visibility visibility.Filter  `json:"visibility"`
}

type engineersResponse struct {
	Engineers []engineers.Engineer `json:"engineers"`
	Count     int                  `json:"count"`
}

// MeHandler returns the caller's principal with the live visibility filter.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, autherrors.New(autherrors.InvalidToken))
			return
		}

		filter, err := s.resolver.ResolveFilter(r.Context(), principal)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{Principal: principal, Visibility: filter})
	}
}

// ListEngineersHandler lists the engineers visible under the caller's current grant.
func (s *Server) ListEngineersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, autherrors.New(autherrors.InvalidToken))
			return
		}

		filter, err := s.resolver.ResolveFilter(r.Context(), principal)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		list, err := s.engineers.List(r.Context(), filter)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", principal.UserID).Msg("engineer list failed")
			writeAuthError(w, autherrors.WithCause(autherrors.ServiceUnavailable, err))
			return
		}
		writeJSON(w, http.StatusOK, engineersResponse{Engineers: list, Count: len(list)})
	}
}

// GetEngineerHandler returns one engineer. Engineers outside the caller's grant are reported as not found.
func (s *Server) GetEngineerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, autherrors.New(autherrors.InvalidToken))
			return
		}

		id := r.PathValue("id")
		visible, err := s.resolver.CanView(r.Context(), principal, id)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		if !visible {
			writeJSONError(w, "not_found", "engineer not found", http.StatusNotFound)
			return
		}

		e, err := s.engineers.Find(r.Context(), id)
		if err != nil {
			if autherrors.Is(err, autherrors.ErrNotFound) {
				writeJSONError(w, "not_found", "engineer not found", http.StatusNotFound)
				return
			}
			s.logger.Error().Err(err).Str("engineer_id", id).Msg("engineer lookup failed")
			writeAuthError(w, autherrors.WithCause(autherrors.ServiceUnavailable, err))
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// HealthzHandler reports whether the backing stores are reachable.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			if err := s.health(r.Context()); err != nil {
				s.logger.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
