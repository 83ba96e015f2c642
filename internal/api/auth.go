package api

import (
	"net/http"

	"github.com/google/uuid"
)

// requireAuth authorizes a request iff exactly one api-token header and
// exactly one session-token header (UUID-shaped) are present and
// resolve to a user via ValidateSession. Absence of both headers is
// "unauthenticated"; anything else that fails is a 401, distinct from
// the unauthenticated case only in the audit log detail.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiTokens := r.Header.Values("api-token")
		sessionTokens := r.Header.Values("session-token")

		if len(apiTokens) == 0 && len(sessionTokens) == 0 {
			s.auditLog(r, http.StatusUnauthorized, "no auth provided")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if len(apiTokens) != 1 || len(sessionTokens) != 1 {
			s.auditLog(r, http.StatusUnauthorized, "malformed auth headers")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sessionToken, err := uuid.Parse(sessionTokens[0])
		if err != nil {
			s.auditLog(r, http.StatusUnauthorized, "malformed session-token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := s.store.ValidateSession(apiTokens[0], sessionToken)
		if err != nil {
			s.auditLog(r, http.StatusInternalServerError, err.Error())
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			s.auditLog(r, http.StatusUnauthorized, "invalid session")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
