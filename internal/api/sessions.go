package api

import "net/http"

// handleNewSession implements POST /api/sessions/new: a form post of
// api_token, answered with a fresh session token. Unlike every other
// route this one requires no prior auth, since its whole purpose is
// to mint the session-token half of it.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form body")
		return
	}
	apiToken := r.FormValue("api_token")
	if apiToken == "" {
		writeError(w, http.StatusBadRequest, "api_token is required")
		return
	}

	sessionToken, err := s.store.NewSession(apiToken)
	if err != nil {
		s.auditLog(r, http.StatusBadRequest, "failed to create session: "+err.Error())
		writeError(w, http.StatusBadRequest, "invalid api_token")
		return
	}
	writeJSON(w, http.StatusOK, sessionToken)
}

// handleExpireAllSessions implements POST /api/sessions/expire_all.
func (s *Server) handleExpireAllSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ExpireAllSessions(); err != nil {
		s.logger.Warn("failed to expire sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to expire sessions")
		return
	}
	writeStatus(w, http.StatusOK)
}
