package api

import (
	"encoding/json"
	"net/http"

	"github.com/olanti-p/youtube-dl-project/internal/config"
)

// handleGetConfig implements GET /api/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Current())
}

// handleSetConfig implements POST /api/config: the posted config is
// validated and, if it passes, stashed as the pending reload and a
// graceful shutdown is requested — the outer CLI driver restarts the
// server with the new config, rather than reconfiguring in place.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form body")
		return
	}
	raw := r.FormValue("value")

	var newCfg config.ServerConfig
	if err := json.Unmarshal([]byte(raw), &newCfg); err != nil {
		s.auditLog(r, http.StatusBadRequest, "failed to parse proposed config: "+err.Error())
		writeError(w, http.StatusBadRequest, "invalid config JSON")
		return
	}
	if err := newCfg.CheckValidity(); err != nil {
		s.auditLog(r, http.StatusBadRequest, "config rejected: "+err.Error())
		writeError(w, http.StatusBadRequest, "config failed validation: "+err.Error())
		return
	}

	if err := s.cfg.RequestReload(newCfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to request reload")
		return
	}
	writeStatus(w, http.StatusAccepted)
	if s.stopServer != nil {
		s.stopServer()
	}
}

// handleFormats implements GET /api/formats.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tool.Formats)
}
