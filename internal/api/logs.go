package api

import (
	"net/http"
	"strconv"
)

const (
	defaultRecentLogsLimit = 100
	maxRecentLogsLimit     = 1000
)

// handleRecentLogs implements GET /api/logs: the most recent audit-log
// entries, newest first, for operators who want to inspect access.log
// without a separate tailing tool. ?limit= caps the count, default 100.
func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLogsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxRecentLogsLimit {
		limit = maxRecentLogsLimit
	}
	writeJSON(w, http.StatusOK, s.audit.GetRecentLogs(limit))
}
