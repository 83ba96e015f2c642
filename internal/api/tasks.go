package api

import (
	"net/http"
	"os"

	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/google/uuid"
)

// handleTaskVerb builds the handler for POST /api/tasks/<verb>/<id>.
func (s *Server) handleTaskVerb(cmd func() storage.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		if err := s.jobs.ModifyTask(id, cmd()); err != nil {
			s.logger.Warn("failed to modify task", "task_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to modify task")
			return
		}
		writeStatus(w, http.StatusAccepted)
	}
}

// handleTaskLog builds the handler serving a per-task log file.
func (s *Server) handleTaskLog(pathFor func(uuid.UUID) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		path := pathFor(id)
		if _, err := os.Stat(path); err != nil {
			writeError(w, http.StatusNotFound, "log not available")
			return
		}
		http.ServeFile(w, r, path)
	}
}
