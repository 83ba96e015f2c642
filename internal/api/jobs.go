package api

import (
	"encoding/json"
	"net/http"

	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// handleNewJob implements POST /api/jobs/new, a form post of url+format.
func (s *Server) handleNewJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form body")
		return
	}
	url := r.FormValue("url")
	format := r.FormValue("format")
	if url == "" || format == "" {
		writeError(w, http.StatusBadRequest, "url and format are required")
		return
	}

	view, err := s.jobs.CreateJob(url, format)
	if err != nil {
		s.logger.Warn("failed to create job", "url", url, "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	view, err := s.jobs.GetJob(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetAllJobs(w http.ResponseWriter, r *http.Request) {
	views, err := s.jobs.GetAllJobs()
	if err != nil {
		s.logger.Warn("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleJobVerb builds the handler for POST /api/jobs/<verb>/<id>.
func (s *Server) handleJobVerb(cmd func() storage.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job id")
			return
		}
		if err := s.jobs.ModifyJob(id, cmd()); err != nil {
			s.logger.Warn("failed to modify job", "job_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to modify job")
			return
		}
		writeStatus(w, http.StatusAccepted)
	}
}

// handleAllJobsVerb builds the handler for POST /api/jobs/<verb>_all.
func (s *Server) handleAllJobsVerb(cmd func() storage.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.jobs.ModifyAllJobs(cmd()); err != nil {
			s.logger.Warn("failed to modify all jobs", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to modify jobs")
			return
		}
		writeStatus(w, http.StatusAccepted)
	}
}
