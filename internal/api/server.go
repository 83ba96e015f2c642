// Package api is the authenticated HTTP control surface: job/task
// commands, status, config, and session management over a chi router
// with dual-header (api-token / session-token) auth.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/jobmanager"
	"github.com/olanti-p/youtube-dl-project/internal/security"
	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ConfigStore is the subset of config lifecycle the server needs:
// reading the live server config and requesting a hot-reload restart
// carrying a replacement.
type ConfigStore interface {
	Current() config.ServerConfig
	RequestReload(config.ServerConfig) error
}

// Server wires the job manager, durable store, tool config and config
// store into a chi router implementing the full route table.
type Server struct {
	jobs   *jobmanager.Manager
	store  *storage.Store
	cfg    ConfigStore
	tool   config.ToolConfig
	fs     *fsnode.Layout
	audit  *security.AuditLogger
	logger *slog.Logger
	router *chi.Mux

	stopServer func()

	newJobLimiter *requestLimiter
}

// New builds a Server and its route table. stopServer is invoked by
// POST /api/shutdown_server and by a successful POST /api/config to
// request a process-level graceful shutdown; the outer CLI driver is
// responsible for actually restarting when a config change was
// requested.
func New(jobs *jobmanager.Manager, store *storage.Store, cfg ConfigStore, tool config.ToolConfig, fs *fsnode.Layout, audit *security.AuditLogger, logger *slog.Logger, stopServer func()) *Server {
	s := &Server{
		jobs:          jobs,
		store:         store,
		cfg:           cfg,
		tool:          tool,
		fs:            fs,
		audit:         audit,
		logger:        logger,
		router:        chi.NewRouter(),
		stopServer:    stopServer,
		newJobLimiter: newRequestLimiter(2, 5),
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying handler, e.g. for http.Server.Handler
// or for mounting a static UI file server alongside it.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Post("/api/ping", s.handlePing)
	s.router.Post("/api/sessions/new", s.handleNewSession)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.With(s.newJobLimiter.middleware).Post("/api/jobs/new", s.handleNewJob)
		r.Get("/api/jobs/get/{id}", s.handleGetJob)
		r.Get("/api/jobs/get_all", s.handleGetAllJobs)
		for _, v := range jobVerbs {
			r.Post("/api/jobs/"+v.path+"/{id}", s.handleJobVerb(v.cmd))
			r.Post("/api/jobs/"+v.path+"_all", s.handleAllJobsVerb(v.cmd))
		}
		for _, v := range jobOnlyVerbs {
			r.Post("/api/jobs/"+v.path+"/{id}", s.handleJobVerb(v.cmd))
			r.Post("/api/jobs/"+v.path+"_all", s.handleAllJobsVerb(v.cmd))
		}

		r.Get("/api/tasks/get_stdout/{id}", s.handleTaskLog(s.fs.TaskStdoutLog))
		r.Get("/api/tasks/get_stderr/{id}", s.handleTaskLog(s.fs.TaskStderrLog))
		for _, v := range taskVerbs {
			r.Post("/api/tasks/"+v.path+"/{id}", s.handleTaskVerb(v.cmd))
		}

		r.Get("/api/status", s.handleStatus)
		r.Get("/api/logs", s.handleRecentLogs)
		r.Get("/api/config", s.handleGetConfig)
		r.Post("/api/config", s.handleSetConfig)
		r.Get("/api/formats", s.handleFormats)
		r.Post("/api/shutdown_server", s.handleShutdown)
		r.Post("/api/sessions/expire_all", s.handleExpireAllSessions)
	})
}

type verbCommand struct {
	path string
	cmd  func() storage.Command
}

// jobVerbs and taskVerbs are the five commands exposed per-job and
// per-task.
var jobVerbs = []verbCommand{
	{"pause", storage.PauseCommand},
	{"resume", storage.ResumeCommand},
	{"cancel", storage.CancelCommand},
	{"retry", storage.RetryCommand},
	{"delete", storage.DeleteCommand},
}

var taskVerbs = jobVerbs

// jobOnlyVerbs are job-level commands with no task-level equivalent:
// Prioritized lives on Job, not Task.
var jobOnlyVerbs = []verbCommand{
	{"prioritize", func() storage.Command { return storage.SetPrioritizedCommand(true) }},
	{"deprioritize", func() storage.Command { return storage.SetPrioritizedCommand(false) }},
}

func clientIP(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-For"); h != "" {
		return h
	}
	return r.RemoteAddr
}

func (s *Server) auditLog(r *http.Request, status int, details string) {
	action := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
	s.audit.Log(clientIP(r), r.UserAgent(), action, status, details)
}

func writeStatus(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
