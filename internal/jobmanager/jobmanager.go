// Package jobmanager owns the server's single source of truth for
// job/task state transitions: it reconciles the durable storage.Store
// against the live downloadmgr.Manager worker pool on a fixed tick,
// and exposes the read/write surface the HTTP control layer calls
// into.
package jobmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olanti-p/youtube-dl-project/internal/announce"
	"github.com/olanti-p/youtube-dl-project/internal/downloadmgr"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/storage"
	"github.com/olanti-p/youtube-dl-project/internal/task"

	"github.com/google/uuid"
)

const tickInterval = 100 * time.Millisecond

// Manager is the job-manager singleton. One instance runs for the
// lifetime of the server process; its Run loop is the only writer
// that is allowed to call both the store and the pool without a
// caller already holding either lock, since it always acquires DB
// before Pool per the lock-ordering discipline documented on
// downloadmgr.Manager.
type Manager struct {
	store       *storage.Store
	pool        *downloadmgr.Manager
	announce    *announce.System
	outputDir   func() string
	logger      *slog.Logger

	stop         *procworker.ControlHandle
	jobsDirty    *dirtyMarker
	cleanupDirty *dirtyMarker
}

// New builds a Manager. outputDir is read on every scheduling pass
// rather than captured once, so a config hot-reload that changes the
// download folder takes effect without restarting the manager.
func New(store *storage.Store, pool *downloadmgr.Manager, ann *announce.System, outputDir func() string, logger *slog.Logger) *Manager {
	return &Manager{
		store:        store,
		pool:         pool,
		announce:     ann,
		outputDir:    outputDir,
		logger:       logger,
		stop:         procworker.NewControlHandle(),
		jobsDirty:    newDirtyMarker(),
		cleanupDirty: newDirtyMarker(),
	}
}

// GetStopHandle returns the handle used to request a graceful
// shutdown of the scheduler loop (all jobs are cancelled first).
func (m *Manager) GetStopHandle() *procworker.ControlHandle {
	return m.stop
}

// CreateJob inserts a new job and marks the scheduler dirty so its
// FetchUrlContents task gets picked up on the next tick.
func (m *Manager) CreateJob(url, format string) (storage.JobView, error) {
	view, err := m.store.CreateJob(url, format)
	if err != nil {
		return storage.JobView{}, err
	}
	m.markDirty()
	return view, nil
}

// ModifyAllJobs signals the pool and writes the store for every job,
// in that order, holding both locks only as long as each call needs.
func (m *Manager) ModifyAllJobs(cmd storage.Command) error {
	m.pool.ModifyAllTasks(cmd)
	if err := m.store.ModifyAllJobs(cmd); err != nil {
		return err
	}
	m.markDirty()
	return nil
}

// ModifyJob signals and persists cmd for one job's tasks.
func (m *Manager) ModifyJob(jobID uuid.UUID, cmd storage.Command) error {
	m.pool.ModifyTasksByJob(jobID, cmd)
	if err := m.store.ModifyJob(jobID, cmd); err != nil {
		return err
	}
	m.markDirty()
	return nil
}

// ModifyTask signals and persists cmd for a single task.
func (m *Manager) ModifyTask(taskID uuid.UUID, cmd storage.Command) error {
	m.pool.ModifyTask(taskID, cmd)
	if err := m.store.ModifyTask(taskID, cmd); err != nil {
		return err
	}
	m.markDirty()
	return nil
}

// GetJob loads one job and overlays live progress for any task
// currently Processing in the pool.
func (m *Manager) GetJob(jobID uuid.UUID) (storage.JobView, error) {
	view, err := m.store.GetJob(jobID)
	if err != nil {
		return storage.JobView{}, err
	}
	return m.overlayProgress(view), nil
}

// GetJobProgress returns a live progress snapshot for taskID, or
// ok=false if it is not currently running.
func (m *Manager) GetJobProgress(taskID uuid.UUID) (task.Progress, bool) {
	return m.pool.GetWorkerProgress(taskID)
}

// GetAllJobs loads every job, newest first, each with live progress
// overlaid the same way GetJob does.
func (m *Manager) GetAllJobs() ([]storage.JobView, error) {
	views, err := m.store.GetAllJobs()
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i] = m.overlayProgress(views[i])
	}
	return views, nil
}

// overlayProgress attaches a live snapshot for every Processing task in
// view, pulled from the pool rather than the store.
func (m *Manager) overlayProgress(view storage.JobView) storage.JobView {
	for _, t := range view.Tasks {
		if t.Status != storage.TaskProcessing {
			continue
		}
		p, ok := m.GetJobProgress(t.TaskID)
		if !ok {
			continue
		}
		if view.Progress == nil {
			view.Progress = make(map[uuid.UUID]storage.TaskProgress)
		}
		view.Progress[t.TaskID] = storage.TaskProgress{
			Percent:         p.Percent,
			BytesEstimate:   p.BytesEstimate,
			BytesDownloaded: p.BytesDownloaded,
		}
	}
	return view
}

// GetOverallStats reports the global task-count breakdown used by
// /api/status.
func (m *Manager) GetOverallStats() (storage.TaskStats, error) {
	return m.store.GetGlobalTaskStats()
}

func (m *Manager) markDirty() {
	m.jobsDirty.markDirty()
	m.cleanupDirty.markDirty()
}

// Run is the scheduler loop: a 100ms tick that reconciles durable
// state against the live pool. It returns once a stop has been
// requested and every in-flight task has settled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("started job manager")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	doStop := false
	sentStopSignals := false

	for !doStop {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		doStop = m.stop.IsStopped()
		if doStop && !sentStopSignals {
			sentStopSignals = true
			if err := m.ModifyAllJobs(storage.CancelCommand()); err != nil {
				return fmt.Errorf("cancelling all jobs on shutdown: %w", err)
			}
		}

		if m.cleanupDirty.isDirty() {
			busy, err := m.pollPendingOperations()
			if err != nil {
				return err
			}
			if !busy {
				m.cleanupDirty.markClean()
			}
		}

		didWork, err := m.pollDone()
		if err != nil {
			return err
		}
		if didWork {
			m.cleanupDirty.markDirty()
			m.jobsDirty.markDirty()
		}

		if !doStop && m.jobsDirty.isDirty() {
			if err := m.pollStart(ctx); err != nil {
				return err
			}
			m.jobsDirty.markClean()
		}
	}

	m.logger.Info("shut down job manager")
	return nil
}

// pollPendingOperations cleans up settled tasks flagged
// pending_cleanup/pending_delete. It locks the store, releases it,
// then re-locks store and pool together, so a concurrent HTTP request
// that needs the same two locks never deadlocks against us.
func (m *Manager) pollPendingOperations() (bool, error) {
	pending, err := m.store.GetPendingOperations()
	if err != nil {
		return false, fmt.Errorf("scanning pending operations: %w", err)
	}
	if !pending.IsEmpty() {
		for _, taskID := range pending.Cleanup {
			m.logger.Warn("cleaning up after task", "task_id", taskID)
			if err := m.pool.CleanUpAfterWorker(taskID); err != nil {
				m.logger.Error("cleanup failed", "task_id", taskID, "error", err)
			}
		}
		if err := m.store.ConfirmCleanup(pending.Cleanup); err != nil {
			return false, fmt.Errorf("confirming cleanup: %w", err)
		}
		if err := m.store.ConfirmDeletion(pending.Delete); err != nil {
			return false, fmt.Errorf("confirming deletion: %w", err)
		}
	}
	return pending.NumBusy > 0, nil
}

// pollDone drains finished workers from the pool, persists their
// terminal status, and dispatches job-specific follow-up (content
// expansion, announcements).
func (m *Manager) pollDone() (bool, error) {
	results := m.pool.PollDone()
	if len(results) == 0 {
		return false, nil
	}
	for _, r := range results {
		if err := m.store.ModifyTask(r.Task.TaskID, storage.TaskStatusChangeCommand(r.Status)); err != nil {
			return false, fmt.Errorf("persisting task result for %s: %w", r.Task.TaskID, err)
		}
		if err := m.handleTaskResult(r); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Manager) handleTaskResult(r downloadmgr.Result) error {
	if err := m.announce.OnTaskResult(r.Task, r.Status); err != nil {
		m.logger.Error("announce failed", "task_id", r.Task.TaskID, "error", err)
	}
	if r.Task.Kind == storage.TaskKindFetchURLContents && r.Status == storage.TaskDone {
		return m.handleContentsFetched(r)
	}
	return nil
}

// handleContentsFetched expands a successfully-fetched URL into its
// constituent DownloadAndConvert tasks, or announces that nothing was
// found.
func (m *Manager) handleContentsFetched(r downloadmgr.Result) error {
	contents := r.Output.Contents
	if contents == nil || contents.IsEmpty() {
		return m.announce.OnContentsEmpty(r.Task.OwnerJobID)
	}

	now := time.Now().UTC()
	newTasks := make([]storage.Task, 0, len(contents.Videos))
	for _, v := range contents.Videos {
		newTasks = append(newTasks, storage.Task{
			TaskID:     uuid.New(),
			OwnerJobID: r.Task.OwnerJobID,
			Status:     storage.TaskWaiting,
			Kind:       storage.TaskKindDownloadAndConvert,
			URL:        v.URL,
			Format:     r.Task.Format,
			Thumbnail:  v.Thumbnail,
			Title:      v.Title,
			CreatedAt:  now,
		})
	}

	cmd := storage.JobUpdatedCommand(contents.Title, contents.Thumbnail, newTasks)
	if err := m.store.ModifyJob(r.Task.OwnerJobID, cmd); err != nil {
		return fmt.Errorf("recording fetched contents for job %s: %w", r.Task.OwnerJobID, err)
	}
	m.markDirty()
	return nil
}

// pollStart admits as many Waiting tasks as there is free pool
// capacity.
func (m *Manager) pollStart(ctx context.Context) error {
	free := m.pool.NumFreeWorkers()
	tasks, err := m.store.AcquireTasks(free)
	if err != nil {
		return fmt.Errorf("acquiring tasks: %w", err)
	}
	for _, t := range tasks {
		m.pool.StartTask(ctx, t, m.outputDir())
	}
	return nil
}
