// Package downloadmgr is the in-process worker pool that actually runs
// tasks: one goroutine per active task, reporting onto a done channel
// the job manager drains.
package downloadmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/storage"
	"github.com/olanti-p/youtube-dl-project/internal/task"

	"github.com/google/uuid"
)

// Result is what one finished worker reports back to the job manager.
type Result struct {
	Task   storage.Task
	Status storage.TaskStatus
	Output task.Result
}

type worker struct {
	task    storage.Task
	control *procworker.ControlHandle
	prog    *task.Progress
	done    chan workerOutcome
	result  workerOutcome
}

type workerOutcome struct {
	result task.Result
	err    error
}

// Manager owns the live set of running workers, bounded by
// NumFreeWorkers, guarded by its own mutex — always acquired AFTER the
// storage.Store's mutex, to keep lock order consistent everywhere
// both are held.
type Manager struct {
	mu sync.Mutex

	capacity int
	runner   *task.Runner
	fs       *fsnode.Layout
	logger   *slog.Logger

	workers       map[uuid.UUID]*worker
	tasksByJob    map[uuid.UUID]map[uuid.UUID]struct{}
}

func New(capacity int, runner *task.Runner, fs *fsnode.Layout, logger *slog.Logger) *Manager {
	return &Manager{
		capacity:   capacity,
		runner:     runner,
		fs:         fs,
		logger:     logger,
		workers:    make(map[uuid.UUID]*worker),
		tasksByJob: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// SetCapacity updates the worker cap, e.g. after a config hot-reload.
func (m *Manager) SetCapacity(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = n
}

// NumFreeWorkers mirrors num_free_workers: configured capacity minus
// workers currently running.
func (m *Manager) NumFreeWorkers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	free := m.capacity - len(m.workers)
	if free < 0 {
		return 0
	}
	return free
}

// StartTask spawns a goroutine to run t and registers its control
// handle/progress cell for later lookup.
func (m *Manager) StartTask(ctx context.Context, t storage.Task, outputDir string) {
	control := procworker.NewControlHandle()
	prog := &task.Progress{}
	w := &worker{task: t, control: control, prog: prog, done: make(chan workerOutcome, 1)}

	m.mu.Lock()
	m.workers[t.TaskID] = w
	jobSet, ok := m.tasksByJob[t.OwnerJobID]
	if !ok {
		jobSet = make(map[uuid.UUID]struct{})
		m.tasksByJob[t.OwnerJobID] = jobSet
	}
	jobSet[t.TaskID] = struct{}{}
	m.mu.Unlock()

	go func() {
		result, err := m.runRecovered(ctx, t, outputDir, prog, control)
		w.done <- workerOutcome{result: result, err: err}
	}()
}

// runRecovered runs the task and turns a panic into a plain error
// rather than letting it escape the goroutine and crash the process.
// Since the panic path never reaches procworker.ErrAborted/ErrPaused,
// classify always maps it to TaskFailed.
func (m *Manager) runRecovered(ctx context.Context, t storage.Task, outputDir string, prog *task.Progress, control *procworker.ControlHandle) (result task.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("worker panicked", "task_id", t.TaskID, "panic", r)
			err = fmt.Errorf("worker panicked: %v", r)
		}
	}()
	return m.runner.Run(ctx, t, outputDir, prog, control)
}

// GetWorkerProgress returns a live progress snapshot for a running
// DownloadAndConvert task, or ok=false if no worker is running it.
func (m *Manager) GetWorkerProgress(taskID uuid.UUID) (task.Progress, bool) {
	m.mu.Lock()
	w, ok := m.workers[taskID]
	m.mu.Unlock()
	if !ok {
		return task.Progress{}, false
	}
	return w.prog.Snapshot(), true
}

// PollDone drains and reports every worker whose goroutine has
// finished, mirroring poll_done's non-blocking sweep.
func (m *Manager) PollDone() []Result {
	m.mu.Lock()
	finished := make([]*worker, 0)
	for id, w := range m.workers {
		select {
		case outcome := <-w.done:
			delete(m.workers, id)
			if set, ok := m.tasksByJob[w.task.OwnerJobID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(m.tasksByJob, w.task.OwnerJobID)
				}
			}
			w.result = outcome
			finished = append(finished, w)
		default:
		}
	}
	m.mu.Unlock()

	results := make([]Result, 0, len(finished))
	for _, w := range finished {
		results = append(results, classify(w))
	}
	return results
}

func classify(w *worker) Result {
	out := w.result
	status := storage.TaskDone
	var outputResult task.Result
	switch {
	case out.err == nil:
		status = storage.TaskDone
		outputResult = out.result
	case out.err == procworker.ErrAborted:
		status = storage.TaskCancelled
	case out.err == procworker.ErrPaused:
		status = storage.TaskPaused
	default:
		status = storage.TaskFailed
	}
	return Result{Task: w.task, Status: status, Output: outputResult}
}

// ModifyTask signals a running worker's control handle according to
// command.Kind, mirroring signal_worker's Pause/Cancel/Delete dispatch.
func (m *Manager) ModifyTask(taskID uuid.UUID, cmd storage.Command) {
	m.mu.Lock()
	w, ok := m.workers[taskID]
	m.mu.Unlock()
	if !ok {
		return
	}
	signal(w.control, cmd)
}

// ModifyTasksByJob signals every running worker owned by jobID.
func (m *Manager) ModifyTasksByJob(jobID uuid.UUID, cmd storage.Command) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0)
	if set, ok := m.tasksByJob[jobID]; ok {
		for id := range set {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.ModifyTask(id, cmd)
	}
}

// ModifyAllTasks signals every running worker.
func (m *Manager) ModifyAllTasks(cmd storage.Command) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.ModifyTask(id, cmd)
	}
}

func signal(control *procworker.ControlHandle, cmd storage.Command) {
	switch cmd.Kind {
	case storage.CmdPause:
		control.Pause()
	case storage.CmdCancel, storage.CmdDelete:
		control.Stop()
	}
}

// CleanUpAfterWorker removes a finished task's scratch root entirely.
func (m *Manager) CleanUpAfterWorker(taskID uuid.UUID) error {
	if err := fsnode.RemoveIfExists(m.fs.TaskRoot(taskID)); err != nil {
		return fmt.Errorf("cleaning up task %s: %w", taskID, err)
	}
	return nil
}
