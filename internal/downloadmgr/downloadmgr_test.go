package downloadmgr

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/storage"
	"github.com/olanti-p/youtube-dl-project/internal/task"

	"github.com/google/uuid"
)

func testRunner(t *testing.T, script string) *task.Runner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tool := config.ToolConfig{
		CommandFetchURL: config.CommandTemplate{Args: []string{"-c", script}},
	}
	fs := fsnode.New(t.TempDir())
	return task.NewRunner("sh", tool, fs, procworker.New(logger), logger)
}

func newTask(jobID uuid.UUID) storage.Task {
	return storage.Task{
		TaskID:     uuid.New(),
		OwnerJobID: jobID,
		Kind:       storage.TaskKindFetchURLContents,
		Status:     storage.TaskWaiting,
		URL:        "https://example.com/v",
	}
}

func waitForResult(t *testing.T, m *Manager, taskID uuid.UUID) Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, r := range m.PollDone() {
			if r.Task.TaskID == taskID {
				return r
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for task %s", taskID)
	return Result{}
}

func TestStartTaskCompletesSuccessfully(t *testing.T) {
	script := `echo '{"_type":"video","original_url":"https://example.com/v","title":"t","thumbnails":[]}'`
	runner := testRunner(t, script)
	m := New(2, runner, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.fs = fsnode.New(t.TempDir())

	jobID := uuid.New()
	tk := newTask(jobID)

	if m.NumFreeWorkers() != 2 {
		t.Fatalf("expected 2 free workers, got %d", m.NumFreeWorkers())
	}
	m.StartTask(context.Background(), tk, t.TempDir())
	if m.NumFreeWorkers() != 1 {
		t.Fatalf("expected 1 free worker after start, got %d", m.NumFreeWorkers())
	}

	result := waitForResult(t, m, tk.TaskID)
	if result.Status != storage.TaskDone {
		t.Fatalf("expected TaskDone, got %v", result.Status)
	}
	if result.Output.Contents == nil || result.Output.Contents.Videos[0].URL != "https://example.com/v" {
		t.Fatalf("unexpected output: %+v", result.Output)
	}
	if m.NumFreeWorkers() != 2 {
		t.Fatalf("expected worker slot to be freed, got %d free", m.NumFreeWorkers())
	}
}

func TestModifyTaskCancelStopsWorker(t *testing.T) {
	runner := testRunner(t, "sleep 5")
	m := New(1, runner, fsnode.New(t.TempDir()), slog.New(slog.NewTextHandler(io.Discard, nil)))

	jobID := uuid.New()
	tk := newTask(jobID)
	m.StartTask(context.Background(), tk, t.TempDir())

	time.Sleep(20 * time.Millisecond)
	m.ModifyTask(tk.TaskID, storage.CancelCommand())

	result := waitForResult(t, m, tk.TaskID)
	if result.Status != storage.TaskCancelled {
		t.Fatalf("expected TaskCancelled, got %v", result.Status)
	}
}
