package jobmanager

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/olanti-p/youtube-dl-project/internal/announce"
	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/downloadmgr"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/storage"
	"github.com/olanti-p/youtube-dl-project/internal/task"
)

// TestGetJobOverlaysLiveProgress drives a download that reports one
// progress line before finishing, and checks GetJob surfaces it on the
// still-Processing task.
func TestGetJobOverlaysLiveProgress(t *testing.T) {
	fetchScript := `echo '{"_type":"video","original_url":"https://example.com/v","title":"My Video","thumbnails":[]}'`
	downloadScript := `echo "[dl] 1 100 50"; sleep 1; dest=$(echo "$1" | sed 's/%(ext)s/mp4/'); touch "$dest"`
	m, _ := newTestManager(t, fetchScript, downloadScript)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jv, err := m.CreateJob("https://example.com/v", "f")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitUntil(t, 5*time.Second, func() bool {
		view, err := m.GetJob(jv.JobID)
		if err != nil {
			return false
		}
		for _, tk := range view.Tasks {
			if tk.Kind != storage.TaskKindDownloadAndConvert || tk.Status != storage.TaskProcessing {
				continue
			}
			prog, ok := view.Progress[tk.TaskID]
			return ok && prog.Percent == 50
		}
		return false
	})

	m.GetStopHandle().Stop()
	cancel()
	<-done
}

func newTestManager(t *testing.T, fetchScript, downloadScript string) (*Manager, *storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open(filepath.Join(t.TempDir(), "state.db"), logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tool := config.ToolConfig{
		CommandFetchURL: config.CommandTemplate{Args: []string{"-c", fetchScript}},
		CommandDownload: config.CommandTemplate{Args: []string{"-c", downloadScript, "sh", "{{destination_file}}"}},
		Formats: []config.DownloadFormat{
			{ID: "f", Display: "f", Ext: "mp4"},
		},
	}
	fs := fsnode.New(t.TempDir())
	runner := task.NewRunner("sh", tool, fs, procworker.New(logger), logger)
	pool := downloadmgr.New(4, runner, fs, logger)
	ann := announce.New(false, store)

	outDir := t.TempDir()
	m := New(store, pool, ann, func() string { return outDir }, logger)
	return m, store
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition")
}

// TestSingleVideoJobRunsToCompletion drives a job from creation through
// fetch and download, exercising the full scheduler loop end to end.
func TestSingleVideoJobRunsToCompletion(t *testing.T) {
	fetchScript := `echo '{"_type":"video","original_url":"https://example.com/v","title":"My Video","thumbnails":[]}'`
	downloadScript := `dest=$(echo "$1" | sed 's/%(ext)s/mp4/'); touch "$dest"`
	m, store := newTestManager(t, fetchScript, downloadScript)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jv, err := m.CreateJob("https://example.com/v", "f")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitUntil(t, 5*time.Second, func() bool {
		view, err := store.GetJob(jv.JobID)
		if err != nil {
			return false
		}
		return view.Status == storage.JobDone
	})

	m.GetStopHandle().Stop()
	cancel()
	<-done
}

// TestModifyJobPauseStopsScheduling verifies a paused job's waiting
// task is never admitted to the pool.
func TestModifyJobPauseStopsScheduling(t *testing.T) {
	m, store := newTestManager(t, "sleep 5", "sleep 5")

	jv, err := m.CreateJob("https://example.com/v", "f")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := m.ModifyJob(jv.JobID, storage.PauseCommand()); err != nil {
		t.Fatalf("ModifyJob(Pause): %v", err)
	}

	view, err := store.GetJob(jv.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if view.Tasks[0].Status != storage.TaskPaused {
		t.Fatalf("expected task paused, got %v", view.Tasks[0].Status)
	}
}
