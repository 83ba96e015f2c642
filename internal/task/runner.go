package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/google/uuid"
)

// Result is what a finished task produced: Contents for a
// FetchUrlContents task, nothing (OutputPath only) for a
// DownloadAndConvert task.
type Result struct {
	Contents   *Contents
	OutputPath string
}

// Runner executes one task to completion using the external downloader
// binary, dispatching over TaskKind.
type Runner struct {
	Binary string
	Tool   config.ToolConfig
	FS     *fsnode.Layout
	Proc   *procworker.Worker
	Logger *slog.Logger
}

func NewRunner(binary string, tool config.ToolConfig, fs *fsnode.Layout, proc *procworker.Worker, logger *slog.Logger) *Runner {
	return &Runner{Binary: binary, Tool: tool, FS: fs, Proc: proc, Logger: logger}
}

// Run executes t, reporting live progress into progress (only consulted
// for DownloadAndConvert) and honoring control's stop/pause requests.
// outputDir is the user's configured download folder.
func (r *Runner) Run(ctx context.Context, t storage.Task, outputDir string, progress *Progress, control *procworker.ControlHandle) (Result, error) {
	switch t.Kind {
	case storage.TaskKindFetchURLContents:
		return r.runFetchURLContents(ctx, t, control)
	case storage.TaskKindDownloadAndConvert:
		return r.runDownloadAndConvert(ctx, t, outputDir, progress, control)
	default:
		return Result{}, fmt.Errorf("unknown task kind: %v", t.Kind)
	}
}

func (r *Runner) runFetchURLContents(ctx context.Context, t storage.Task, control *procworker.ControlHandle) (Result, error) {
	if err := r.FS.PrepareTaskScratch(t.TaskID); err != nil {
		return Result{}, err
	}

	argv := append([]string{r.Binary}, r.Tool.RenderFetchURLCommand(t.URL)...)

	stdoutFile, stderrFile, err := r.openLogFiles(t.TaskID)
	if err != nil {
		return Result{}, err
	}
	defer stdoutFile.Close()
	defer stderrFile.Close()

	var stdoutBuf []byte
	onStdout := func(line string) {
		stdoutBuf = append(stdoutBuf, append([]byte(line), '\n')...)
		fmt.Fprintln(stdoutFile, line)
	}
	onStderr := func(line string) {
		fmt.Fprintln(stderrFile, line)
	}

	if _, err := r.Proc.Run(ctx, argv, control, onStdout, onStderr); err != nil {
		return Result{}, err
	}

	contents, err := ParseContents(stdoutBuf)
	if err != nil {
		return Result{}, err
	}
	return Result{Contents: &contents}, nil
}

func (r *Runner) runDownloadAndConvert(ctx context.Context, t storage.Task, outputDir string, progress *Progress, control *procworker.ControlHandle) (Result, error) {
	if t.IsResumed {
		format, ferr := r.Tool.GetFormat(t.Format)
		if ferr == nil {
			_ = fsnode.RemoveIfExists(r.FS.TaskOutputFile(t.TaskID, format.Ext))
		}
	} else {
		_ = fsnode.RemoveIfExists(r.FS.TaskDataDir(t.TaskID))
	}
	if err := r.FS.PrepareTaskScratch(t.TaskID); err != nil {
		return Result{}, err
	}

	format, err := r.Tool.GetFormat(t.Format)
	if err != nil {
		return Result{}, err
	}
	destTemplate := r.FS.TaskOutputTemplate(t.TaskID)
	argv := append([]string{r.Binary}, r.Tool.RenderDownloadCommand(t.URL, format, destTemplate)...)

	stdoutFile, stderrFile, err := r.openLogFiles(t.TaskID)
	if err != nil {
		return Result{}, err
	}
	defer stdoutFile.Close()
	defer stderrFile.Close()

	onStdout := func(line string) {
		fmt.Fprintln(stdoutFile, line)
		if progress != nil {
			progress.ConsumeLine(line)
		}
	}
	onStderr := func(line string) {
		fmt.Fprintln(stderrFile, line)
	}

	if _, err := r.Proc.Run(ctx, argv, control, onStdout, onStderr); err != nil {
		return Result{}, err
	}

	produced := r.FS.TaskOutputFile(t.TaskID, format.Ext)
	title := t.Title
	if title == "" {
		title = t.URL
	}
	dest, err := r.FS.MoveToOutput(produced, outputDir, title, format.Ext)
	if err != nil {
		return Result{}, err
	}
	return Result{OutputPath: dest}, nil
}

func (r *Runner) openLogFiles(taskID uuid.UUID) (*os.File, *os.File, error) {
	stdoutPath := r.FS.TaskStdoutLog(taskID)
	stderrPath := r.FS.TaskStderrLog(taskID)
	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stdout log: %w", err)
	}
	stderrFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		stdoutFile.Close()
		return nil, nil, fmt.Errorf("opening stderr log: %w", err)
	}
	return stdoutFile, stderrFile, nil
}
