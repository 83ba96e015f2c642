//go:build !windows

package procworker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRunSuccessCollectsStdoutLines(t *testing.T) {
	w := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var lines []string
	code, err := w.Run(context.Background(), []string{"sh", "-c", "echo one; echo two"}, NewControlHandle(),
		func(l string) { lines = append(lines, l) }, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestRunBadExitCode(t *testing.T) {
	w := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	code, err := w.Run(context.Background(), []string{"sh", "-c", "exit 7"}, NewControlHandle(), nil, nil)
	if err == nil {
		t.Fatalf("expected an error for non-zero exit")
	}
	var badExit *BadExitCodeError
	if !isBadExitCodeError(err, &badExit) {
		t.Fatalf("expected BadExitCodeError, got %T: %v", err, err)
	}
	if code != 7 {
		t.Fatalf("expected code 7, got %d", code)
	}
}

func TestRunStopIsCooperative(t *testing.T) {
	w := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	control := NewControlHandle()
	go func() {
		time.Sleep(50 * time.Millisecond)
		control.Stop()
	}()
	_, err := w.Run(context.Background(), []string{"sh", "-c", "sleep 5"}, control, nil, nil)
	if err != ErrAborted {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func isBadExitCodeError(err error, target **BadExitCodeError) bool {
	if e, ok := err.(*BadExitCodeError); ok {
		*target = e
		return true
	}
	return false
}
