// Package fsnode implements the deterministic per-task scratch
// directory layout, output placement and filename collision avoidance.
package fsnode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flytam/filenamify"
	"github.com/google/uuid"
)

// Layout resolves the filesystem paths used by one running instance.
// WorkDir is the scratch root (deliberately named differently from the
// user's configured "temp folder" so the system never wipes user
// files).
type Layout struct {
	WorkDir string
}

func New(workDir string) *Layout {
	return &Layout{WorkDir: workDir}
}

// PrepareRoot ensures the scratch work directory itself exists (the
// per-task data/log subdirectories are created lazily by
// PrepareTaskScratch instead).
func (l *Layout) PrepareRoot() error {
	return EnsureDir(l.WorkDir)
}

// TaskRoot is the scratch root for one task.
func (l *Layout) TaskRoot(taskID uuid.UUID) string {
	return filepath.Join(l.WorkDir, taskID.String())
}

func (l *Layout) TaskDataDir(taskID uuid.UUID) string {
	return filepath.Join(l.TaskRoot(taskID), "data")
}

func (l *Layout) TaskLogDir(taskID uuid.UUID) string {
	return filepath.Join(l.TaskRoot(taskID), "log")
}

func (l *Layout) TaskStdoutLog(taskID uuid.UUID) string {
	return filepath.Join(l.TaskLogDir(taskID), "stdout.log")
}

func (l *Layout) TaskStderrLog(taskID uuid.UUID) string {
	return filepath.Join(l.TaskLogDir(taskID), "stderr.log")
}

// TaskOutputTemplate is the destination-file placeholder value passed
// to the external tool: data/main.%(ext)s.
func (l *Layout) TaskOutputTemplate(taskID uuid.UUID) string {
	return filepath.Join(l.TaskDataDir(taskID), "main.%(ext)s")
}

// TaskOutputFile is the concrete produced file once ext is known.
func (l *Layout) TaskOutputFile(taskID uuid.UUID, ext string) string {
	return filepath.Join(l.TaskDataDir(taskID), "main."+ext)
}

// EnsureDir creates dir and any missing parents; idempotent.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// RemoveIfExists removes path (file or directory tree); removing a
// path that does not exist is not an error.
func RemoveIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// PrepareTaskScratch creates the data/ and log/ subdirectories for a
// task's scratch root.
func (l *Layout) PrepareTaskScratch(taskID uuid.UUID) error {
	if err := EnsureDir(l.TaskDataDir(taskID)); err != nil {
		return err
	}
	return EnsureDir(l.TaskLogDir(taskID))
}

// PickFreeName returns the first of {base.ext, "base (1).ext", "base
// (2).ext", ...} that does not already exist in dir. N=0 is never used.
func PickFreeName(dir, base, ext string) (string, error) {
	candidate := filepath.Join(dir, withExt(base, ext))
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, withExt(fmt.Sprintf("%s (%d)", base, n), ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

func withExt(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// SafeName sanitizes an arbitrary title or URL into a filesystem-safe
// stem via filenamify.
func SafeName(raw string) (string, error) {
	name, err := filenamify.Filenamify(raw, filenamify.Options{Replacement: "_"})
	if err != nil {
		return "", fmt.Errorf("sanitizing filename: %w", err)
	}
	if name == "" {
		name = "untitled"
	}
	return name, nil
}

// MoveToOutput renames srcFile (an existing produced file) into
// outputDir under a collision-free name derived from title, preserving
// ext. Returns the final destination path.
func (l *Layout) MoveToOutput(srcFile, outputDir, title, ext string) (string, error) {
	if err := EnsureDir(outputDir); err != nil {
		return "", err
	}
	safe, err := SafeName(title)
	if err != nil {
		return "", err
	}
	dest, err := PickFreeName(outputDir, safe, ext)
	if err != nil {
		return "", err
	}
	if err := os.Rename(srcFile, dest); err != nil {
		return "", fmt.Errorf("moving output file: %w", err)
	}
	return dest, nil
}
