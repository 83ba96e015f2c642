package fsnode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestTaskPathsAreDerivedFromTaskID(t *testing.T) {
	l := New("/tmp/workdir")
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	if got := l.TaskDataDir(id); got != filepath.Join("/tmp/workdir", id.String(), "data") {
		t.Fatalf("unexpected data dir: %s", got)
	}
	if got := l.TaskOutputTemplate(id); got != filepath.Join("/tmp/workdir", id.String(), "data", "main.%(ext)s") {
		t.Fatalf("unexpected output template: %s", got)
	}
}

func TestPickFreeNameAvoidsCollisionsStartingAtOne(t *testing.T) {
	dir := t.TempDir()
	first, err := PickFreeName(dir, "Hello", "mp4")
	if err != nil {
		t.Fatalf("PickFreeName: %v", err)
	}
	if filepath.Base(first) != "Hello.mp4" {
		t.Fatalf("expected bare name first, got %s", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	second, err := PickFreeName(dir, "Hello", "mp4")
	if err != nil {
		t.Fatalf("PickFreeName: %v", err)
	}
	if filepath.Base(second) != "Hello (1).mp4" {
		t.Fatalf("expected 'Hello (1).mp4', got %s", second)
	}
	if err := os.WriteFile(second, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	third, err := PickFreeName(dir, "Hello", "mp4")
	if err != nil {
		t.Fatalf("PickFreeName: %v", err)
	}
	if filepath.Base(third) != "Hello (2).mp4" {
		t.Fatalf("expected 'Hello (2).mp4', got %s", third)
	}

	entries, _ := filepath.Glob(filepath.Join(dir, "Hello (0)*"))
	if len(entries) != 0 {
		t.Fatalf("'Hello (0).mp4' must never be produced")
	}
}

func TestRemoveIfExistsIsIdempotent(t *testing.T) {
	if err := RemoveIfExists(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Fatalf("removing a missing path must not error: %v", err)
	}
}

func TestMoveToOutputRenamesIntoCollisionFreeName(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	l := New(src)

	srcFile := filepath.Join(src, "main.mp4")
	if err := os.WriteFile(srcFile, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := l.MoveToOutput(srcFile, dst, "Hello", "mp4")
	if err != nil {
		t.Fatalf("MoveToOutput: %v", err)
	}
	if filepath.Base(dest) != "Hello.mp4" {
		t.Fatalf("unexpected dest: %s", dest)
	}
	if _, err := os.Stat(srcFile); !os.IsNotExist(err) {
		t.Fatalf("expected source file to be moved away")
	}
}
