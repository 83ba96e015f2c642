package announce

import (
	"testing"

	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/google/uuid"
)

type fakeLookup struct {
	job   storage.JobView
	stats storage.TaskStats
}

func (f fakeLookup) GetJob(uuid.UUID) (storage.JobView, error)               { return f.job, nil }
func (f fakeLookup) GetJobTaskStats(uuid.UUID) (storage.TaskStats, error) { return f.stats, nil }

func TestOnTaskResultDisabledSkipsEverything(t *testing.T) {
	s := New(false, fakeLookup{})
	task := storage.Task{Kind: storage.TaskKindDownloadAndConvert, OwnerJobID: uuid.New()}
	if err := s.OnTaskResult(task, storage.TaskDone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOnTaskResultFetchFailureAnnounces(t *testing.T) {
	lookup := fakeLookup{job: storage.JobView{Job: storage.Job{URL: "https://example.com"}}}
	s := New(true, lookup)
	task := storage.Task{Kind: storage.TaskKindFetchURLContents, OwnerJobID: uuid.New()}
	if err := s.OnTaskResult(task, storage.TaskFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNeedsCompletionAnnouncementRequiresIdleJob(t *testing.T) {
	lookup := fakeLookup{stats: storage.TaskStats{NumTotal: 2, NumWaiting: 0, NumActive: 0}}
	s := New(true, lookup)
	needs, err := s.needsCompletionAnnouncement(uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Fatalf("expected completion announcement to be needed")
	}

	lookup.stats.NumActive = 1
	s2 := New(true, lookup)
	needs2, _ := s2.needsCompletionAnnouncement(uuid.New())
	if needs2 {
		t.Fatalf("expected no announcement while a task is still active")
	}
}
