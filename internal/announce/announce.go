// Package announce shows desktop notifications for job lifecycle
// events, using github.com/gen2brain/beeep.
package announce

import (
	"fmt"

	"github.com/olanti-p/youtube-dl-project/internal/storage"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
)

// JobLookup is the subset of storage.Store's read surface announce
// needs, kept as an interface so jobmanager can pass itself through
// without this package importing the job manager.
type JobLookup interface {
	GetJob(jobID uuid.UUID) (storage.JobView, error)
	GetJobTaskStats(jobID uuid.UUID) (storage.TaskStats, error)
}

type System struct {
	Enabled bool
	store   JobLookup
}

func New(enabled bool, store JobLookup) *System {
	return &System{Enabled: enabled, store: store}
}

// OnTaskResult reacts to one finished task, mirroring
// AnnounceSystem::on_task_result: a DownloadAndConvert task may trigger
// a job-completion announcement once nothing is left running or
// waiting; a failed FetchUrlContents task announces immediately.
func (s *System) OnTaskResult(t storage.Task, status storage.TaskStatus) error {
	if !s.Enabled {
		return nil
	}
	if t.Kind == storage.TaskKindDownloadAndConvert {
		needs, err := s.needsCompletionAnnouncement(t.OwnerJobID)
		if err != nil {
			return err
		}
		if needs {
			return s.showCompletion(t.OwnerJobID)
		}
		return nil
	}
	if status == storage.TaskFailed {
		return s.showURLFetchFailed(t.OwnerJobID)
	}
	return nil
}

// OnContentsEmpty announces that a fetched URL produced zero videos.
func (s *System) OnContentsEmpty(jobID uuid.UUID) error {
	if !s.Enabled {
		return nil
	}
	return s.showNoAvailableVideos(jobID)
}

func (s *System) needsCompletionAnnouncement(jobID uuid.UUID) (bool, error) {
	stats, err := s.store.GetJobTaskStats(jobID)
	if err != nil {
		return false, err
	}
	return stats.NumTotal > 1 && stats.NumWaiting == 0 && stats.NumActive == 0, nil
}

var jobStatusText = map[storage.JobStatus]string{
	storage.JobDone:          "download complete",
	storage.JobPartiallyDone: "download partially complete",
	storage.JobPaused:        "download paused",
	storage.JobFailed:        "download failed",
	storage.JobCancelled:     "download cancelled",
}

func (s *System) showCompletion(jobID uuid.UUID) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}
	text, ok := jobStatusText[job.Status]
	if !ok {
		text = "ERROR_STATUS"
	}
	return notify(fmt.Sprintf("YouTube %s", text), job.Title)
}

func (s *System) showURLFetchFailed(jobID uuid.UUID) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}
	return notify("Failed to fetch video data", job.URL)
}

func (s *System) showNoAvailableVideos(jobID uuid.UUID) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}
	return notify("No videos available.", job.URL)
}

func notify(summary, body string) error {
	return beeep.Notify(summary, body, "")
}
