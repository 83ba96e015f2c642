package storage

import (
	"time"

	"github.com/google/uuid"
)

// TaskProgress is the live progress overlay a caller with access to the
// running worker pool can attach to a Processing task; storage itself
// never persists or produces one.
type TaskProgress struct {
	Percent         int   `json:"percent"`
	BytesEstimate   int64 `json:"bytes_estimate"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
}

// JobStatus is computed from child tasks, never stored authoritatively.
type JobStatus int

const (
	JobWaiting JobStatus = iota
	JobProcessing
	JobDone
	JobPartiallyDone
	JobPaused
	JobFailed
	JobCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobWaiting:
		return "Waiting"
	case JobProcessing:
		return "Processing"
	case JobDone:
		return "Done"
	case JobPartiallyDone:
		return "PartiallyDone"
	case JobPaused:
		return "Paused"
	case JobFailed:
		return "Failed"
	case JobCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// JobView is a Job plus its tasks and the values derived from them,
// the shape returned to API callers.
type JobView struct {
	Job
	Tasks      []Task     `json:"tasks"`
	Status     JobStatus  `json:"status"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	// Progress is keyed by task ID and populated only for tasks
	// currently Processing in the live worker pool; a caller with no
	// pool access (e.g. the store's own tests) always sees it empty.
	Progress map[uuid.UUID]TaskProgress `json:"progress"`
}

// NewJobView assembles a JobView, computing Status/StartedAt/FinishedAt
// from tasks.
func NewJobView(job Job, tasks []Task) JobView {
	status := StatusFromTasks(tasks)
	return JobView{
		Job:        job,
		Tasks:      tasks,
		Status:     status,
		StartedAt:  startedAtFromTasks(tasks),
		FinishedAt: finishedAtFromTasks(status, tasks),
	}
}

// StatusFromTasks derives a job's status from its tasks' statuses.
//
// HACK: there is exactly one FetchUrlContents task per job and it
// always runs before any DownloadAndConvert task, so its non-Done
// statuses can short-circuit the whole computation.
func StatusFromTasks(tasks []Task) JobStatus {
	for _, t := range tasks {
		if t.Kind != TaskKindFetchURLContents {
			continue
		}
		switch t.Status {
		case TaskWaiting:
			return JobWaiting
		case TaskProcessing:
			return JobProcessing
		case TaskPaused:
			return JobPaused
		case TaskFailed:
			return JobFailed
		case TaskCancelled:
			return JobCancelled
		case TaskDone:
			// fall through to DownloadAndConvert evaluation below
		}
		break
	}

	// HACK: the FetchUrlContents task is phony for this purpose — it
	// shouldn't count towards PartiallyDone.
	var statuses []TaskStatus
	for _, t := range tasks {
		if t.Kind == TaskKindDownloadAndConvert {
			statuses = append(statuses, t.Status)
		}
	}

	if len(statuses) == 0 {
		return JobDone
	}
	if containsStatus(statuses, TaskProcessing) {
		return JobProcessing
	}
	if containsStatus(statuses, TaskWaiting) {
		return JobWaiting
	}
	if containsStatus(statuses, TaskPaused) {
		return JobPaused
	}
	if containsStatus(statuses, TaskDone) {
		if containsStatus(statuses, TaskCancelled) || containsStatus(statuses, TaskFailed) {
			return JobPartiallyDone
		}
		return JobDone
	}
	if containsStatus(statuses, TaskCancelled) {
		return JobCancelled
	}
	return JobFailed
}

func containsStatus(statuses []TaskStatus, want TaskStatus) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func startedAtFromTasks(tasks []Task) *time.Time {
	var min *time.Time
	for _, t := range tasks {
		if t.StartedAt == nil {
			continue
		}
		if min == nil || t.StartedAt.Before(*min) {
			min = t.StartedAt
		}
	}
	return min
}

func finishedAtFromTasks(status JobStatus, tasks []Task) *time.Time {
	if status == JobWaiting || status == JobProcessing {
		return nil
	}
	var max *time.Time
	for _, t := range tasks {
		if t.FinishedAt == nil {
			continue
		}
		if max == nil || t.FinishedAt.After(*max) {
			max = t.FinishedAt
		}
	}
	return max
}
