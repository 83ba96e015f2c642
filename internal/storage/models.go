// Package storage is the persistence layer: GORM models plus the
// transactional store operations that drive job/task state transitions.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus mirrors the original's sqlx-stored enum discriminant.
type TaskStatus int

const (
	TaskWaiting TaskStatus = iota
	TaskProcessing
	TaskPaused
	TaskDone
	TaskFailed
	TaskCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskWaiting:
		return "Waiting"
	case TaskProcessing:
		return "Processing"
	case TaskPaused:
		return "Paused"
	case TaskDone:
		return "Done"
	case TaskFailed:
		return "Failed"
	case TaskCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of {Done, Failed, Cancelled}.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskFailed || s == TaskCancelled
}

// TaskKind discriminates the two task variants.
type TaskKind int

const (
	TaskKindFetchURLContents TaskKind = iota
	TaskKindDownloadAndConvert
)

func (k TaskKind) String() string {
	if k == TaskKindFetchURLContents {
		return "FetchUrlContents"
	}
	return "DownloadAndConvert"
}

// User is the sole local auth principal. One "admin" user is
// auto-provisioned at first start (see Store.EnsureAdminUser).
type User struct {
	UserID   uuid.UUID `gorm:"primaryKey;type:text"`
	Name     string    `gorm:"uniqueIndex"`
	APIToken string    `gorm:"uniqueIndex"`
}

func (User) TableName() string { return "users" }

// Session has no TTL; it lives until deleted by ExpireAllSessions.
type Session struct {
	SessionToken uuid.UUID `gorm:"primaryKey;type:text"`
	UserID       uuid.UUID `gorm:"type:text;index"`
}

func (Session) TableName() string { return "sessions" }

// Job is the user-submitted unit. Status/StartedAt/FinishedAt are
// never stored — they are derived from the owned Tasks, see job.go.
type Job struct {
	JobID       uuid.UUID `gorm:"primaryKey;type:text"`
	Title       string
	Thumbnail   string
	URL         string
	Format      string
	CreatedAt   time.Time
	Prioritized bool
}

func (Job) TableName() string { return "jobs" }

// Task is the atomic unit of work: either a URL-expansion task or a
// download-and-convert task, always owned by exactly one Job.
type Task struct {
	TaskID         uuid.UUID `gorm:"primaryKey;type:text"`
	OwnerJobID     uuid.UUID `gorm:"type:text;index"`
	Status         TaskStatus
	Kind           TaskKind
	URL            string
	Format         string
	Thumbnail      string
	Title          string
	TaskIndex      int
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	IsResumed      bool
	PendingCleanup bool
	PendingDelete  bool
}

func (Task) TableName() string { return "tasks" }

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{&User{}, &Session{}, &Job{}, &Task{}}
}
