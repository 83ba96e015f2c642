package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateJob inserts a job row plus its single FetchUrlContents task at
// task_index 0.
func (s *Store) CreateJob(url, format string) (JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job := Job{
		JobID:     uuid.New(),
		Title:     "...",
		Thumbnail: "",
		URL:       url,
		Format:    format,
		CreatedAt: now,
	}
	task := Task{
		TaskID:     uuid.New(),
		OwnerJobID: job.JobID,
		Status:     TaskWaiting,
		Kind:       TaskKindFetchURLContents,
		URL:        url,
		Format:     format,
		Title:      "...",
		TaskIndex:  0,
		CreatedAt:  now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return JobView{}, fmt.Errorf("creating job: %w", err)
	}
	return NewJobView(job, []Task{task}), nil
}

// AcquireTasks selects up to n Waiting, non-pending-delete tasks and
// admits them to Processing. Prioritized jobs' tasks are admitted
// first; within that, created_at orders tasks across jobs and
// task_index breaks ties within the same job (same-millisecond batch
// inserts from handleContentsFetched would otherwise tie on
// created_at and fall to SQLite's unspecified order).
func (s *Store) AcquireTasks(n int) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	var tasks []Task
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&Task{}).
			Select("tasks.*").
			Joins("JOIN jobs ON jobs.job_id = tasks.owner_job_id").
			Where("tasks.status = ? AND tasks.pending_delete = ?", TaskWaiting, false).
			Order("jobs.prioritized DESC, tasks.created_at ASC, tasks.task_index ASC").
			Limit(n).
			Find(&tasks).Error; err != nil {
			return err
		}
		startedAt := time.Now().UTC()
		for i := range tasks {
			tasks[i].Status = TaskProcessing
			tasks[i].StartedAt = &startedAt
			tasks[i].FinishedAt = nil
			if err := tx.Model(&Task{}).Where("task_id = ?", tasks[i].TaskID).
				Updates(map[string]interface{}{
					"status":      TaskProcessing,
					"started_at":  startedAt,
					"finished_at": nil,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring tasks: %w", err)
	}
	return tasks, nil
}

// TaskStats is the aggregate projection returned by /api/status and
// used internally by the announce system.
type TaskStats struct {
	NumTotal     int `json:"num_total"`
	NumActive    int `json:"num_active"`
	NumCancelled int `json:"num_cancelled"`
	NumWaiting   int `json:"num_waiting"`
	NumDone      int `json:"num_done"`
	NumFailed    int `json:"num_failed"`
}

func (s *Store) taskStats(jobID *uuid.UUID) (TaskStats, error) {
	type row struct {
		Total      int
		NumWaiting int
		NumCancel  int
		NumFailed  int
		NumDone    int
		NumProc    int
	}
	args := []interface{}{TaskWaiting, TaskCancelled, TaskFailed, TaskDone, TaskProcessing}
	q := s.db.Raw(
		`SELECT
			COUNT(*) as total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as num_waiting,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as num_cancel,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as num_failed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as num_done,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as num_proc
		FROM tasks`+condJob(jobID),
		appendJobArg(args, jobID)...,
	)
	var r row
	if err := q.Scan(&r).Error; err != nil {
		return TaskStats{}, err
	}
	return TaskStats{
		NumTotal:     r.Total,
		NumActive:    r.NumProc,
		NumCancelled: r.NumCancel,
		NumWaiting:   r.NumWaiting,
		NumDone:      r.NumDone,
		NumFailed:    r.NumFailed,
	}, nil
}

func condJob(jobID *uuid.UUID) string {
	if jobID == nil {
		return ""
	}
	return " WHERE owner_job_id = ?"
}

func appendJobArg(args []interface{}, jobID *uuid.UUID) []interface{} {
	if jobID == nil {
		return args
	}
	return append(args, *jobID)
}

// GetGlobalTaskStats aggregates over every task.
func (s *Store) GetGlobalTaskStats() (TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskStats(nil)
}

// GetJobTaskStats aggregates over one job's tasks.
func (s *Store) GetJobTaskStats(jobID uuid.UUID) (TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskStats(&jobID)
}

// PendingOperations is the result of scanning for actionable
// cleanup/delete rows.
type PendingOperations struct {
	Cleanup []uuid.UUID
	Delete  []uuid.UUID
	NumBusy int
}

func (p PendingOperations) IsEmpty() bool {
	return len(p.Cleanup) == 0 && len(p.Delete) == 0
}

// GetPendingOperations scans for tasks with pending_cleanup or
// pending_delete set, split by whether the row is currently Processing
// (those are left alone until they settle).
func (s *Store) GetPendingOperations() (PendingOperations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []Task
	if err := s.db.Where("pending_delete = ? OR pending_cleanup = ?", true, true).Find(&tasks).Error; err != nil {
		return PendingOperations{}, fmt.Errorf("scanning pending operations: %w", err)
	}

	var out PendingOperations
	for _, t := range tasks {
		if t.Status == TaskProcessing {
			out.NumBusy++
			continue
		}
		if t.PendingDelete {
			out.Delete = append(out.Delete, t.TaskID)
		}
		if t.PendingCleanup {
			out.Cleanup = append(out.Cleanup, t.TaskID)
		}
	}
	return out, nil
}

// ConfirmCleanup clears pending_cleanup on the given tasks.
func (s *Store) ConfirmCleanup(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Model(&Task{}).Where("task_id IN ?", ids).Update("pending_cleanup", false).Error; err != nil {
		return fmt.Errorf("confirming cleanup: %w", err)
	}
	return nil
}

// ConfirmDeletion deletes the given tasks, then deletes any job left
// with zero tasks.
func (s *Store) ConfirmDeletion(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN ?", ids).Delete(&Task{}).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM jobs WHERE 0 = (SELECT COUNT(*) FROM tasks WHERE tasks.owner_job_id = jobs.job_id)`).Error
	})
}

// GetJob loads one job and its tasks.
func (s *Store) GetJob(jobID uuid.UUID) (JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getJobLocked(jobID)
}

func (s *Store) getJobLocked(jobID uuid.UUID) (JobView, error) {
	var job Job
	if err := s.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return JobView{}, fmt.Errorf("loading job: %w", err)
	}
	var tasks []Task
	if err := s.db.Where("owner_job_id = ?", jobID).Order("task_index ASC").Find(&tasks).Error; err != nil {
		return JobView{}, fmt.Errorf("loading job tasks: %w", err)
	}
	return NewJobView(job, tasks), nil
}

// GetAllJobs loads every job with its tasks, newest job first.
func (s *Store) GetAllJobs() ([]JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []Job
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}
	var tasks []Task
	if err := s.db.Order("task_index ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	byJob := make(map[uuid.UUID][]Task, len(jobs))
	for _, t := range tasks {
		byJob[t.OwnerJobID] = append(byJob[t.OwnerJobID], t)
	}
	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewJobView(j, byJob[j.JobID]))
	}
	return out, nil
}

// ModifyAllJobs applies command to every existing job.
func (s *Store) ModifyAllJobs(cmd Command) error {
	s.mu.Lock()
	var ids []uuid.UUID
	if err := s.db.Model(&Job{}).Pluck("job_id", &ids).Error; err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listing jobs: %w", err)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.ModifyJob(id, cmd); err != nil {
			return err
		}
	}
	return nil
}

// ModifyJob applies the command/transition table to every task owned
// by jobID.
func (s *Store) ModifyJob(jobID uuid.UUID, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		switch cmd.Kind {
		case CmdPause:
			return tx.Model(&Task{}).
				Where("owner_job_id = ? AND status = ?", jobID, TaskWaiting).
				Update("status", TaskPaused).Error
		case CmdResume:
			return tx.Model(&Task{}).
				Where("owner_job_id = ? AND status = ?", jobID, TaskPaused).
				Updates(map[string]interface{}{"status": TaskWaiting, "is_resumed": true}).Error
		case CmdCancel:
			return tx.Model(&Task{}).
				Where("owner_job_id = ? AND status IN ?", jobID, []TaskStatus{TaskWaiting, TaskPaused}).
				Updates(map[string]interface{}{"status": TaskCancelled, "finished_at": now}).Error
		case CmdRetry:
			return tx.Model(&Task{}).
				Where("owner_job_id = ? AND status IN ?", jobID, []TaskStatus{TaskFailed, TaskCancelled}).
				Update("status", TaskWaiting).Error
		case CmdDelete:
			return tx.Model(&Task{}).
				Where("owner_job_id = ?", jobID).
				Updates(map[string]interface{}{"pending_delete": true, "pending_cleanup": true}).Error
		case CmdSetPrioritized:
			return tx.Model(&Job{}).Where("job_id = ?", jobID).Update("prioritized", cmd.Prioritized).Error
		case CmdJobUpdated:
			if err := tx.Model(&Job{}).Where("job_id = ?", jobID).
				Updates(map[string]interface{}{"title": cmd.JobTitle, "thumbnail": cmd.JobThumbnail}).Error; err != nil {
				return err
			}
			var maxIndex int
			if err := tx.Model(&Task{}).Where("owner_job_id = ?", jobID).
				Select("COALESCE(MAX(task_index), -1)").Scan(&maxIndex).Error; err != nil {
				return err
			}
			for i := range cmd.NewTasks {
				maxIndex++
				cmd.NewTasks[i].TaskIndex = maxIndex
				cmd.NewTasks[i].OwnerJobID = jobID
				if err := tx.Create(&cmd.NewTasks[i]).Error; err != nil {
					return err
				}
			}
			return nil
		default:
			return nil
		}
	})
}

// ModifyTask applies the command/transition table to a single task.
func (s *Store) ModifyTask(taskID uuid.UUID, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		switch cmd.Kind {
		case CmdPause:
			return tx.Model(&Task{}).
				Where("task_id = ? AND status = ?", taskID, TaskWaiting).
				Update("status", TaskPaused).Error
		case CmdResume:
			return tx.Model(&Task{}).
				Where("task_id = ? AND status = ?", taskID, TaskPaused).
				Updates(map[string]interface{}{"status": TaskWaiting, "is_resumed": true}).Error
		case CmdCancel:
			return tx.Model(&Task{}).
				Where("task_id = ? AND status IN ?", taskID, []TaskStatus{TaskWaiting, TaskPaused}).
				Updates(map[string]interface{}{"status": TaskCancelled, "finished_at": now}).Error
		case CmdRetry:
			return tx.Model(&Task{}).
				Where("task_id = ? AND status IN ?", taskID, []TaskStatus{TaskFailed, TaskCancelled}).
				Update("status", TaskWaiting).Error
		case CmdDelete:
			return tx.Model(&Task{}).
				Where("task_id = ?", taskID).
				Updates(map[string]interface{}{"pending_delete": true, "pending_cleanup": true}).Error
		case CmdTaskStatusChange:
			updates := map[string]interface{}{"status": cmd.NewStatus}
			if cmd.NewStatus.IsTerminal() {
				updates["finished_at"] = now
			} else {
				updates["finished_at"] = nil
			}
			if cmd.NewStatus == TaskDone {
				updates["pending_cleanup"] = true
			}
			return tx.Model(&Task{}).Where("task_id = ?", taskID).Updates(updates).Error
		default:
			return nil
		}
	})
}

// GetUserByAPIToken looks a user up by their plaintext token.
func (s *Store) GetUserByAPIToken(apiToken string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u User
	if err := s.db.Where("api_token = ?", apiToken).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// NewSession mints a fresh random session token bound to the user
// owning apiToken.
func (s *Store) NewSession(apiToken string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessionToken uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("api_token = ?", apiToken).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invalid API token")
			}
			return err
		}
		sessionToken = uuid.New()
		return tx.Create(&Session{SessionToken: sessionToken, UserID: user.UserID}).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sessionToken, nil
}

// ExpireAllSessions wipes the sessions table.
func (s *Store) ExpireAllSessions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Exec("DELETE FROM sessions").Error
}

// ValidateSession joins sessions and users, returning the user iff
// both the api token and session token match the same user.
func (s *Store) ValidateSession(apiToken string, sessionToken uuid.UUID) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u User
	err := s.db.
		Joins("JOIN sessions ON sessions.user_id = users.user_id").
		Where("users.api_token = ? AND sessions.session_token = ?", apiToken, sessionToken).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("validating session: %w", err)
	}
	return &u, nil
}
