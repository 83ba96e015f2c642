package storage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestStore builds an in-memory sqlite store with the schema
// migrated, for tests that need a real Store without touching disk.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return &Store{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestCreateJobInsertsFetchTask(t *testing.T) {
	s := newTestStore(t)
	jv, err := s.CreateJob("https://example/one", "mp4-720")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if len(jv.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(jv.Tasks))
	}
	task := jv.Tasks[0]
	if task.Kind != TaskKindFetchURLContents || task.TaskIndex != 0 {
		t.Fatalf("unexpected fetch task: %+v", task)
	}
	if jv.Status != JobWaiting {
		t.Fatalf("expected JobWaiting, got %v", jv.Status)
	}
}

func TestAcquireTasksIsFIFO(t *testing.T) {
	s := newTestStore(t)
	j1, _ := s.CreateJob("u1", "f")
	j2, _ := s.CreateJob("u2", "f")

	acquired, err := s.AcquireTasks(1)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(acquired) != 1 || acquired[0].TaskID != j1.Tasks[0].TaskID {
		t.Fatalf("expected first-created task admitted first, got %+v", acquired)
	}

	acquired2, err := s.AcquireTasks(5)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(acquired2) != 1 || acquired2[0].TaskID != j2.Tasks[0].TaskID {
		t.Fatalf("expected second job's task next, got %+v", acquired2)
	}

	remaining, err := s.AcquireTasks(5)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no more Waiting tasks, got %+v", remaining)
	}
}

func TestAcquireTasksBreaksCreatedAtTiesByTaskIndex(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	if _, err := s.AcquireTasks(1); err != nil {
		t.Fatalf("AcquireTasks fetch task: %v", err)
	}

	// All three expanded tasks share one created_at timestamp, as
	// handleContentsFetched produces for an entire playlist.
	now := time.Now().UTC()
	newTasks := []Task{
		{TaskID: uuid.New(), Kind: TaskKindDownloadAndConvert, Status: TaskWaiting, URL: "v2", CreatedAt: now},
		{TaskID: uuid.New(), Kind: TaskKindDownloadAndConvert, Status: TaskWaiting, URL: "v1", CreatedAt: now},
		{TaskID: uuid.New(), Kind: TaskKindDownloadAndConvert, Status: TaskWaiting, URL: "v0", CreatedAt: now},
	}
	wantOrder := []uuid.UUID{newTasks[0].TaskID, newTasks[1].TaskID, newTasks[2].TaskID}
	if err := s.ModifyJob(jv.JobID, JobUpdatedCommand("t", "th", newTasks)); err != nil {
		t.Fatalf("ModifyJob(JobUpdated): %v", err)
	}

	acquired, err := s.AcquireTasks(3)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(acquired) != 3 {
		t.Fatalf("expected 3 tasks acquired, got %d", len(acquired))
	}
	for i, want := range wantOrder {
		if acquired[i].TaskID != want {
			t.Fatalf("expected task_index order %v, got %v", wantOrder, acquired)
		}
	}
}

func TestAcquireTasksAdmitsPrioritizedJobFirst(t *testing.T) {
	s := newTestStore(t)
	j1, _ := s.CreateJob("u1", "f")
	time.Sleep(time.Millisecond)
	j2, _ := s.CreateJob("u2", "f")

	if err := s.ModifyJob(j2.JobID, SetPrioritizedCommand(true)); err != nil {
		t.Fatalf("ModifyJob(SetPrioritized): %v", err)
	}

	acquired, err := s.AcquireTasks(1)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(acquired) != 1 || acquired[0].TaskID != j2.Tasks[0].TaskID {
		t.Fatalf("expected the prioritized job's (later-created) task admitted first, got %+v", acquired)
	}

	acquired2, err := s.AcquireTasks(1)
	if err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	if len(acquired2) != 1 || acquired2[0].TaskID != j1.Tasks[0].TaskID {
		t.Fatalf("expected the non-prioritized job's task next, got %+v", acquired2)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	taskID := jv.Tasks[0].TaskID

	if err := s.ModifyTask(taskID, PauseCommand()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	got, _ := s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskPaused {
		t.Fatalf("expected Paused, got %v", got.Tasks[0].Status)
	}

	// Two concurrent pauses are idempotent: task is no longer Waiting,
	// so the second Pause matches no row.
	if err := s.ModifyTask(taskID, PauseCommand()); err != nil {
		t.Fatalf("Pause again: %v", err)
	}
	got, _ = s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskPaused {
		t.Fatalf("expected still Paused, got %v", got.Tasks[0].Status)
	}

	if err := s.ModifyTask(taskID, ResumeCommand()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	got, _ = s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskWaiting || !got.Tasks[0].IsResumed {
		t.Fatalf("expected Waiting+IsResumed, got %+v", got.Tasks[0])
	}
}

func TestCancelThenRetryReturnsToWaiting(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	taskID := jv.Tasks[0].TaskID

	if err := s.ModifyTask(taskID, CancelCommand()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, _ := s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskCancelled || got.Tasks[0].FinishedAt == nil {
		t.Fatalf("expected Cancelled with finished_at set, got %+v", got.Tasks[0])
	}

	if err := s.ModifyTask(taskID, RetryCommand()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got, _ = s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskWaiting {
		t.Fatalf("expected Waiting after Retry, got %v", got.Tasks[0].Status)
	}
}

func TestTaskStatusChangeSetsPendingCleanupOnlyOnDone(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	taskID := jv.Tasks[0].TaskID

	if err := s.ModifyTask(taskID, TaskStatusChangeCommand(TaskProcessing)); err != nil {
		t.Fatalf("TaskStatusChange(Processing): %v", err)
	}
	got, _ := s.GetJob(jv.JobID)
	if got.Tasks[0].PendingCleanup {
		t.Fatalf("did not expect pending_cleanup after Processing")
	}

	if err := s.ModifyTask(taskID, TaskStatusChangeCommand(TaskDone)); err != nil {
		t.Fatalf("TaskStatusChange(Done): %v", err)
	}
	got, _ = s.GetJob(jv.JobID)
	if !got.Tasks[0].PendingCleanup {
		t.Fatalf("expected pending_cleanup after Done")
	}
	if got.Tasks[0].FinishedAt == nil {
		t.Fatalf("expected finished_at set for terminal status")
	}
}

func TestDeleteTwoPhase(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	taskID := jv.Tasks[0].TaskID

	if err := s.ModifyJob(jv.JobID, DeleteCommand()); err != nil {
		t.Fatalf("ModifyJob(Delete): %v", err)
	}

	ops, err := s.GetPendingOperations()
	if err != nil {
		t.Fatalf("GetPendingOperations: %v", err)
	}
	if len(ops.Delete) != 1 || ops.Delete[0] != taskID {
		t.Fatalf("expected task pending delete, got %+v", ops)
	}

	if err := s.ConfirmCleanup(ops.Cleanup); err != nil {
		t.Fatalf("ConfirmCleanup: %v", err)
	}
	if err := s.ConfirmDeletion(ops.Delete); err != nil {
		t.Fatalf("ConfirmDeletion: %v", err)
	}

	if _, err := s.GetJob(jv.JobID); err == nil {
		t.Fatalf("expected job to be gone after last task deleted")
	}
}

func TestReconcileOnStartup(t *testing.T) {
	s := newTestStore(t)
	jv, _ := s.CreateJob("u", "f")
	taskID := jv.Tasks[0].TaskID

	if _, err := s.AcquireTasks(1); err != nil {
		t.Fatalf("AcquireTasks: %v", err)
	}
	got, _ := s.GetJob(jv.JobID)
	if got.Tasks[0].Status != TaskProcessing || got.Tasks[0].StartedAt == nil {
		t.Fatalf("expected Processing with started_at, got %+v", got.Tasks[0])
	}

	n, err := s.ReconcileOnStartup()
	if err != nil {
		t.Fatalf("ReconcileOnStartup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row reconciled, got %d", n)
	}

	got, _ = s.GetJob(jv.JobID)
	task := got.Tasks[0]
	if task.TaskID != taskID || task.Status != TaskFailed {
		t.Fatalf("expected Failed after reconcile, got %+v", task)
	}
	if task.FinishedAt == nil || !task.FinishedAt.Equal(*task.StartedAt) {
		t.Fatalf("expected finished_at == started_at, got %+v", task)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureAdminUser(); err != nil {
		t.Fatalf("EnsureAdminUser: %v", err)
	}
	admin, err := s.GetUserByName("admin")
	if err != nil || admin == nil {
		t.Fatalf("GetUserByName: %v, %+v", err, admin)
	}

	token, err := s.NewSession(admin.APIToken)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	u, err := s.ValidateSession(admin.APIToken, token)
	if err != nil || u == nil {
		t.Fatalf("ValidateSession: %v, %+v", err, u)
	}
	if u.UserID != admin.UserID {
		t.Fatalf("expected same user, got %+v", u)
	}

	if err := s.ExpireAllSessions(); err != nil {
		t.Fatalf("ExpireAllSessions: %v", err)
	}
	u, err = s.ValidateSession(admin.APIToken, token)
	if err != nil {
		t.Fatalf("ValidateSession after expiry: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user after session expiry, got %+v", u)
	}
}

func TestStatusFromTasksPartiallyDone(t *testing.T) {
	tasks := []Task{
		{Kind: TaskKindFetchURLContents, Status: TaskDone},
		{Kind: TaskKindDownloadAndConvert, Status: TaskDone},
		{Kind: TaskKindDownloadAndConvert, Status: TaskFailed},
	}
	if got := StatusFromTasks(tasks); got != JobPartiallyDone {
		t.Fatalf("expected PartiallyDone, got %v", got)
	}
}
