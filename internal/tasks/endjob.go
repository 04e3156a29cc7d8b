package tasks

import (
	"context"

	"github.com/riverqueue/river"
)

// EndJobArgs closes a task when its window elapses. The job is inserted in
// the same transaction as the task row and scheduled at the window's end, so
// the transition survives restarts.
type EndJobArgs struct {
	TaskID string `json:"task_id"`
}

func (EndJobArgs) Kind() string { return "task_end" }

// CleanupJobArgs deletes an ended task's record after retention.
type CleanupJobArgs struct {
	TaskID string `json:"task_id"`
}

func (CleanupJobArgs) Kind() string { return "task_cleanup" }

// Lifecycle is the slice of the service the workers need.
type Lifecycle interface {
	End(ctx context.Context, taskID string) error
	Cleanup(ctx context.Context, taskID string) error
}

type EndWorker struct {
	river.WorkerDefaults[EndJobArgs]
	svc Lifecycle
}

func NewEndWorker(svc Lifecycle) *EndWorker {
	return &EndWorker{svc: svc}
}

func (w *EndWorker) Work(ctx context.Context, job *river.Job[EndJobArgs]) error {
	return w.svc.End(ctx, job.Args.TaskID)
}

type CleanupWorker struct {
	river.WorkerDefaults[CleanupJobArgs]
	svc Lifecycle
}

func NewCleanupWorker(svc Lifecycle) *CleanupWorker {
	return &CleanupWorker{svc: svc}
}

func (w *CleanupWorker) Work(ctx context.Context, job *river.Job[CleanupJobArgs]) error {
	return w.svc.Cleanup(ctx, job.Args.TaskID)
}
