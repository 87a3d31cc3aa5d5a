package tasks

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

// Registry is the single writer of task state. All transitions for a task
// are serialized behind one mutex; readers get consistent snapshots.
type Registry struct {
	mu    sync.RWMutex
	log   *logger.Logger
	tasks map[string]*Task
}

func NewRegistry(baseLog *logger.Logger) *Registry {
	return &Registry{
		log:   baseLog.With("service", "TaskRegistry"),
		tasks: make(map[string]*Task),
	}
}

// Create registers a new pending task. A caller-supplied id is honored so
// a client can open its notification channel before submitting; empty id
// gets a fresh UUID. Reusing an id that is still tracked is an error.
func (r *Registry) Create(id, kind, fileName string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.tasks[id]; exists {
		return Task{}, fmt.Errorf("task id %s already in use", id)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        id,
		Kind:      kind,
		FileName:  fileName,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[id] = task
	r.log.Debug("Task created", "task_id", id, "kind", kind)
	return *task, nil
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrUnknownTask
	}
	return *task, nil
}

// Transition moves a task to newStatus. Status walks are monotonic:
// pending -> running -> exactly one terminal state. Progress never
// decreases. Result and errMsg only stick on their matching terminal.
func (r *Registry) Transition(id string, newStatus Status, progress int, result, errMsg string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrUnknownTask
	}
	if task.Status.Terminal() || newStatus.rank() < task.Status.rank() || newStatus.rank() < 0 {
		return Task{}, &InvalidTransitionError{TaskID: id, From: task.Status, To: newStatus}
	}

	task.Status = newStatus
	if progress > task.Progress {
		task.Progress = progress
	}
	if progress > 100 {
		task.Progress = 100
	}
	switch newStatus {
	case StatusSucceeded:
		task.Progress = 100
		task.Result = result
	case StatusFailed, StatusCancelled:
		task.Progress = 100
		task.Error = errMsg
	}
	task.UpdatedAt = time.Now().UTC()

	snapshot := *task
	r.log.Debug("Task transitioned", "task_id", id, "status", newStatus, "progress", snapshot.Progress)
	return snapshot, nil
}

// Cancel moves a pending or running task to cancelled. Cancelling a task
// that already reached a terminal state is a no-op, not an error.
func (r *Registry) Cancel(id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrUnknownTask
	}
	if task.Status.Terminal() {
		return *task, nil
	}
	task.Status = StatusCancelled
	task.Progress = 100
	task.Error = "task cancelled"
	task.UpdatedAt = time.Now().UTC()
	r.log.Debug("Task cancelled", "task_id", id)
	return *task, nil
}

// Cancelled reports whether the task has been cancelled; generation loops
// poll this between suspension points.
func (r *Registry) Cancelled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	return ok && task.Status == StatusCancelled
}

// Forget drops a terminal task from the registry. Live tasks stay put so
// their notification channels keep resolving.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok && task.Status.Terminal() {
		delete(r.tasks, id)
	}
}
