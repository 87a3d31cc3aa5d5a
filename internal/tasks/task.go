package tasks

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// rank orders the non-terminal walk; terminal states share the top rank
// because exactly one of them may ever be reached.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return 2
	}
	return -1
}

const (
	KindChat   = "chat"
	KindUpload = "upload"
)

// Task is one tracked unit of ingestion work. The registry owns it;
// everything else sees copies.
type Task struct {
	ID        string    `json:"task_id"`
	Kind      string    `json:"type"`
	FileName  string    `json:"file_name,omitempty"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var ErrUnknownTask = errors.New("unknown task")

type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task transition %s -> %s for task %s", e.From, e.To, e.TaskID)
}
