package services

import (
	"context"
	"time"

	"github.com/yungbote/deepchat-backend/internal/clients/redis"
	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/sse"
	"github.com/yungbote/deepchat-backend/internal/tasks"
)

// TaskNotifier pushes task state onto the notification channels. With a
// bus configured, events travel through redis and every instance's
// forwarder feeds its local hub; without one they go to the hub directly.
type TaskNotifier interface {
	TaskUpdated(ctx context.Context, task tasks.Task)
}

type taskNotifier struct {
	log *logger.Logger
	hub *sse.TaskHub
	bus redis.TaskBus
}

func NewTaskNotifier(log *logger.Logger, hub *sse.TaskHub, bus redis.TaskBus) TaskNotifier {
	return &taskNotifier{
		log: log.With("service", "TaskNotifier"),
		hub: hub,
		bus: bus,
	}
}

// busPublishTimeout bounds a detached publish so a dead redis cannot
// hold a worker goroutine open.
const busPublishTimeout = 5 * time.Second

func (n *taskNotifier) TaskUpdated(ctx context.Context, task tasks.Task) {
	if n == nil || n.hub == nil || task.ID == "" {
		return
	}
	event := sse.EventFromTask(task)
	if n.bus != nil {
		// A failed task often arrives here on an already-expired context
		// (the generation deadline is what killed it). The terminal event
		// still has to cross the bus, so publish on a fresh one.
		publishCtx := ctx
		if publishCtx == nil || publishCtx.Err() != nil {
			detached, cancel := context.WithTimeout(context.Background(), busPublishTimeout)
			defer cancel()
			publishCtx = detached
		}
		if err := n.bus.Publish(publishCtx, event); err == nil {
			return
		} else {
			// Fall back to local delivery so a bus outage cannot strand
			// a terminal event.
			n.log.Warn("Task bus publish failed; delivering locally", "task_id", task.ID, "error", err)
		}
	}
	n.hub.Publish(event)
}
