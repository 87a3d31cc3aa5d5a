package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/services"
	"github.com/yungbote/deepchat-backend/internal/sse"
	"github.com/yungbote/deepchat-backend/internal/tasks"
)

type TaskHandler struct {
	log         *logger.Logger
	registry    *tasks.Registry
	hub         *sse.TaskHub
	coordinator *services.Coordinator
}

func NewTaskHandler(log *logger.Logger, registry *tasks.Registry, hub *sse.TaskHub, coordinator *services.Coordinator) *TaskHandler {
	return &TaskHandler{
		log:         log.With("handler", "TaskHandler"),
		registry:    registry,
		hub:         hub,
		coordinator: coordinator,
	}
}

// GET /api/tasks/:task_id/events
// Streams the current snapshot first, then live frames; a terminal frame
// ends the stream. An unknown task id gets one explicit error event and
// an immediate close rather than a silent hang.
func (th *TaskHandler) Events(c *gin.Context) {
	taskID := c.Param("task_id")

	// Attach before reading the snapshot: a terminal event published in
	// between lands in the subscriber buffer instead of vanishing, so the
	// stream still ends with it.
	sub := th.hub.Subscribe(taskID)
	defer th.hub.Unsubscribe(sub)

	task, err := th.registry.Get(taskID)
	if err != nil {
		th.writeErrorEvent(c, taskID, "unknown task")
		return
	}
	th.hub.ServeHTTP(c.Writer, c.Request, sub, sse.EventFromTask(task))
}

// GET /api/tasks/:task_id/result
func (th *TaskHandler) Result(c *gin.Context) {
	task, err := th.registry.Get(c.Param("task_id"))
	if err != nil {
		RespondError(c, http.StatusNotFound, "unknown_task", err)
		return
	}

	switch task.Status {
	case tasks.StatusSucceeded:
		RespondOK(c, gin.H{
			"status":    string(task.Status),
			"task_id":   task.ID,
			"reply":     task.Result,
			"file_name": task.FileName,
			"type":      task.Kind,
		})
	case tasks.StatusFailed, tasks.StatusCancelled:
		RespondOK(c, gin.H{
			"status":  string(task.Status),
			"task_id": task.ID,
			"error":   task.Error,
		})
	default:
		RespondOK(c, gin.H{
			"status":   "processing",
			"task_id":  task.ID,
			"progress": task.Progress,
		})
	}
}

// POST /api/tasks/:task_id/cancel
// Cancelling a terminal task is absorbed, not an error.
func (th *TaskHandler) Cancel(c *gin.Context) {
	task, err := th.coordinator.Cancel(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, tasks.ErrUnknownTask) {
			RespondError(c, http.StatusNotFound, "unknown_task", err)
			return
		}
		th.log.Error("Failed to cancel task", "task_id", c.Param("task_id"), "error", err)
		RespondInternal(c, "cancel_failed")
		return
	}
	RespondOK(c, gin.H{
		"status":  string(task.Status),
		"task_id": task.ID,
	})
}

func (th *TaskHandler) writeErrorEvent(c *gin.Context, taskID, msg string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	fmt.Fprintf(c.Writer, "event: error\ndata: {\"task_id\":%q,\"error\":%q}\n\n", taskID, msg)
	c.Writer.Flush()
	th.log.Debug("Rejected event stream for unknown task", "task_id", taskID)
}
