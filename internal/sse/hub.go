package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/tasks"
)

// TaskEvent is one frame on a task's notification channel: zero or more
// progress frames followed by exactly one terminal frame.
type TaskEvent struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Reply    string `json:"reply,omitempty"`
	Error    string `json:"error,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Terminal reports whether no further frame may follow this one.
func (e TaskEvent) Terminal() bool {
	return tasks.Status(e.Status).Terminal()
}

// EventFromTask projects a registry snapshot onto the wire shape.
func EventFromTask(t tasks.Task) TaskEvent {
	return TaskEvent{
		TaskID:   t.ID,
		Status:   string(t.Status),
		Progress: t.Progress,
		Reply:    t.Result,
		Error:    t.Error,
		FileName: t.FileName,
		Type:     t.Kind,
	}
}

type Subscriber struct {
	ID       uuid.UUID
	TaskID   string
	Outbound chan TaskEvent
	done     chan struct{}
}

// TaskHub fans task events out to the subscribers of each task id.
// A subscriber that reconnects gets the current snapshot first (written by
// the handler), then live frames; the terminal frame ends the stream.
type TaskHub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Subscriber]bool
}

func NewTaskHub(log *logger.Logger) *TaskHub {
	return &TaskHub{
		log:           log.With("component", "TaskHub"),
		subscriptions: make(map[string]map[*Subscriber]bool),
	}
}

func (hub *TaskHub) Subscribe(taskID string) *Subscriber {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	sub := &Subscriber{
		ID:       uuid.New(),
		TaskID:   strings.TrimSpace(taskID),
		Outbound: make(chan TaskEvent, 16),
		done:     make(chan struct{}),
	}
	subs, exists := hub.subscriptions[sub.TaskID]
	if !exists {
		subs = make(map[*Subscriber]bool)
		hub.subscriptions[sub.TaskID] = subs
	}
	subs[sub] = true

	hub.log.Debug("Task subscriber attached", "subscriberID", sub.ID, "task_id", sub.TaskID)
	return sub
}

func (hub *TaskHub) Unsubscribe(sub *Subscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if subs, ok := hub.subscriptions[sub.TaskID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(hub.subscriptions, sub.TaskID)
		}
	}
	hub.log.Debug("Task subscriber detached", "subscriberID", sub.ID, "task_id", sub.TaskID)
}

// Publish delivers an event to every subscriber of its task. Progress
// frames may be dropped on a full buffer (last-status-wins); a terminal
// frame always lands, displacing the oldest buffered frame if needed.
func (hub *TaskHub) Publish(event TaskEvent) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if event.TaskID == "" {
		return
	}
	subs, ok := hub.subscriptions[event.TaskID]
	if !ok {
		return
	}
	for s := range subs {
		select {
		case s.Outbound <- event:
			continue
		default:
		}
		if !event.Terminal() {
			hub.log.Warn("Dropping task progress frame; outbound buffer full", "subscriberID", s.ID, "task_id", event.TaskID)
			continue
		}
		select {
		case <-s.Outbound:
		default:
		}
		select {
		case s.Outbound <- event:
		default:
			hub.log.Warn("Failed to enqueue terminal frame", "subscriberID", s.ID, "task_id", event.TaskID)
		}
	}
}

// ServeHTTP streams frames for one subscriber. The caller passes the
// registry snapshot as the first frame; the stream ends after a terminal
// frame so nothing can follow it.
func (hub *TaskHub) ServeHTTP(w http.ResponseWriter, r *http.Request, sub *Subscriber, first TaskEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	if !hub.writeEvent(w, flusher, first) {
		return
	}
	if first.Terminal() {
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("Task subscriber context done", "subscriberID", sub.ID, "err", ctx.Err())
			return
		case <-sub.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-sub.Outbound:
			if !hub.writeEvent(w, flusher, event) {
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

func (hub *TaskHub) writeEvent(w http.ResponseWriter, flusher http.Flusher, event TaskEvent) bool {
	raw, err := json.Marshal(event)
	if err != nil {
		hub.log.Warn("Failed to marshal task event", "error", err)
		return true
	}
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(raw)); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func (hub *TaskHub) CloseSubscriber(sub *Subscriber) {
	close(sub.done)
	hub.Unsubscribe(sub)
}
