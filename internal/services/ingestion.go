package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/cache"
	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/tasks"
)

// ChatTurn ties an ingestion to a conversation so the exchange can be
// persisted once the task succeeds.
type ChatTurn struct {
	ConversationID uuid.UUID
}

// SubmitOutcome is what the triggering request learns synchronously.
// CacheHit carries the summary inline; otherwise the client follows the
// task's notification channel.
type SubmitOutcome struct {
	Task     tasks.Task
	CacheHit bool
	Summary  string
}

type CoordinatorConfig struct {
	GenerationTimeout time.Duration
	ChatTemperature   float64
	ChatMaxTokens     int
	// TaskRetention bounds the in-memory registry: terminal tasks are
	// dropped once clients had this long to fetch the outcome.
	TaskRetention time.Duration
}

// Coordinator runs the ingestion state machine:
// Received -> CacheCheck -> {CacheHit -> Completed} |
// {CacheMiss -> Generating -> {Completed | Failed}}.
// CacheCheck is synchronous with the submitting request; Generating runs
// as its own unit of work.
type Coordinator struct {
	log       *logger.Logger
	registry  *tasks.Registry
	cache     cache.SummaryCache
	generator SummaryGenerator
	llm       LLMClient
	convos    ConversationService
	notifier  TaskNotifier
	cfg       CoordinatorConfig
}

func NewCoordinator(baseLog *logger.Logger, registry *tasks.Registry, summaryCache cache.SummaryCache, generator SummaryGenerator, llm LLMClient, convos ConversationService, notifier TaskNotifier, cfg CoordinatorConfig) *Coordinator {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 300 * time.Second
	}
	if cfg.TaskRetention <= 0 {
		cfg.TaskRetention = 10 * time.Minute
	}
	return &Coordinator{
		log:       baseLog.With("service", "IngestionCoordinator"),
		registry:  registry,
		cache:     summaryCache,
		generator: generator,
		llm:       llm,
		convos:    convos,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// SubmitDocument accepts an uploaded document. On a cache hit the outcome
// resolves synchronously; on a miss the summary is generated in the
// background and delivered over the task's notification channel.
func (c *Coordinator) SubmitDocument(ctx context.Context, doc Document, taskID string, turn *ChatTurn) (SubmitOutcome, error) {
	task, err := c.registry.Create(taskID, tasks.KindUpload, doc.FileName)
	if err != nil {
		return SubmitOutcome{}, err
	}
	log := c.log.With("task_id", task.ID, "file_name", doc.FileName)

	hash := doc.Hash()
	summary, hit, err := c.cache.Lookup(hash)
	if err != nil {
		log.Warn("Cache lookup failed; treating as miss", "hash", hash, "error", err)
		hit = false
	}
	if hit {
		log.Info("Cache hit; resolving synchronously", "hash", hash)
		done, err := c.registry.Transition(task.ID, tasks.StatusSucceeded, 100, summary, "")
		if err != nil {
			return SubmitOutcome{}, err
		}
		c.notifier.TaskUpdated(ctx, done)
		c.scheduleForget(done.ID)
		c.persistExchange(ctx, turn, uploadUserContent(doc), summary)
		return SubmitOutcome{Task: done, CacheHit: true, Summary: summary}, nil
	}

	go c.runGeneration(task.ID, doc, hash, turn)
	return SubmitOutcome{Task: task}, nil
}

// SubmitChat accepts a chat message: a one-shot generation task over a
// text payload, no cache involved. The reply arrives over the task's
// notification channel.
func (c *Coordinator) SubmitChat(ctx context.Context, message string, taskID string, turn *ChatTurn) (tasks.Task, error) {
	task, err := c.registry.Create(taskID, tasks.KindChat, "")
	if err != nil {
		return tasks.Task{}, err
	}
	go c.runChat(task.ID, message, turn)
	return task, nil
}

// Cancel moves a live task to cancelled and emits its terminal event.
// Terminal tasks absorb the request.
func (c *Coordinator) Cancel(ctx context.Context, taskID string) (tasks.Task, error) {
	before, err := c.registry.Get(taskID)
	if err != nil {
		return tasks.Task{}, err
	}
	task, err := c.registry.Cancel(taskID)
	if err != nil {
		return tasks.Task{}, err
	}
	if !before.Status.Terminal() {
		c.notifier.TaskUpdated(ctx, task)
		c.scheduleForget(task.ID)
	}
	return task, nil
}

func (c *Coordinator) runGeneration(taskID string, doc Document, hash string, turn *ChatTurn) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GenerationTimeout)
	defer cancel()
	log := c.log.With("task_id", taskID, "file_name", doc.FileName)

	if !c.advance(ctx, taskID, tasks.StatusRunning, 20) {
		return
	}
	if !c.advance(ctx, taskID, tasks.StatusRunning, 40) {
		return
	}
	// Last check before the expensive call; a cancel landing here would
	// otherwise still burn a full generation.
	if c.registry.Cancelled(taskID) {
		log.Info("Task cancelled before generation started")
		return
	}

	summary, err := c.generator.Generate(ctx, doc)
	if err != nil {
		log.Warn("Summary generation failed", "error", err)
		c.fail(ctx, taskID, err)
		return
	}

	if !c.advance(ctx, taskID, tasks.StatusRunning, 80) {
		return
	}

	// Store before the final transition: a concurrent task computing the
	// same hash writes the same bytes, and Store is idempotent.
	if err := c.cache.Store(hash, summary); err != nil {
		log.Warn("Cache store failed", "hash", hash, "error", err)
	}

	done, err := c.registry.Transition(taskID, tasks.StatusSucceeded, 100, summary, "")
	if err != nil {
		log.Debug("Task finished after terminal state was reached", "error", err)
		return
	}
	c.notifier.TaskUpdated(ctx, done)
	c.scheduleForget(done.ID)
	c.persistExchange(ctx, turn, uploadUserContent(doc), summary)
	log.Info("Ingestion completed", "hash", hash, "summary_chars", len(summary))
}

func (c *Coordinator) runChat(taskID string, message string, turn *ChatTurn) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GenerationTimeout)
	defer cancel()
	log := c.log.With("task_id", taskID)

	if !c.advance(ctx, taskID, tasks.StatusRunning, 20) {
		return
	}
	if !c.advance(ctx, taskID, tasks.StatusRunning, 60) {
		return
	}
	if c.registry.Cancelled(taskID) {
		log.Info("Task cancelled before completion started")
		return
	}

	reply, err := c.llm.Complete(ctx, message, CompletionOptions{
		Temperature: c.cfg.ChatTemperature,
		MaxTokens:   c.cfg.ChatMaxTokens,
	})
	if err != nil {
		log.Warn("Chat completion failed", "error", err)
		c.fail(ctx, taskID, err)
		return
	}

	done, err := c.registry.Transition(taskID, tasks.StatusSucceeded, 100, reply, "")
	if err != nil {
		log.Debug("Chat finished after terminal state was reached", "error", err)
		return
	}
	c.notifier.TaskUpdated(ctx, done)
	c.scheduleForget(done.ID)
	c.persistExchange(ctx, turn, message, reply)
	log.Info("Chat task completed", "reply_chars", len(reply))
}

// advance pushes a progress frame. It returns false when the task already
// left the running walk (cancelled or otherwise terminal), which ends the
// unit of work without another frame.
func (c *Coordinator) advance(ctx context.Context, taskID string, status tasks.Status, progress int) bool {
	task, err := c.registry.Transition(taskID, status, progress, "", "")
	if err != nil {
		var invalid *tasks.InvalidTransitionError
		if errors.As(err, &invalid) {
			c.log.Debug("Stopping unit of work", "task_id", taskID, "from", invalid.From)
			return false
		}
		c.log.Warn("Task transition failed", "task_id", taskID, "error", err)
		return false
	}
	c.notifier.TaskUpdated(ctx, task)
	return true
}

func (c *Coordinator) fail(ctx context.Context, taskID string, cause error) {
	task, err := c.registry.Transition(taskID, tasks.StatusFailed, 100, "", cause.Error())
	if err != nil {
		c.log.Debug("Task failed after terminal state was reached", "task_id", taskID, "error", err)
		return
	}
	c.notifier.TaskUpdated(ctx, task)
	c.scheduleForget(task.ID)
}

func (c *Coordinator) scheduleForget(taskID string) {
	time.AfterFunc(c.cfg.TaskRetention, func() { c.registry.Forget(taskID) })
}

// persistExchange appends the user/assistant pair to the conversation a
// chat turn named. The store's dedup window makes a resubmitted turn safe.
func (c *Coordinator) persistExchange(ctx context.Context, turn *ChatTurn, userContent, assistantContent string) {
	if turn == nil || c.convos == nil {
		return
	}
	if _, err := c.convos.AppendMessage(ctx, turn.ConversationID, "user", userContent, nil); err != nil {
		c.log.Warn("Failed to persist user message", "conversation_id", turn.ConversationID, "error", err)
		return
	}
	if _, err := c.convos.AppendMessage(ctx, turn.ConversationID, "assistant", assistantContent, nil); err != nil {
		c.log.Warn("Failed to persist assistant message", "conversation_id", turn.ConversationID, "error", err)
	}
}

func uploadUserContent(doc Document) string {
	return fmt.Sprintf("Uploaded document: %s", doc.FileName)
}
