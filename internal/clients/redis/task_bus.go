package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/sse"
)

// TaskBus forwards task events between instances so a client may hold its
// notification channel on a different node than the one running the task.
type TaskBus interface {
	Publish(ctx context.Context, event sse.TaskEvent) error
	StartForwarder(ctx context.Context, onEvent func(e sse.TaskEvent)) error
	Close() error
}

type taskBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewTaskBus(log *logger.Logger, addr, channel string) (TaskBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "task-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &taskBus{
		log:     log.With("service", "RedisTaskBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *taskBus) Publish(ctx context.Context, event sse.TaskEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis task bus not initialized")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *taskBus) StartForwarder(ctx context.Context, onEvent func(e sse.TaskEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis task bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event sse.TaskEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.log.Warn("bad redis task event payload", "error", err)
					continue
				}
				onEvent(event)
			}
		}
	}()

	return nil
}

func (b *taskBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
