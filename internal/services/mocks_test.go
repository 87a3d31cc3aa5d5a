package services

import (
	"context"
	"sync"

	"github.com/yungbote/deepchat-backend/internal/sse"
	"github.com/yungbote/deepchat-backend/internal/tasks"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, Document) (string, error) {
	return f.text, f.err
}

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	opts    []CompletionOptions
	block   chan struct{}
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &GenerationError{Kind: GenerationTimeout, Err: ctx.Err()}
		}
	}
	return f.reply, f.err
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeGenerator struct {
	mu      sync.Mutex
	summary string
	err     error
	calls   int
	block   chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, doc Document) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &GenerationError{Kind: GenerationTimeout, Err: ctx.Err()}
		}
	}
	return f.summary, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (m *memoryCache) Lookup(hash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.entries[hash]
	return summary, ok, nil
}

func (m *memoryCache) Store(hash, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = summary
	m.stores++
	return nil
}

// recordingBus stands in for the redis task bus and remembers the context
// state each publish arrived with.
type recordingBus struct {
	mu      sync.Mutex
	events  []sse.TaskEvent
	ctxErrs []error
	fail    error
}

func (b *recordingBus) Publish(ctx context.Context, event sse.TaskEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.events = append(b.events, event)
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	return nil
}

func (b *recordingBus) StartForwarder(context.Context, func(sse.TaskEvent)) error { return nil }

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) published() ([]sse.TaskEvent, []error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]sse.TaskEvent, len(b.events))
	copy(events, b.events)
	errs := make([]error, len(b.ctxErrs))
	copy(errs, b.ctxErrs)
	return events, errs
}

// gateNotifier parks the worker goroutine inside the first notification
// matching gateProgress, so a test can act while the worker is suspended.
type gateNotifier struct {
	recordingNotifier
	gateProgress int
	reached      chan struct{}
	release      chan struct{}
	once         sync.Once
}

func newGateNotifier(progress int) *gateNotifier {
	return &gateNotifier{
		gateProgress: progress,
		reached:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (g *gateNotifier) TaskUpdated(ctx context.Context, task tasks.Task) {
	g.recordingNotifier.TaskUpdated(ctx, task)
	if task.Status == tasks.StatusRunning && task.Progress == g.gateProgress {
		g.once.Do(func() {
			close(g.reached)
			<-g.release
		})
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sse.TaskEvent
}

func (r *recordingNotifier) TaskUpdated(_ context.Context, task tasks.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sse.EventFromTask(task))
}

func (r *recordingNotifier) all() []sse.TaskEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.TaskEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingNotifier) terminalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Terminal() {
			n++
		}
	}
	return n
}
