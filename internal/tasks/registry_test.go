package tasks

import (
	"errors"
	"sync"
	"testing"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewRegistry(log)
}

func TestRegistry_CreateHonorsClientID(t *testing.T) {
	r := newTestRegistry(t)

	task, err := r.Create("  client-chosen  ", KindUpload, "paper.pdf")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID != "client-chosen" {
		t.Fatalf("expected trimmed client id, got %q", task.ID)
	}
	if task.Status != StatusPending || task.Progress != 0 {
		t.Fatalf("new task should be pending at 0, got %s/%d", task.Status, task.Progress)
	}

	if _, err := r.Create("client-chosen", KindUpload, "other.pdf"); err == nil {
		t.Fatalf("expected collision on reused id")
	}
}

func TestRegistry_CreateGeneratesID(t *testing.T) {
	r := newTestRegistry(t)

	a, _ := r.Create("", KindChat, "")
	b, _ := r.Create("", KindChat, "")
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.ID, b.ID)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestRegistry_MonotonicWalk(t *testing.T) {
	r := newTestRegistry(t)
	task, _ := r.Create("t", KindUpload, "f.pdf")

	task, err := r.Transition(task.ID, StatusRunning, 20, "", "")
	if err != nil {
		t.Fatalf("pending->running: %v", err)
	}
	if task.Progress != 20 {
		t.Fatalf("progress = %d, want 20", task.Progress)
	}

	// Running back to pending must be rejected.
	if _, err := r.Transition(task.ID, StatusPending, 0, "", ""); err == nil {
		t.Fatalf("expected running->pending to be invalid")
	}
	var invalid *InvalidTransitionError
	_, err = r.Transition(task.ID, StatusPending, 0, "", "")
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	task, err = r.Transition(task.ID, StatusSucceeded, 100, "done", "")
	if err != nil {
		t.Fatalf("running->succeeded: %v", err)
	}
	if task.Progress != 100 || task.Result != "done" {
		t.Fatalf("terminal task = %+v", task)
	}

	// Terminal absorbs every further transition.
	if _, err := r.Transition(task.ID, StatusFailed, 100, "", "late failure"); err == nil {
		t.Fatalf("expected terminal state to absorb further transitions")
	}
	got, _ := r.Get(task.ID)
	if got.Status != StatusSucceeded || got.Result != "done" {
		t.Fatalf("terminal state mutated: %+v", got)
	}
}

func TestRegistry_ProgressNeverDecreases(t *testing.T) {
	r := newTestRegistry(t)
	task, _ := r.Create("t", KindChat, "")

	r.Transition(task.ID, StatusRunning, 60, "", "")
	got, err := r.Transition(task.ID, StatusRunning, 20, "", "")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Progress != 60 {
		t.Fatalf("progress regressed to %d", got.Progress)
	}
}

func TestRegistry_SkipRunningIsAllowed(t *testing.T) {
	// A cache hit resolves straight from pending.
	r := newTestRegistry(t)
	task, _ := r.Create("t", KindUpload, "f.pdf")

	got, err := r.Transition(task.ID, StatusSucceeded, 100, "cached", "")
	if err != nil {
		t.Fatalf("pending->succeeded: %v", err)
	}
	if got.Status != StatusSucceeded || got.Result != "cached" || got.Progress != 100 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestRegistry_CancelIsTerminalAndAbsorbing(t *testing.T) {
	r := newTestRegistry(t)
	task, _ := r.Create("t", KindUpload, "f.pdf")
	r.Transition(task.ID, StatusRunning, 20, "", "")

	got, err := r.Cancel(task.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled || got.Progress != 100 {
		t.Fatalf("cancelled snapshot %+v", got)
	}
	if !r.Cancelled(task.ID) {
		t.Fatalf("Cancelled() should report true")
	}

	// Cancelling again is a no-op, not an error.
	again, err := r.Cancel(task.ID)
	if err != nil || again.Status != StatusCancelled {
		t.Fatalf("second cancel: %+v %v", again, err)
	}

	// A straggling worker cannot resurrect the task.
	if _, err := r.Transition(task.ID, StatusSucceeded, 100, "late", ""); err == nil {
		t.Fatalf("expected cancelled task to absorb success")
	}
}

func TestRegistry_ForgetOnlyDropsTerminal(t *testing.T) {
	r := newTestRegistry(t)
	live, _ := r.Create("live", KindChat, "")
	done, _ := r.Create("done", KindChat, "")
	r.Transition(done.ID, StatusSucceeded, 100, "x", "")

	r.Forget(live.ID)
	r.Forget(done.ID)

	if _, err := r.Get(live.ID); err != nil {
		t.Fatalf("live task was forgotten")
	}
	if _, err := r.Get(done.ID); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("terminal task should be gone, got %v", err)
	}
}

func TestRegistry_ConcurrentTransitionsSingleTerminal(t *testing.T) {
	r := newTestRegistry(t)
	task, _ := r.Create("t", KindUpload, "f.pdf")
	r.Transition(task.ID, StatusRunning, 20, "", "")

	var wg sync.WaitGroup
	wins := make(chan Status, 3)
	for _, terminal := range []Status{StatusSucceeded, StatusFailed, StatusCancelled} {
		wg.Add(1)
		go func(s Status) {
			defer wg.Done()
			if _, err := r.Transition(task.ID, s, 100, "r", "e"); err == nil {
				wins <- s
			}
		}(terminal)
	}
	wg.Wait()
	close(wins)

	var winners []Status
	for s := range wins {
		winners = append(winners, s)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one terminal winner, got %v", winners)
	}
	got, _ := r.Get(task.ID)
	if got.Status != winners[0] {
		t.Fatalf("registry holds %s, winner was %s", got.Status, winners[0])
	}
}
