package operation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func testScheduler(t *testing.T, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewScheduler(ctx, append([]SchedulerOption{WithPollInterval(time.Millisecond)}, opts...)...)
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Idle():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never went idle")
	}
}

func TestSchedulerFIFO(t *testing.T) {
	s := testScheduler(t)

	var mu sync.Mutex
	var order []string
	var running, overlap int
	job := func(name string, d time.Duration) Job {
		return New(name, func(context.Context) (string, error) {
			mu.Lock()
			running++
			if running > 1 {
				overlap++
			}
			mu.Unlock()
			time.Sleep(d)
			mu.Lock()
			running--
			mu.Unlock()
			return name, nil
		}).OnSuccess(func(v string) {
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
		})
	}

	s.Enqueue(job("A", 20*time.Millisecond))
	if !s.Active() {
		t.Fatal("scheduler should be active after enqueue")
	}
	s.Enqueue(job("B", 1*time.Millisecond))
	s.Enqueue(job("C", 5*time.Millisecond))
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(order, []string{"A", "B", "C"}) {
		t.Errorf("callback order = %v", order)
	}
	if overlap != 0 {
		t.Errorf("%d jobs overlapped", overlap)
	}
	if s.Active() || s.Pending() != 0 || s.Current() != "" {
		t.Error("scheduler should be idle")
	}
}

func TestSchedulerSurvivesFailures(t *testing.T) {
	s := testScheduler(t)

	var mu sync.Mutex
	var events []string
	for i, fail := range []bool{true, false, true, false} {
		name := string(rune('a' + i))
		s.Enqueue(New(name, func(context.Context) (int, error) {
			if fail {
				return 0, errors.New(name + " failed")
			}
			return i, nil
		}).OnSuccess(func(int) {
			mu.Lock()
			events = append(events, "ok "+name)
			mu.Unlock()
		}).OnFailure(func(err error) {
			mu.Lock()
			events = append(events, "err "+name)
			mu.Unlock()
		}))
	}
	waitIdle(t, s)

	// An operation without callbacks only logs.
	s.Enqueue(New("silent", func(context.Context) (int, error) { return 0, errors.New("x") }))
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"err a", "ok b", "err c", "ok d"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestSchedulerStatusTexts(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	s := testScheduler(t, WithStatusFunc(func(text string) {
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
	}))

	release := make(chan struct{})
	s.Enqueue(New("sync", func(context.Context) (int, error) {
		<-release
		return 0, nil
	}).WithStatus("syncing", "synced"))

	deadline := time.Now().Add(2 * time.Second)
	for s.Status() != "syncing" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(texts) < 3 {
		t.Fatalf("texts = %v", texts)
	}
	if texts[0] != "syncing" || texts[len(texts)-2] != "synced" || texts[len(texts)-1] != "" {
		t.Errorf("texts = %v", texts)
	}
}

func TestSchedulerCallbackMayEnqueue(t *testing.T) {
	s := testScheduler(t)

	done := make(chan struct{})
	s.Enqueue(New("first", func(context.Context) (int, error) { return 1, nil }).
		OnSuccess(func(int) {
			s.Enqueue(New("second", func(context.Context) (int, error) { return 2, nil }).
				OnSuccess(func(int) { close(done) }))
		}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up job never ran")
	}
	waitIdle(t, s)
}

func TestSchedulerOperationTimeout(t *testing.T) {
	s := testScheduler(t, WithOperationTimeout(10*time.Millisecond))

	var got error
	s.Enqueue(New("hangs", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}).OnFailure(func(err error) { got = err }))
	waitIdle(t, s)

	if !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", got)
	}
}

func TestSchedulerRestartsAfterIdle(t *testing.T) {
	s := testScheduler(t)
	for round := 0; round < 3; round++ {
		ran := false
		s.Enqueue(New("round", func(context.Context) (int, error) { return 0, nil }).
			OnSuccess(func(int) { ran = true }))
		waitIdle(t, s)
		if !ran {
			t.Fatalf("round %d did not run", round)
		}
	}
}

func TestSchedulerCancelFailsQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewScheduler(ctx, WithPollInterval(time.Millisecond))

	started := make(chan struct{})
	var running error
	s.Enqueue(New("running", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}).OnFailure(func(err error) { running = err }))

	var queuedRan bool
	var queued error
	q := New("queued", func(context.Context) (int, error) {
		queuedRan = true
		return 0, nil
	}).OnFailure(func(err error) { queued = err })
	s.Enqueue(q)

	<-started
	cancel()
	waitIdle(t, s)

	if !errors.Is(running, context.Canceled) {
		t.Errorf("running job err = %v, want context.Canceled", running)
	}
	if !errors.Is(queued, context.Canceled) {
		t.Errorf("queued job err = %v, want context.Canceled", queued)
	}
	if queuedRan || q.State() != Failed {
		t.Errorf("queued job ran=%v state=%v", queuedRan, q.State())
	}
	if s.Pending() != 0 || s.Active() {
		t.Error("scheduler should be idle with an empty queue")
	}
}

func TestAbortAfterStartIsNoop(t *testing.T) {
	op := New("x", func(context.Context) (int, error) { return 7, nil })
	op.Start(context.Background())
	op.Abort(context.Canceled)
	if r := op.Wait(); r.Err != nil || r.Value != 7 {
		t.Errorf("result = %+v", r)
	}

	pending := New("y", func(context.Context) (int, error) { return 1, nil })
	pending.Abort(context.Canceled)
	pending.Start(context.Background())
	if r := pending.Wait(); !errors.Is(r.Err, context.Canceled) {
		t.Errorf("aborted result = %+v", r)
	}
}
