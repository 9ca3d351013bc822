// Package operation runs deferred remote work. An Operation wraps a task
// that executes on its own goroutine and stores a tagged Result; a Scheduler
// runs operations one at a time in arrival order and dispatches their
// callbacks from its poll goroutine.
package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State is the lifecycle position of an Operation.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is either a value or an error. Check Err before using Value.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the result is the success variant.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Task is the unit of work an Operation runs.
type Task[T any] func(ctx context.Context) (T, error)

// Job is the type-erased view of an Operation used by the Scheduler.
type Job interface {
	Name() string
	Start(ctx context.Context)
	// Abort fails a job that has not started yet; its task never runs.
	Abort(err error)
	Running() bool
	State() State
	Err() error
	// Join blocks until the job is terminal and then runs its callback.
	Join()
	RunningText() string
	FinishedText() string
}

// Operation is a single asynchronous task with optional callbacks.
type Operation[T any] struct {
	name string
	task Task[T]

	runningText  string
	finishedText string
	onSuccess    func(T)
	onFailure    func(error)
	logger       *slog.Logger

	mu     sync.Mutex
	state  State
	result Result[T]
	done   chan struct{}
	joined sync.Once
}

// New creates a pending operation.
func New[T any](name string, task Task[T]) *Operation[T] {
	return &Operation[T]{
		name:         name,
		task:         task,
		runningText:  name + "...",
		finishedText: name + " done",
		done:         make(chan struct{}),
	}
}

// WithStatus overrides the texts reported while running and after joining.
func (o *Operation[T]) WithStatus(running, finished string) *Operation[T] {
	o.runningText = running
	o.finishedText = finished
	return o
}

// OnSuccess registers the success callback.
func (o *Operation[T]) OnSuccess(fn func(T)) *Operation[T] {
	o.onSuccess = fn
	return o
}

// OnFailure registers the failure callback. Without one, failures are logged.
func (o *Operation[T]) OnFailure(fn func(error)) *Operation[T] {
	o.onFailure = fn
	return o
}

// WithLogger sets the logger used for unhandled failures.
func (o *Operation[T]) WithLogger(l *slog.Logger) *Operation[T] {
	o.logger = l
	return o
}

func (o *Operation[T]) Name() string         { return o.name }
func (o *Operation[T]) RunningText() string  { return o.runningText }
func (o *Operation[T]) FinishedText() string { return o.finishedText }

// Start runs the task on a new goroutine. Calls after the first are no-ops.
func (o *Operation[T]) Start(ctx context.Context) {
	o.mu.Lock()
	if o.state != Pending {
		o.mu.Unlock()
		return
	}
	o.state = Running
	o.mu.Unlock()

	go o.run(ctx)
}

// Abort makes a pending operation terminal with err without running its
// task. It is a no-op once the operation has started.
func (o *Operation[T]) Abort(err error) {
	o.mu.Lock()
	if o.state != Pending {
		o.mu.Unlock()
		return
	}
	o.state = Failed
	o.result = Result[T]{Err: err}
	o.mu.Unlock()
	close(o.done)
}

func (o *Operation[T]) run(ctx context.Context) {
	var res Result[T]
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("operation: %s: panic: %v", o.name, r)}
		}
		o.mu.Lock()
		o.result = res
		if res.Err != nil {
			o.state = Failed
		} else {
			o.state = Succeeded
		}
		o.mu.Unlock()
		close(o.done)
	}()

	v, err := o.task(ctx)
	res = Result[T]{Value: v, Err: err}
}

// State returns the current state.
func (o *Operation[T]) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Running reports whether the task has been started and is not terminal.
func (o *Operation[T]) Running() bool {
	return o.State() == Running
}

// Done is closed once the operation is terminal.
func (o *Operation[T]) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation is terminal and returns its result
// without running callbacks. It starts nothing; waiting on a pending
// operation blocks until someone starts it.
func (o *Operation[T]) Wait() Result[T] {
	<-o.done
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Err returns the terminal error, or nil while not terminal or on success.
func (o *Operation[T]) Err() error {
	select {
	case <-o.done:
		return o.Wait().Err
	default:
		return nil
	}
}

// Join blocks until the operation is terminal, then invokes exactly one of
// the callbacks. Callbacks run at most once across repeated joins.
func (o *Operation[T]) Join() {
	res := o.Wait()
	o.joined.Do(func() {
		if res.Ok() {
			if o.onSuccess != nil {
				o.onSuccess(res.Value)
			}
			return
		}
		if o.onFailure != nil {
			o.onFailure(res.Err)
			return
		}
		o.log().Error("operation: failed", slog.String("operation", o.name), slog.String("error", res.Err.Error()))
	})
}

func (o *Operation[T]) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}
