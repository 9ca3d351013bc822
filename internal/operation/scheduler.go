package operation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often the scheduler checks the running job.
const DefaultPollInterval = time.Second

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPollInterval sets the poll interval.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStatusFunc sets the sink for status texts. It is called from the poll
// goroutine with the running text while a job works, its finished text once
// joined, and "" when the queue drains.
func WithStatusFunc(fn func(string)) SchedulerOption {
	return func(s *Scheduler) {
		s.statusFn = fn
	}
}

// WithOperationTimeout bounds every job's context. Zero means no timeout.
func WithOperationTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// Scheduler is a single-flight FIFO queue of jobs. At most one job runs at
// a time. A poll goroutine exists only while the scheduler is active; it
// joins finished jobs, so callbacks run on it and never on a job goroutine.
//
// Callbacks may Enqueue. They must not wait on Idle, which would deadlock
// the poll goroutine against itself.
type Scheduler struct {
	ctx      context.Context
	interval time.Duration
	timeout  time.Duration
	statusFn func(string)
	logger   *slog.Logger

	mu      sync.Mutex
	pending []Job
	current Job
	cancel  context.CancelFunc
	started time.Time
	active  bool
	idle    chan struct{}
	status  string
}

// NewScheduler creates an idle scheduler. Jobs inherit ctx; once it is
// done the scheduler stops starting new jobs.
func NewScheduler(ctx context.Context, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		ctx:      ctx,
		interval: DefaultPollInterval,
		idle:     make(chan struct{}),
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Enqueue appends job to the queue. If the scheduler is idle the job starts
// immediately and polling begins.
func (s *Scheduler) Enqueue(job Job) {
	s.mu.Lock()
	s.pending = append(s.pending, job)
	queueDepth.Set(float64(len(s.pending)))
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.idle = make(chan struct{})
	s.startNextLocked()
	s.mu.Unlock()

	go s.loop()
}

// Active reports whether a job is running or queued.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending returns the number of queued jobs behind the running one.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Current returns the name of the running job, or "".
func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Name()
}

// Status returns the last reported status text.
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Idle returns a channel closed once the scheduler has drained.
func (s *Scheduler) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *Scheduler) startNextLocked() {
	job := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	queueDepth.Set(float64(len(s.pending)))

	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
	}
	s.current = job
	s.cancel = cancel
	s.started = time.Now()
	job.Start(ctx)
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case <-ticker.C:
			if !s.poll() {
				return
			}
		}
	}
}

// poll advances the state machine once and reports whether polling should
// continue.
func (s *Scheduler) poll() bool {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur.Running() {
		s.report(cur.RunningText())
		return true
	}

	s.finish(cur)

	s.mu.Lock()
	if len(s.pending) > 0 && s.ctx.Err() == nil {
		s.startNextLocked()
		s.mu.Unlock()
		return true
	}
	s.goIdleLocked()
	s.mu.Unlock()
	s.report("")
	return false
}

// finish joins cur outside the lock so its callback may enqueue.
func (s *Scheduler) finish(cur Job) {
	cur.Join()

	s.mu.Lock()
	s.cancel()
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	outcome := "succeeded"
	if cur.State() == Failed {
		outcome = "failed"
		s.logger.Debug("scheduler: operation failed",
			slog.String("operation", cur.Name()),
			slog.String("error", cur.Err().Error()))
	}
	operationsTotal.WithLabelValues(cur.Name(), outcome).Inc()
	operationDuration.WithLabelValues(cur.Name()).Observe(elapsed.Seconds())
	s.report(cur.FinishedText())
}

// drain runs when the scheduler context ends. The running job sees the
// cancellation through its context; queued jobs never start and fail with
// context.Canceled through their failure callbacks.
func (s *Scheduler) drain() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur != nil {
		s.finish(cur)
	}

	// Failure callbacks may enqueue more work; keep cancelling until the
	// queue stays empty.
	for {
		s.mu.Lock()
		dropped := s.pending
		s.pending = nil
		if len(dropped) == 0 {
			s.goIdleLocked()
			s.mu.Unlock()
			break
		}
		queueDepth.Set(0)
		s.mu.Unlock()

		s.logger.Warn("scheduler: cancelling queued operations", slog.Int("count", len(dropped)))
		for _, job := range dropped {
			job.Abort(context.Canceled)
			job.Join()
			operationsTotal.WithLabelValues(job.Name(), "cancelled").Inc()
		}
	}
	s.report("")
}

func (s *Scheduler) goIdleLocked() {
	s.pending = nil
	s.current = nil
	s.cancel = nil
	s.active = false
	queueDepth.Set(0)
	close(s.idle)
}

func (s *Scheduler) report(text string) {
	s.mu.Lock()
	s.status = text
	s.mu.Unlock()
	if s.statusFn != nil {
		s.statusFn(text)
	}
}
