// Package tasks runs best-effort background work off the reply path.
//
// A [Supervisor] starts each task in its own goroutine without blocking the
// caller. Tasks inherit the values of the spawning context (trace spans,
// loggers) but not its cancellation, so a task outlives the message that
// started it. Each task is bounded by the supervisor's timeout. Failures,
// timeouts and panics are logged with the task's id and counted; they are
// never returned to the spawner.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/glyphchat/internal/observe"
)

// DefaultTimeout bounds a task when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// ErrClosed is reported through the failure hook for tasks submitted after
// [Supervisor.Shutdown] began.
var ErrClosed = errors.New("tasks: supervisor closed")

// Func is the body of a background task.
type Func func(ctx context.Context) error

// Failure describes a task that did not complete successfully.
type Failure struct {
	ID       string
	Name     string
	Err      error
	Panicked bool
	Duration time.Duration
}

// Reason returns a short label for metrics: "panic", "timeout",
// "cancelled", "rejected" or "error".
func (f Failure) Reason() string {
	switch {
	case f.Panicked:
		return "panic"
	case errors.Is(f.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(f.Err, context.Canceled):
		return "cancelled"
	case errors.Is(f.Err, ErrClosed):
		return "rejected"
	default:
		return "error"
	}
}

// Supervisor starts and tracks background tasks. It is safe for concurrent use.
type Supervisor struct {
	timeout   time.Duration
	metrics   *observe.Metrics
	onFailure func(Failure)

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	running atomic.Int64
}

// Option configures a [Supervisor].
type Option func(*Supervisor)

// WithTimeout bounds every task. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics records task gauges and failure counters on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithFailureHook registers fn to be called for every failed task after it
// is logged. fn runs on the task's goroutine.
func WithFailureHook(fn func(Failure)) Option {
	return func(s *Supervisor) { s.onFailure = fn }
}

// New returns a ready Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{timeout: DefaultTimeout}
	for _, o := range opts {
		o(s)
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	return s
}

// Go starts fn as a task named name and returns its id immediately. When the
// supervisor is shutting down the task is not started, the rejection is
// logged and the returned id is empty.
func (s *Supervisor) Go(ctx context.Context, name string, fn Func) string {
	id := uuid.NewString()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.fail(ctx, Failure{ID: id, Name: name, Err: ErrClosed})
		return ""
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.running.Add(1)
	if s.metrics != nil {
		s.metrics.ActiveTasks.Add(ctx, 1)
	}

	go s.run(ctx, id, name, fn)
	return id
}

func (s *Supervisor) run(parent context.Context, id, name string, fn Func) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	stop := context.AfterFunc(s.base, cancel)

	defer func() {
		stop()
		cancel()
		s.running.Add(-1)
		if s.metrics != nil {
			s.metrics.ActiveTasks.Add(ctx, -1)
		}
		s.wg.Done()
	}()

	err, panicked := call(ctx, fn)
	if err == nil {
		observe.Logger(ctx).Debug("task completed", "task", name, "task_id", id, "duration", time.Since(start))
		return
	}
	s.fail(ctx, Failure{ID: id, Name: name, Err: err, Panicked: panicked, Duration: time.Since(start)})
}

// call runs fn and converts a panic into an error.
func call(ctx context.Context, fn Func) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tasks: panic: %v\n%s", r, debug.Stack())
			panicked = true
		}
	}()
	return fn(ctx), false
}

func (s *Supervisor) fail(ctx context.Context, f Failure) {
	observe.Logger(ctx).Warn("background task failed",
		"task", f.Name,
		"task_id", f.ID,
		"reason", f.Reason(),
		"duration", f.Duration,
		"err", f.Err,
	)
	if s.metrics != nil {
		s.metrics.RecordTaskFailure(ctx, f.Name, f.Reason())
	}
	if s.onFailure != nil {
		s.onFailure(f)
	}
}

// Running reports the number of in-flight tasks.
func (s *Supervisor) Running() int { return int(s.running.Load()) }

// Wait blocks until every task started so far has finished or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones. If ctx ends
// first, the remaining tasks are cancelled and Shutdown waits for them to
// return before reporting ctx's error.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.Wait(ctx)
	if err != nil {
		s.cancel()
		s.wg.Wait()
		return fmt.Errorf("tasks: shutdown: %w", err)
	}
	s.cancel()
	return nil
}
