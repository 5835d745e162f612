package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MrWong99/glyphchat/internal/tasks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failures struct {
	mu   sync.Mutex
	list []tasks.Failure
}

func (f *failures) hook(fl tasks.Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, fl)
}

func (f *failures) all() []tasks.Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tasks.Failure(nil), f.list...)
}

func TestGo_Success(t *testing.T) {
	var f failures
	s := tasks.New(tasks.WithFailureHook(f.hook))

	ran := make(chan struct{})
	id := s.Go(context.Background(), "ok", func(context.Context) error {
		close(ran)
		return nil
	})
	if id == "" {
		t.Fatal("Go returned empty id")
	}
	<-ran
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := f.all(); len(got) != 0 {
		t.Errorf("unexpected failures: %+v", got)
	}
	if s.Running() != 0 {
		t.Errorf("Running = %d, want 0", s.Running())
	}
}

func TestGo_DoesNotBlock(t *testing.T) {
	s := tasks.New()
	release := make(chan struct{})

	start := time.Now()
	s.Go(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("Go blocked on the task body")
	}
	if s.Running() != 1 {
		t.Errorf("Running = %d, want 1", s.Running())
	}
	close(release)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestGo_Failures(t *testing.T) {
	tests := []struct {
		name   string
		fn     tasks.Func
		reason string
	}{
		{
			name:   "error",
			fn:     func(context.Context) error { return errors.New("disk full") },
			reason: "error",
		},
		{
			name:   "panic",
			fn:     func(context.Context) error { panic("boom") },
			reason: "panic",
		},
		{
			name: "timeout",
			fn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			reason: "timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f failures
			s := tasks.New(tasks.WithTimeout(20*time.Millisecond), tasks.WithFailureHook(f.hook))
			id := s.Go(context.Background(), tt.name, tt.fn)
			if err := s.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}

			got := f.all()
			if len(got) != 1 {
				t.Fatalf("got %d failures, want 1", len(got))
			}
			if got[0].ID != id || got[0].Name != tt.name {
				t.Errorf("failure = %+v, want id %s name %s", got[0], id, tt.name)
			}
			if got[0].Reason() != tt.reason {
				t.Errorf("reason = %q, want %q", got[0].Reason(), tt.reason)
			}
		})
	}
}

func TestGo_DetachedFromCallerCancellation(t *testing.T) {
	s := tasks.New()
	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "trace"))

	result := make(chan error, 1)
	started := make(chan struct{})
	s.Go(parent, "detached", func(ctx context.Context) error {
		close(started)
		if ctx.Value(key{}) != "trace" {
			result <- errors.New("value not inherited")
			return nil
		}
		time.Sleep(30 * time.Millisecond)
		result <- ctx.Err()
		return nil
	})
	<-started
	cancel()

	if err := <-result; err != nil {
		t.Fatalf("task saw %v after caller cancelled", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdown_RejectsNewTasks(t *testing.T) {
	var f failures
	s := tasks.New(tasks.WithFailureHook(f.hook))
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if id := s.Go(context.Background(), "late", func(context.Context) error { return nil }); id != "" {
		t.Errorf("Go after shutdown returned id %q", id)
	}
	got := f.all()
	if len(got) != 1 || !errors.Is(got[0].Err, tasks.ErrClosed) || got[0].Reason() != "rejected" {
		t.Fatalf("failures = %+v, want one rejection", got)
	}
}

func TestShutdown_DeadlineCancelsTasks(t *testing.T) {
	var f failures
	s := tasks.New(tasks.WithTimeout(time.Hour), tasks.WithFailureHook(f.hook))
	s.Go(context.Background(), "stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown err = %v, want deadline exceeded", err)
	}
	got := f.all()
	if len(got) != 1 || got[0].Reason() != "cancelled" {
		t.Fatalf("failures = %+v, want one cancelled task", got)
	}
}

func TestWait_ContextDone(t *testing.T) {
	s := tasks.New()
	release := make(chan struct{})
	s.Go(context.Background(), "held", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
	close(release)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
