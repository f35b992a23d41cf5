// Package async runs best-effort side effects off the request path.
//
// Tasks never report back to the caller: errors and panics are caught at
// the Go boundary and logged. Wait lets a Lambda invocation drain pending
// work before returning.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"leadgen-agent/internal/logging"
)

const defaultTaskTimeout = 15 * time.Second

// Runner is reused across invocations, so Go may race with a Wait that is
// already draining. pending and idle are guarded by mu for that reason.
type Runner struct {
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed when pending drops to zero
}

func NewRunner(log *slog.Logger, taskTimeout time.Duration) *Runner {
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}
	return &Runner{log: logging.OrDefault(log), timeout: taskTimeout}
}

// Go starts fn in the background. fn receives a context that keeps ctx's
// values but not its cancellation, bounded by the runner's task timeout.
func (r *Runner) Go(ctx context.Context, name string, fn func(context.Context) error) {
	taskCtx := context.WithoutCancel(ctx)
	r.add()
	go func() {
		defer r.done()
		if err := r.run(taskCtx, fn); err != nil {
			logging.FromContext(ctx, r.log).Warn("background task failed", "task", name, "err", err)
		}
	}()
}

func (r *Runner) add() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
}

func (r *Runner) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if r.pending == 0 {
		close(r.idle)
	}
}

func (r *Runner) run(ctx context.Context, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("background task panicked", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("async: panic: %v", rec)
		}
	}()
	return fn(ctx)
}

// Wait blocks until no task is pending or ctx is done. Tasks started while
// Wait is blocked are waited for as well.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	if r.pending == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
