// Package tasks runs deferred work on a fixed pool of workers fed by a
// bounded queue.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull = errors.New("tasks: queue full")
	ErrStopped   = errors.New("tasks: runner stopped")
)

// Func is a unit of deferred work. It receives the runner's context, which
// is cancelled when Stop gives up waiting.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
}

type Runner struct {
	Logger *slog.Logger

	workers int
	queue   chan job

	mu      sync.RWMutex
	stopped bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewRunner creates a runner; call Start before enqueueing.
func NewRunner(workers, queueSize int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Logger:  logger,
		workers: workers,
		queue:   make(chan job, queueSize),
	}
}

func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	r.group = g

	for range r.workers {
		g.Go(func() error {
			for j := range r.queue {
				r.run(gctx, j)
			}
			return nil
		})
	}
	r.Logger.Info("task runner started", slog.Int("workers", r.workers), slog.Int("queue_size", cap(r.queue)))
}

// Enqueue schedules fn without blocking. It fails with ErrQueueFull when the
// backlog is at capacity and ErrStopped after Stop.
func (r *Runner) Enqueue(name string, fn Func) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrStopped
	}
	select {
	case r.queue <- job{name: name, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new work, drains the queue and waits for workers. If ctx
// ends first, in-flight and queued jobs see a cancelled context; Stop still
// waits for them to return, then reports ctx's error. Callers may release
// shared resources such as the store once Stop returns.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	if r.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()

	select {
	case err := <-done:
		r.cancel()
		r.Logger.Info("task runner stopped")
		return err
	case <-ctx.Done():
		r.cancel()
		r.Logger.Warn("task runner cancelled in-flight work", slog.String("error", ctx.Err().Error()))
		<-done
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("task panicked", slog.String("task", j.name), slog.String("panic", fmt.Sprint(rec)))
		}
	}()

	if err := j.fn(ctx); err != nil {
		r.Logger.Warn("task failed", slog.String("task", j.name), slog.String("error", err.Error()))
	}
}
