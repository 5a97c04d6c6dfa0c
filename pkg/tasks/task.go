package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCores is the logical core count of the reference board.
const DefaultCores = 2

var (
	// ErrInvalidCore is returned for a core id outside [0, cores).
	ErrInvalidCore = errors.New("core id out of range")

	// ErrInvalidTask is returned for a task without a name or function.
	ErrInvalidTask = errors.New("invalid task")
)

// TaskSpec describes a task.
type TaskSpec struct {
	Name string

	// Core is the logical core the task is tagged with.
	Core int

	// Period is the delay between runs. Zero runs the function once.
	Period time.Duration
}

// TaskFunc is one run of a task. Returning an error ends the task.
type TaskFunc func(ctx context.Context) error

// TaskHandle tracks a spawned task.
type TaskHandle struct {
	spec TaskSpec
	runs atomic.Uint64
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newHandle(spec TaskSpec, cores int, fn TaskFunc) (*TaskHandle, error) {
	if spec.Name == "" || fn == nil {
		return nil, ErrInvalidTask
	}
	if spec.Period < 0 {
		return nil, fmt.Errorf("%w: negative period", ErrInvalidTask)
	}
	if spec.Core < 0 || spec.Core >= cores {
		return nil, fmt.Errorf("%w: task %s core %d, have %d", ErrInvalidCore, spec.Name, spec.Core, cores)
	}
	return &TaskHandle{spec: spec, done: make(chan struct{})}, nil
}

// Spawn starts fn on its own goroutine locked to an OS thread, tagged with
// spec.Core out of DefaultCores. The task stops when ctx is done or fn
// returns an error.
func Spawn(ctx context.Context, spec TaskSpec, fn TaskFunc) (*TaskHandle, error) {
	h, err := newHandle(spec, DefaultCores, fn)
	if err != nil {
		return nil, err
	}
	go func() { _ = h.run(ctx, slog.Default(), fn) }()
	return h, nil
}

func (h *TaskHandle) run(ctx context.Context, logger *slog.Logger, fn TaskFunc) error {
	defer close(h.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger.Debug("task started", "task", h.spec.Name, "core", h.spec.Core, "period", h.spec.Period)
	err := h.loop(ctx, fn)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		logger.Error("task failed", "task", h.spec.Name, "core", h.spec.Core, "error", err)
	} else {
		logger.Debug("task stopped", "task", h.spec.Name, "runs", h.Runs())
	}

	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	return err
}

func (h *TaskHandle) loop(ctx context.Context, fn TaskFunc) error {
	if h.spec.Period == 0 {
		err := fn(ctx)
		h.runs.Add(1)
		return err
	}

	ticker := time.NewTicker(h.spec.Period)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
		h.runs.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Name returns the task name.
func (h *TaskHandle) Name() string { return h.spec.Name }

// Core returns the logical core the task is tagged with.
func (h *TaskHandle) Core() int { return h.spec.Core }

// Runs returns how many times the task function completed.
func (h *TaskHandle) Runs() uint64 { return h.runs.Load() }

// Done is closed when the task has stopped.
func (h *TaskHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task stops and returns its error. Cancellation is
// not an error.
func (h *TaskHandle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
