package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// GroupOptions configures a Group.
type GroupOptions struct {
	// Cores is the number of logical cores. Zero means DefaultCores.
	Cores int

	// Logger is the optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Group runs a set of tasks that stop together. The first task error
// cancels the others.
type Group struct {
	cores  int
	logger *slog.Logger
	cancel context.CancelFunc
	pool   *pool.ContextPool

	mu    sync.Mutex
	tasks []*TaskHandle
}

// NewGroup creates a group whose tasks stop when ctx is done.
func NewGroup(ctx context.Context, opts GroupOptions) *Group {
	cores := opts.Cores
	if cores <= 0 {
		cores = DefaultCores
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		cores:  cores,
		logger: logger,
		cancel: cancel,
		pool:   pool.New().WithContext(ctx).WithCancelOnError().WithFirstError(),
	}
}

// Cores returns the number of logical cores tasks can be tagged with.
func (g *Group) Cores() int { return g.cores }

// Spawn starts a task in the group.
func (g *Group) Spawn(spec TaskSpec, fn TaskFunc) (*TaskHandle, error) {
	h, err := newHandle(spec, g.cores, fn)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.tasks = append(g.tasks, h)
	g.mu.Unlock()

	g.pool.Go(func(ctx context.Context) error {
		return h.run(ctx, g.logger, fn)
	})
	return h, nil
}

// Tasks returns the tasks spawned so far.
func (g *Group) Tasks() []*TaskHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*TaskHandle(nil), g.tasks...)
}

// Stop cancels all tasks.
func (g *Group) Stop() {
	g.cancel()
}

// Wait blocks until every task has stopped and returns the first task
// error. No task may be spawned after Wait is called.
func (g *Group) Wait() error {
	defer g.cancel()
	return g.pool.Wait()
}
