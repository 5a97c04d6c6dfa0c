package netjoin

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcu-template/taskboot/pkg/log"
)

// Driver is the radio driver the coordinator joins through.
type Driver interface {
	// Subscribe registers the caller as the sole consumer of connectivity
	// events and returns the channel they are delivered on. A later call
	// replaces the earlier subscription. The channel is closed when the
	// driver stops.
	Subscribe() (<-chan Event, error)

	// Start brings the radio up in station mode. The driver answers with
	// EventDriverStarted on the subscribed channel. No event for a new
	// subscription may be emitted before Start is called.
	Start(ctx context.Context) error

	// Connect issues a connect request. Its result arrives later as
	// EventAddressAcquired or EventDisconnected. A returned error means the
	// request could not be issued at all.
	Connect(req ConnectRequest) error

	// Stop takes the radio down.
	Stop() error
}

var errNilChannel = errors.New("driver returned nil event channel")

// Options configures a Coordinator.
type Options struct {
	// Logger is the optional operational logger.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Trace receives the join trace. If nil, tracing is disabled.
	Trace log.Logger
}

// Snapshot is a point-in-time copy of the current attempt's state.
type Snapshot struct {
	AttemptID  string
	SSID       string
	Outcome    Outcome
	RetryCount int
	MaxRetries int
	Address    netip.Addr
}

// attempt holds everything that lives for one BeginJoin call.
type attempt struct {
	id    string
	cfg   JoinConfig
	state *JoinState
}

// Coordinator runs join attempts against a Driver.
type Coordinator struct {
	driver Driver
	logger *slog.Logger
	trace  log.Logger

	mu      sync.Mutex
	current *attempt
	running bool
	closed  bool

	// stopLoop cancels the event loop of the most recent attempt. The loop
	// outlives BeginJoin so that late events keep being drained.
	stopLoop context.CancelFunc
	loopWG   sync.WaitGroup

	onOutcome func(Snapshot)
}

// NewCoordinator creates a coordinator for the given driver.
func NewCoordinator(driver Driver, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trace := opts.Trace
	if trace == nil {
		trace = log.NoopLogger{}
	}
	return &Coordinator{
		driver: driver,
		logger: logger,
		trace:  trace,
	}
}

// OnOutcome sets a callback invoked once per attempt with the terminal
// snapshot. It runs on the goroutine that called BeginJoin.
func (c *Coordinator) OnOutcome(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOutcome = fn
}

// BeginJoin starts a join attempt and blocks until it reaches a terminal
// outcome.
//
// The returned outcome is never OutcomePending. A non-nil error is either
// a *SetupError (matching ErrSetup), ErrAlreadyRunning, ErrInvalidConfig,
// ErrClosed, or the context's error if ctx was cancelled first; the
// outcome is then OutcomeFailed.
func (c *Coordinator) BeginJoin(ctx context.Context, cfg JoinConfig) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return OutcomeFailed, err
	}

	a := &attempt{
		id:    uuid.NewString(),
		cfg:   cfg,
		state: NewJoinState(cfg.MaxRetries),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return OutcomeFailed, ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return OutcomeFailed, ErrAlreadyRunning
	}
	c.running = true
	c.current = a
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	// The previous attempt's drain loop must not compete for events.
	c.stopEventLoop()

	c.logger.Info("join attempt started",
		"attempt", a.id, "ssid", cfg.SSID, "maxRetries", cfg.MaxRetries, "minAuth", cfg.MinAuth)
	c.record(a, log.KindAttemptStarted, "", "")

	events, err := c.driver.Subscribe()
	if err != nil {
		return c.setupFailed(a, "subscribe", err)
	}
	if events == nil {
		return c.setupFailed(a, "subscribe", errNilChannel)
	}

	// Close may have run since the check above. The loop is registered
	// under the same lock that Close sets closed with.
	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		a.state.Finish(OutcomeFailed)
		return OutcomeFailed, ErrClosed
	}
	c.stopLoop = cancel
	c.loopWG.Add(1)
	c.mu.Unlock()

	go c.eventLoop(loopCtx, a, events)

	if err := c.driver.Start(ctx); err != nil {
		c.stopEventLoop()
		return c.setupFailed(a, "start", err)
	}

	outcome, err := c.wait(ctx, a)
	if err != nil {
		c.logger.Info("join attempt cancelled", "attempt", a.id, "error", err)
		a.state.Finish(OutcomeFailed)
		c.stopEventLoop()
		return OutcomeFailed, err
	}

	snap := c.snapshot(a)
	c.logger.Info("join attempt finished",
		"attempt", a.id, "outcome", outcome, "retries", snap.RetryCount, "address", snap.Address)
	c.record(a, log.KindOutcome, "", "")

	c.mu.Lock()
	fn := c.onOutcome
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}

	return outcome, nil
}

// wait blocks until the attempt is terminal, the timeout elapses, or ctx
// is done.
func (c *Coordinator) wait(ctx context.Context, a *attempt) (Outcome, error) {
	var timeout <-chan time.Time
	if a.cfg.Timeout > 0 {
		timer := time.NewTimer(a.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-a.state.Done():
		return a.state.Outcome(), nil

	case <-timeout:
		return a.state.Expire(), nil

	case <-ctx.Done():
		// A terminal outcome posted concurrently with cancellation wins.
		if o := a.state.Outcome(); o.Terminal() {
			return o, nil
		}
		return OutcomeFailed, ctx.Err()
	}
}

// eventLoop consumes driver events for one attempt. It keeps running after
// the attempt is terminal so that late events are drained and recorded,
// until the loop is stopped or the driver closes the channel.
func (c *Coordinator) eventLoop(ctx context.Context, a *attempt, events <-chan Event) {
	defer c.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				if _, posted := a.state.Finish(OutcomeFailed); posted {
					c.logger.Debug("driver closed event channel before outcome", "attempt", a.id)
					c.record(a, log.KindDisconnected, "", ReasonDriverClosed.String())
				}
				return
			}
			c.handle(a, ev)
		}
	}
}

// handle applies one event and performs the resulting action before the
// next event is received.
func (c *Coordinator) handle(a *attempt, ev Event) {
	action := a.state.Apply(ev)

	if action == ActionIgnored {
		c.logger.Debug("late event ignored", "attempt", a.id, "event", ev, "outcome", a.state.Outcome())
		c.record(a, log.KindLateEvent, "", ev.String())
		return
	}

	switch ev.Kind {
	case EventDriverStarted:
		c.record(a, log.KindDriverStarted, "", "")
	case EventDisconnected:
		c.logger.Debug("station disconnected",
			"attempt", a.id, "reason", ev.Reason, "retries", a.state.RetryCount(), "max", a.state.MaxRetries())
		c.record(a, log.KindDisconnected, "", ev.Reason.String())
	case EventAddressAcquired:
		c.record(a, log.KindAddressAcquired, ev.Address.String(), "")
	}

	if action != ActionConnect {
		return
	}

	c.record(a, log.KindConnectRequested, "", "")
	err := c.driver.Connect(ConnectRequest{
		SSID:       a.cfg.SSID,
		Passphrase: a.cfg.Passphrase,
		MinAuth:    a.cfg.MinAuth,
	})
	if err != nil {
		// A request that could not be issued counts as a failed association.
		c.logger.Debug("connect request failed", "attempt", a.id, "error", err)
		c.handle(a, Disconnected(ReasonConnectError))
	}
}

func (c *Coordinator) setupFailed(a *attempt, op string, err error) (Outcome, error) {
	setupErr := &SetupError{Op: op, Err: err}
	a.state.Finish(OutcomeFailed)
	c.logger.Error("join setup failed", "attempt", a.id, "op", op, "error", err)
	c.record(a, log.KindSetupError, "", setupErr.Error())
	return OutcomeFailed, setupErr
}

// stopEventLoop cancels the running event loop, if any, and waits for it.
func (c *Coordinator) stopEventLoop() {
	c.mu.Lock()
	cancel := c.stopLoop
	c.stopLoop = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.loopWG.Wait()
}

// Snapshot returns the state of the most recent attempt. Before the first
// attempt, the zero Snapshot is returned.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	a := c.current
	c.mu.Unlock()
	if a == nil {
		return Snapshot{}
	}
	return c.snapshot(a)
}

func (c *Coordinator) snapshot(a *attempt) Snapshot {
	v := a.state.View()
	return Snapshot{
		AttemptID:  a.id,
		SSID:       a.cfg.SSID,
		Outcome:    v.Outcome,
		RetryCount: v.RetryCount,
		MaxRetries: v.MaxRetries,
		Address:    v.Address,
	}
}

// Close stops draining events. A running BeginJoin is not interrupted;
// cancel its context for that.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stopEventLoop()
}

// record emits a trace event for the attempt.
func (c *Coordinator) record(a *attempt, kind log.Kind, address, reason string) {
	v := a.state.View()
	ev := log.Event{
		Timestamp:  time.Now(),
		AttemptID:  a.id,
		Kind:       kind,
		SSID:       a.cfg.SSID,
		RetryCount: v.RetryCount,
		MaxRetries: v.MaxRetries,
		Address:    address,
		Reason:     reason,
	}
	if v.Outcome != OutcomePending || kind == log.KindOutcome {
		ev.Outcome = v.Outcome.String()
	}
	if kind == log.KindOutcome && ev.Address == "" && v.Outcome == OutcomeConnected {
		ev.Address = v.Address.String()
	}
	c.trace.Log(ev)
}
