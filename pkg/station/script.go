package station

import (
	"context"
	"sync"
	"time"

	"github.com/mcu-template/taskboot/pkg/netjoin"
)

// Step is the driver's reply to one connect request.
type Step struct {
	Events []netjoin.Event
	Delay  time.Duration
}

// Reply builds a Step delivering events without delay.
func Reply(events ...netjoin.Event) Step {
	return Step{Events: events}
}

// ScriptDriver replays a fixed script. Start answers with DriverStarted and
// the n-th Connect releases Script[n]. Connects past the end of the script
// are counted but produce no event.
type ScriptDriver struct {
	Script []Step

	// StartDelay is applied before DriverStarted is delivered.
	StartDelay time.Duration

	// Errors returned from the corresponding calls, for setup failure tests.
	SubscribeErr error
	StartErr     error
	ConnectErr   error

	once  sync.Once
	queue *eventQueue

	mu       sync.Mutex
	connects int
	requests []netjoin.ConnectRequest
}

// NewScriptDriver creates a driver replaying steps.
func NewScriptDriver(steps ...Step) *ScriptDriver {
	return &ScriptDriver{Script: steps}
}

func (d *ScriptDriver) init() {
	d.once.Do(func() { d.queue = newEventQueue() })
}

// Subscribe implements netjoin.Driver.
func (d *ScriptDriver) Subscribe() (<-chan netjoin.Event, error) {
	if d.SubscribeErr != nil {
		return nil, d.SubscribeErr
	}
	d.init()
	return d.queue.subscribe(), nil
}

// Start implements netjoin.Driver.
func (d *ScriptDriver) Start(ctx context.Context) error {
	if d.StartErr != nil {
		return d.StartErr
	}
	d.init()
	d.queue.push(netjoin.DriverStarted(), d.StartDelay)
	return nil
}

// Connect implements netjoin.Driver.
func (d *ScriptDriver) Connect(req netjoin.ConnectRequest) error {
	d.init()

	d.mu.Lock()
	n := d.connects
	d.connects++
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	if n >= len(d.Script) {
		return nil
	}

	step := d.Script[n]
	for i, ev := range step.Events {
		delay := time.Duration(0)
		if i == 0 {
			delay = step.Delay
		}
		d.queue.push(ev, delay)
	}
	return nil
}

// Connects returns the number of Connect calls.
func (d *ScriptDriver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// Requests returns a copy of the connect requests received.
func (d *ScriptDriver) Requests() []netjoin.ConnectRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]netjoin.ConnectRequest(nil), d.requests...)
}

// Stop implements netjoin.Driver.
func (d *ScriptDriver) Stop() error {
	d.init()
	d.queue.close()
	return nil
}

var _ netjoin.Driver = (*ScriptDriver)(nil)
