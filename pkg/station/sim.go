package station

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/netjoin"
)

var (
	// ErrNotSubscribed is returned by Start before Subscribe was called.
	ErrNotSubscribed = errors.New("no event subscriber")

	// ErrNotStarted is returned by Connect before Start.
	ErrNotStarted = errors.New("driver not started")
)

// DefaultAddress is leased by access points that have no address set.
var DefaultAddress = netip.MustParseAddr("192.168.4.2")

// AccessPoint is a simulated network.
type AccessPoint struct {
	SSID     string
	AuthMode netjoin.AuthMode

	// PSK is the hex encoded pre-shared key. Ignored for open networks.
	PSK string

	// Address is leased on a successful join.
	Address netip.Addr

	// FailFirst makes the first n association attempts fail.
	FailFirst int
}

// NewAccessPoint builds an access point whose PSK is derived from
// passphrase.
func NewAccessPoint(ssid string, mode netjoin.AuthMode, passphrase string, addr netip.Addr) AccessPoint {
	ap := AccessPoint{SSID: ssid, AuthMode: mode, Address: addr}
	if mode != netjoin.AuthOpen {
		ap.PSK = credentials.DerivePSKHex(passphrase, ssid)
	}
	return ap
}

// SimOptions configures a SimDriver.
type SimOptions struct {
	// Logger is the optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Delay is applied before each event is delivered.
	Delay time.Duration

	AccessPoints []AccessPoint
}

// SimDriver is a simulated WiFi station.
type SimDriver struct {
	logger *slog.Logger
	delay  time.Duration
	queue  *eventQueue

	mu       sync.Mutex
	aps      map[string]AccessPoint
	failures map[string]int
	requests []netjoin.ConnectRequest
	started  bool
}

// NewSimDriver creates a simulated station.
func NewSimDriver(opts SimOptions) *SimDriver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &SimDriver{
		logger:   logger,
		delay:    opts.Delay,
		queue:    newEventQueue(),
		aps:      make(map[string]AccessPoint),
		failures: make(map[string]int),
	}
	for _, ap := range opts.AccessPoints {
		d.aps[ap.SSID] = ap
	}
	return d
}

// AddAccessPoint adds or replaces an access point.
func (d *SimDriver) AddAccessPoint(ap AccessPoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aps[ap.SSID] = ap
	delete(d.failures, ap.SSID)
}

// RemoveAccessPoint takes an access point off the air.
func (d *SimDriver) RemoveAccessPoint(ssid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.aps, ssid)
}

// AccessPoints returns the SSIDs currently on the air.
func (d *SimDriver) AccessPoints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ssids := make([]string, 0, len(d.aps))
	for ssid := range d.aps {
		ssids = append(ssids, ssid)
	}
	return ssids
}

// Subscribe implements netjoin.Driver.
func (d *SimDriver) Subscribe() (<-chan netjoin.Event, error) {
	return d.queue.subscribe(), nil
}

// Start implements netjoin.Driver.
func (d *SimDriver) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.queue.subscribed() {
		return ErrNotSubscribed
	}

	d.mu.Lock()
	d.started = true
	d.mu.Unlock()

	d.logger.Debug("station started")
	d.queue.push(netjoin.DriverStarted(), d.delay)
	return nil
}

// Connect implements netjoin.Driver.
func (d *SimDriver) Connect(req netjoin.ConnectRequest) error {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	ev := d.associate(req)
	d.mu.Unlock()

	d.logger.Debug("association", "ssid", req.SSID, "result", ev)
	d.queue.push(ev, d.delay)
	return nil
}

// associate decides the result of a connect request. Caller holds d.mu.
func (d *SimDriver) associate(req netjoin.ConnectRequest) netjoin.Event {
	ap, ok := d.aps[req.SSID]
	if !ok {
		return netjoin.Disconnected(netjoin.ReasonNoAPFound)
	}
	if !req.MinAuth.Accepts(ap.AuthMode) {
		return netjoin.Disconnected(netjoin.ReasonAuthModeRejected)
	}
	if ap.AuthMode != netjoin.AuthOpen {
		psk := credentials.DerivePSKHex(req.Passphrase, req.SSID)
		if subtle.ConstantTimeCompare([]byte(psk), []byte(ap.PSK)) != 1 {
			return netjoin.Disconnected(netjoin.ReasonAuthFailed)
		}
	}
	if d.failures[ap.SSID] < ap.FailFirst {
		d.failures[ap.SSID]++
		return netjoin.Disconnected(netjoin.ReasonAssocFailed)
	}

	addr := ap.Address
	if !addr.IsValid() {
		addr = DefaultAddress
	}
	return netjoin.AddressAcquired(addr)
}

// Inject delivers an arbitrary event, such as a beacon timeout after the
// station has joined.
func (d *SimDriver) Inject(ev netjoin.Event) {
	d.queue.push(ev, d.delay)
}

// Requests returns a copy of all connect requests received.
func (d *SimDriver) Requests() []netjoin.ConnectRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]netjoin.ConnectRequest(nil), d.requests...)
}

// ConnectCount returns the number of connect requests received.
func (d *SimDriver) ConnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// Stop implements netjoin.Driver. The event channel is closed.
func (d *SimDriver) Stop() error {
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()

	d.queue.close()
	d.logger.Debug("station stopped")
	return nil
}

var _ netjoin.Driver = (*SimDriver)(nil)
