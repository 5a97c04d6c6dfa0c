package netjoin

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// DefaultMaxRetries is the retry budget used when none is configured.
const DefaultMaxRetries = 5

// Join errors.
var (
	ErrSetup          = errors.New("join setup failed")
	ErrAlreadyRunning = errors.New("join attempt already running")
	ErrInvalidConfig  = errors.New("invalid join configuration")
	ErrClosed         = errors.New("coordinator closed")
)

// Outcome is the result of a join attempt.
type Outcome uint8

const (
	// OutcomePending means the attempt has not finished.
	OutcomePending Outcome = iota

	// OutcomeConnected means an address was acquired.
	OutcomeConnected

	// OutcomeFailed means the retry budget ran out, or the driver went away.
	OutcomeFailed

	// OutcomeTimedOut means JoinConfig.Timeout elapsed first.
	OutcomeTimedOut
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeConnected:
		return "CONNECTED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can happen.
func (o Outcome) Terminal() bool {
	return o == OutcomeConnected || o == OutcomeFailed || o == OutcomeTimedOut
}

// EventKind identifies a connectivity event.
type EventKind uint8

const (
	// EventDriverStarted is sent once the radio is up in station mode.
	EventDriverStarted EventKind = iota + 1

	// EventDisconnected is sent when association fails or is lost.
	EventDisconnected

	// EventAddressAcquired is sent when the interface got an IP address.
	EventAddressAcquired
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventDriverStarted:
		return "DRIVER_STARTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventAddressAcquired:
		return "ADDRESS_ACQUIRED"
	default:
		return "UNKNOWN"
	}
}

// DisconnectReason says why the station lost or never reached association.
type DisconnectReason uint8

const (
	ReasonUnspecified DisconnectReason = iota
	ReasonNoAPFound
	ReasonAuthFailed
	ReasonAuthModeRejected
	ReasonAssocFailed
	ReasonBeaconTimeout
	ReasonConnectError
	ReasonDriverClosed
)

// String returns the reason name.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonUnspecified:
		return "UNSPECIFIED"
	case ReasonNoAPFound:
		return "NO_AP_FOUND"
	case ReasonAuthFailed:
		return "AUTH_FAILED"
	case ReasonAuthModeRejected:
		return "AUTH_MODE_REJECTED"
	case ReasonAssocFailed:
		return "ASSOC_FAILED"
	case ReasonBeaconTimeout:
		return "BEACON_TIMEOUT"
	case ReasonConnectError:
		return "CONNECT_ERROR"
	case ReasonDriverClosed:
		return "DRIVER_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Event is a connectivity event produced by a Driver. Each value is handled
// once and then discarded.
type Event struct {
	Kind EventKind

	// Address is set for EventAddressAcquired.
	Address netip.Addr

	// Reason is set for EventDisconnected.
	Reason DisconnectReason
}

// DriverStarted returns a DriverStarted event.
func DriverStarted() Event {
	return Event{Kind: EventDriverStarted}
}

// Disconnected returns a Disconnected event with the given reason.
func Disconnected(reason DisconnectReason) Event {
	return Event{Kind: EventDisconnected, Reason: reason}
}

// AddressAcquired returns an AddressAcquired event.
func AddressAcquired(addr netip.Addr) Event {
	return Event{Kind: EventAddressAcquired, Address: addr}
}

// String formats the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case EventDisconnected:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	case EventAddressAcquired:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Address)
	default:
		return e.Kind.String()
	}
}

// AuthMode is a wireless authentication mode. Values are ordered by
// strength so that a minimum accepted mode can be compared with >=.
type AuthMode uint8

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA3PSK
	AuthWPA2WPA3PSK
)

var authModeNames = map[AuthMode]string{
	AuthOpen:        "open",
	AuthWEP:         "wep",
	AuthWPAPSK:      "wpa-psk",
	AuthWPA2PSK:     "wpa2-psk",
	AuthWPAWPA2PSK:  "wpa-wpa2-psk",
	AuthWPA3PSK:     "wpa3-psk",
	AuthWPA2WPA3PSK: "wpa2-wpa3-psk",
}

// String returns the config spelling of the mode.
func (m AuthMode) String() string {
	if name, ok := authModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Accepts reports whether an access point using mode ap satisfies m as the
// minimum accepted mode.
func (m AuthMode) Accepts(ap AuthMode) bool {
	return ap >= m
}

// ParseAuthMode parses the config spelling of an AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range authModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown auth mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m AuthMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AuthMode) UnmarshalText(text []byte) error {
	mode, err := ParseAuthMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// JoinConfig configures one join attempt. It is not modified by the
// coordinator.
type JoinConfig struct {
	// SSID is the network identifier.
	SSID string

	// Passphrase is the network credential. Empty for open networks.
	Passphrase string

	// MaxRetries is the number of connect requests issued in response to
	// Disconnected events before the attempt fails. Zero fails on the first
	// disconnect.
	MaxRetries int

	// MinAuth is the weakest authentication mode the station accepts.
	MinAuth AuthMode

	// Timeout bounds the wait in BeginJoin. Zero waits until a terminal
	// outcome or cancellation.
	Timeout time.Duration
}

// DefaultJoinConfig returns a config with the default retry budget and
// WPA2-PSK as the minimum accepted mode.
func DefaultJoinConfig(ssid, passphrase string) JoinConfig {
	return JoinConfig{
		SSID:       ssid,
		Passphrase: passphrase,
		MaxRetries: DefaultMaxRetries,
		MinAuth:    AuthWPA2PSK,
	}
}

// Validate checks the config for obvious mistakes.
func (c JoinConfig) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("%w: empty SSID", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries %d < 0", ErrInvalidConfig, c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// ConnectRequest is what the coordinator hands the driver on every
// connect request.
type ConnectRequest struct {
	SSID       string
	Passphrase string
	MinAuth    AuthMode
}

// SetupError reports a driver or event channel initialisation failure. It
// aborts the attempt and matches ErrSetup with errors.Is.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("join setup: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSetup) hold for every SetupError.
func (e *SetupError) Is(target error) bool {
	return target == ErrSetup
}
