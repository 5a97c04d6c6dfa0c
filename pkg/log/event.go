package log

import (
	"fmt"
	"strings"
	"time"
)

// Event is one entry of a join trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// AttemptID identifies the join attempt (UUID).
	AttemptID string `cbor:"2,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"3,keyasint"`

	// SSID of the network being joined.
	SSID string `cbor:"4,keyasint,omitempty"`

	// RetryCount is the attempt's retry count after the event was applied.
	RetryCount int `cbor:"5,keyasint"`

	// MaxRetries is the attempt's retry budget.
	MaxRetries int `cbor:"6,keyasint"`

	// Outcome is the attempt's outcome after the event was applied.
	Outcome string `cbor:"7,keyasint,omitempty"`

	// Address is the acquired address (KindAddressAcquired, KindOutcome).
	Address string `cbor:"8,keyasint,omitempty"`

	// Reason carries the disconnect reason or error text.
	Reason string `cbor:"9,keyasint,omitempty"`
}

// Kind classifies a trace event.
type Kind uint8

const (
	KindAttemptStarted   Kind = 0
	KindDriverStarted    Kind = 1
	KindConnectRequested Kind = 2
	KindDisconnected     Kind = 3
	KindAddressAcquired  Kind = 4
	KindOutcome          Kind = 5
	KindLateEvent        Kind = 6
	KindSetupError       Kind = 7
)

var kindNames = [...]string{
	KindAttemptStarted:   "ATTEMPT_STARTED",
	KindDriverStarted:    "DRIVER_STARTED",
	KindConnectRequested: "CONNECT_REQUESTED",
	KindDisconnected:     "DISCONNECTED",
	KindAddressAcquired:  "ADDRESS_ACQUIRED",
	KindOutcome:          "OUTCOME",
	KindLateEvent:        "LATE_EVENT",
	KindSetupError:       "SETUP_ERROR",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// ParseKind parses a kind name, case-insensitively. Dashes may stand in
// for underscores.
func ParseKind(s string) (Kind, error) {
	want := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	for i, name := range kindNames {
		if name == want {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// IsTerminal reports whether the event records the end of an attempt.
func (e Event) IsTerminal() bool {
	return e.Kind == KindOutcome || e.Kind == KindSetupError
}
