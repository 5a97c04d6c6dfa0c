package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Topics published under the broker URL's prefix.
const (
	TopicStats = "stats"
	TopicJoin  = "join"
)

// ErrNotConnected is returned when publishing while the broker is
// unreachable.
var ErrNotConnected = errors.New("telemetry broker not connected")

// Publisher sends payloads to topics.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// StatsSample is one heap-stats reading.
type StatsSample struct {
	Board      string `json:"board"`
	Core       int    `json:"core"`
	FreeKB     uint64 `json:"free_kb"`
	InUseKB    uint64 `json:"in_use_kb"`
	Goroutines int    `json:"goroutines"`
}

// JoinResult is the terminal outcome of a join attempt.
type JoinResult struct {
	SSID    string `json:"ssid"`
	Outcome string `json:"outcome"`
	Address string `json:"address,omitempty"`
	Retries int    `json:"retries"`
}

// PublishJSON encodes v as JSON and publishes it.
func PublishJSON(p Publisher, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return p.Publish(topic, payload)
}

// NoopPublisher drops everything. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, []byte) error { return nil }
func (NoopPublisher) Close() error                 { return nil }

var _ Publisher = NoopPublisher{}
