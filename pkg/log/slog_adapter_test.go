package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestSlogAdapterLogsEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp:  time.Now(),
		AttemptID:  "attempt-42",
		Kind:       KindDisconnected,
		SSID:       "home-ap",
		RetryCount: 3,
		MaxRetries: 5,
		Reason:     "AUTH_FAILED",
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if entry["msg"] != "join" {
		t.Errorf("msg: got %v, want %q", entry["msg"], "join")
	}
	if entry["attempt_id"] != "attempt-42" {
		t.Errorf("attempt_id: got %v", entry["attempt_id"])
	}
	if entry["kind"] != "DISCONNECTED" {
		t.Errorf("kind: got %v, want DISCONNECTED", entry["kind"])
	}
	if entry["retry_count"] != float64(3) {
		t.Errorf("retry_count: got %v, want 3", entry["retry_count"])
	}
	if entry["reason"] != "AUTH_FAILED" {
		t.Errorf("reason: got %v", entry["reason"])
	}
	if _, ok := entry["address"]; ok {
		t.Error("address should be omitted when empty")
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{Kind: KindAttemptStarted})

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b countingLogger
	m := NewMultiLogger(&a, nil, &b, NoopLogger{})

	m.Log(Event{Kind: KindOutcome})
	m.Log(Event{Kind: KindOutcome})

	if a.n != 2 || b.n != 2 {
		t.Errorf("counts = %d, %d; want 2, 2", a.n, b.n)
	}
}

type countingLogger struct{ n int }

func (c *countingLogger) Log(Event) { c.n++ }
