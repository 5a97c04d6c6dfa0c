package apps

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcu-template/taskboot/internal/config"
	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/station"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var homeAddr = netip.MustParseAddr("192.168.4.2")

// recordingPublisher keeps every published payload.
type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[topic] = append(p.messages[topic], payload)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

func (p *recordingPublisher) decode(t *testing.T, topic string, i int, v any) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Greater(t, len(p.messages[topic]), i)
	require.NoError(t, json.Unmarshal(p.messages[topic][i], v))
}

// mockAdvertiser is a testify mock for discovery.Advertiser.
type mockAdvertiser struct {
	mock.Mock
}

func (m *mockAdvertiser) Advertise(ctx context.Context, info *discovery.ServiceInfo) error {
	return m.Called(ctx, info).Error(0)
}

func (m *mockAdvertiser) Update(info *discovery.ServiceInfo) error {
	return m.Called(info).Error(0)
}

func (m *mockAdvertiser) Stop(instance string) error {
	return m.Called(instance).Error(0)
}

func (m *mockAdvertiser) StopAll() {
	m.Called()
}

// testEnv builds an Env around a simulated station with one access point
// named "home".
func testEnv(t *testing.T, failFirst int) (*Env, *station.SimDriver, *recordingPublisher) {
	t.Helper()

	cfg := config.Default()
	cfg.Board.Name = "test-board"
	cfg.WiFi.SSID = "home"
	cfg.WiFi.Passphrase = "correct-horse"
	cfg.WiFi.Timeout = 5 * time.Second
	cfg.MDNS.Enabled = false

	ap := station.NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr)
	ap.FailFirst = failFirst
	drv := station.NewSimDriver(station.SimOptions{
		Logger:       quiet,
		Delay:        time.Millisecond,
		AccessPoints: []station.AccessPoint{ap},
	})
	t.Cleanup(func() { _ = drv.Stop() })

	coord := netjoin.NewCoordinator(drv, netjoin.Options{Logger: quiet})
	t.Cleanup(coord.Close)

	pub := &recordingPublisher{}
	env := &Env{
		Config:      cfg,
		Logger:      quiet,
		Joiner:      coord,
		Credentials: credentials.NewFileStore(t.TempDir() + "/wifi.json"),
		Publisher:   pub,
		Instance:    "taskboot-test",
		Timing:      Timing{Hello: 5 * time.Millisecond, Stats: 5 * time.Millisecond},
	}
	return env, drv, pub
}
