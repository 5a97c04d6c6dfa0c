package interactive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcu-template/taskboot/pkg/apps"
	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/station"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeBrowser struct {
	peers []*discovery.Peer
}

func (b fakeBrowser) Browse(ctx context.Context, _ string) (<-chan *discovery.Peer, error) {
	out := make(chan *discovery.Peer, len(b.peers))
	for _, p := range b.peers {
		out <- p
	}
	close(out)
	return out, nil
}

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer, *station.SimDriver) {
	t.Helper()

	sim := station.NewSimDriver(station.SimOptions{
		Logger: quiet,
		AccessPoints: []station.AccessPoint{
			station.NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", netip.MustParseAddr("10.0.0.9")),
		},
	})
	t.Cleanup(func() { _ = sim.Stop() })

	coord := netjoin.NewCoordinator(sim, netjoin.Options{Logger: quiet})
	t.Cleanup(coord.Close)

	var out bytes.Buffer
	c := newConsole(Options{
		Registry:    apps.NewRegistry(),
		ActiveApp:   apps.MultiThread,
		Joiner:      coord,
		Sim:         sim,
		Credentials: credentials.NewFileStore(filepath.Join(t.TempDir(), "wifi.json")),
		Browser: fakeBrowser{peers: []*discovery.Peer{{
			InstanceName: "taskboot-0a1b2c3d",
			Host:         "board.local.",
			Port:         8080,
			Info:         &discovery.ServiceInfo{Board: "esp32-devkit", App: apps.HTTPServer},
		}}},
		MaxRetries: 2,
	}, &out)
	return c, &out, sim
}

func run(t *testing.T, c *Console, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	quit := c.Execute(context.Background(), line)
	require.False(t, quit, "command %q should not quit", line)
	return out.String()
}

func TestConsoleApps(t *testing.T) {
	c, out, _ := newTestConsole(t)

	got := run(t, c, out, "apps")
	assert.Contains(t, got, "  0  wifi_basic")
	assert.Contains(t, got, "* 1  multi_thread")
	assert.Contains(t, got, "  2  http_server")
}

func TestConsoleJoin(t *testing.T) {
	c, out, sim := newTestConsole(t)

	assert.Contains(t, run(t, c, out, "status"), "No join attempt yet")
	assert.Contains(t, run(t, c, out, "join"), "No stored credentials")

	got := run(t, c, out, "join home correct-horse")
	assert.Contains(t, got, "CONNECTED: 10.0.0.9")

	got = run(t, c, out, "status")
	assert.Contains(t, got, "SSID:     home")
	assert.Contains(t, got, "Address:  10.0.0.9")

	got = run(t, c, out, "join home wrong-passphrase")
	assert.Contains(t, got, "FAILED after 2 retries")
	assert.Equal(t, 4, sim.ConnectCount())
}

func TestConsoleJoinStored(t *testing.T) {
	c, out, _ := newTestConsole(t)

	creds, err := credentials.New("home", "correct-horse", netjoin.AuthWPA2PSK)
	require.NoError(t, err)
	require.NoError(t, c.opts.Credentials.Save(creds))

	assert.Contains(t, run(t, c, out, "creds"), "SSID:      home")
	assert.Contains(t, run(t, c, out, "join"), "CONNECTED")
	assert.Contains(t, run(t, c, out, "creds clear"), "cleared")
	assert.Contains(t, run(t, c, out, "creds"), "No stored credentials")
}

func TestConsoleAccessPoints(t *testing.T) {
	c, out, _ := newTestConsole(t)

	assert.Equal(t, "  home\n", run(t, c, out, "ap"))
	assert.Contains(t, run(t, c, out, "ap add cafe open"), "cafe (open) on the air")
	assert.Equal(t, "  cafe\n  home\n", run(t, c, out, "ap"))

	assert.Contains(t, run(t, c, out, "join cafe"), "CONNECTED")

	assert.Contains(t, run(t, c, out, "ap rm cafe"), "removed")
	assert.Equal(t, "  home\n", run(t, c, out, "ap"))

	assert.Contains(t, run(t, c, out, "ap add x wpa9"), "Error")
	assert.Contains(t, run(t, c, out, "ap drop"), "Injected disconnect")
	assert.Contains(t, run(t, c, out, "ap drop x"), "Invalid reason code")
}

func TestConsolePeers(t *testing.T) {
	c, out, _ := newTestConsole(t)

	got := run(t, c, out, "peers 1")
	assert.Contains(t, got, "taskboot-0a1b2c3d")
	assert.Contains(t, got, "board.local.:8080")
	assert.Contains(t, got, "app=http_server")
	assert.Contains(t, got, "1 peer(s) found")

	assert.Contains(t, run(t, c, out, "peers -1"), "Invalid duration")
}

func TestConsoleMisc(t *testing.T) {
	c, out, _ := newTestConsole(t)

	tests := []struct {
		line string
		want string
	}{
		{"help", "taskboot Commands:"},
		{"heap", "Goroutines:"},
		{"bogus", "Unknown command: bogus"},
		{"", ""},
	}
	for _, tt := range tests {
		got := run(t, c, out, tt.line)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Execute(%q) = %q, want it to contain %q", tt.line, got, tt.want)
		}
	}

	out.Reset()
	assert.True(t, c.Execute(context.Background(), "quit"))
	assert.Contains(t, out.String(), "Exiting")
}

func TestConsoleWithoutDeps(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(Options{}, &out)

	for _, line := range []string{"apps", "status", "join x", "ap", "creds", "peers"} {
		out.Reset()
		c.Execute(context.Background(), line)
		assert.NotEmpty(t, out.String(), line)
	}
}
