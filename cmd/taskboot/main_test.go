package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcu-template/taskboot/internal/config"
	"github.com/mcu-template/taskboot/pkg/apps"
	"github.com/mcu-template/taskboot/pkg/discovery"
	tracelog "github.com/mcu-template/taskboot/pkg/log"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/tasks"
)

func TestResolveApp(t *testing.T) {
	registry := apps.NewRegistry()

	tests := []struct {
		sel       string
		wantName  string
		wantIndex int
		wantErr   error
	}{
		{sel: "0", wantName: apps.WiFiBasic, wantIndex: 0},
		{sel: "2", wantName: apps.HTTPServer, wantIndex: 2},
		{sel: " multi_thread ", wantName: apps.MultiThread, wantIndex: 1},
		{sel: "3", wantErr: tasks.ErrUnknownApp},
		{sel: "blink", wantErr: tasks.ErrUnknownApp},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			app, index, err := resolveApp(registry, config.AppConfig{Select: tt.sel})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("resolveApp(%q) error = %v, want %v", tt.sel, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveApp(%q) error = %v", tt.sel, err)
			}
			if app.Name != tt.wantName || index != tt.wantIndex {
				t.Errorf("resolveApp(%q) = %s/%d, want %s/%d", tt.sel, app.Name, index, tt.wantName, tt.wantIndex)
			}
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("board:\n  name: bench\napp:\n  select: wifi_basic\n"), 0o600))

	cfg, err := loadConfig(Flags{ConfigFile: path, App: "2", LogLevel: "debug", Trace: "/tmp/x.jlog"})
	require.NoError(t, err)
	assert.Equal(t, "bench", cfg.Board.Name)
	assert.Equal(t, "2", cfg.App.Select)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/x.jlog", cfg.Log.Trace)

	_, err = loadConfig(Flags{LogLevel: "loud"})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = loadConfig(Flags{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestRunList(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), Flags{List: true}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "0  wifi_basic"))
	assert.True(t, strings.HasPrefix(lines[1], "1  multi_thread"))
	assert.True(t, strings.HasPrefix(lines[2], "2  http_server"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	body = strings.ReplaceAll(body, "$DIR", dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunJoinFailure(t *testing.T) {
	path := writeConfig(t, `
app:
  select: wifi_basic
wifi:
  ssid: nowhere
  passphrase: correct-horse
  max_retries: 1
credentials:
  path: $DIR/wifi.json
mdns:
  enabled: false
log:
  trace: $DIR/join.jlog
sim:
  delay: 1ms
`)

	var out bytes.Buffer
	err := run(context.Background(), Flags{ConfigFile: path}, &out)
	require.ErrorIs(t, err, apps.ErrJoinFailed)
	assert.Contains(t, out.String(), "Running on esp32-devkit (2-core")
	assert.Contains(t, out.String(), "app stopped")

	r, err := tracelog.NewReader(filepath.Join(filepath.Dir(path), "join.jlog"))
	require.NoError(t, err)
	defer r.Close()

	var last tracelog.Event
	n := 0
	for {
		ev, err := r.Next()
		if err != nil {
			break
		}
		last = ev
		n++
	}
	assert.Greater(t, n, 0)
	assert.Equal(t, netjoin.OutcomeFailed.String(), last.Outcome)
}

func TestRunMultiThreadUntilCancelled(t *testing.T) {
	path := writeConfig(t, `
app:
  select: multi_thread
credentials:
  path: $DIR/wifi.json
mdns:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, Flags{ConfigFile: path}, &out))
	assert.Contains(t, out.String(), "multi-threading app starting")
	assert.Contains(t, out.String(), "shutting down")
}

func TestNewBoard(t *testing.T) {
	cfg := config.Default()
	cfg.MDNS.Enabled = false
	cfg.Credentials.Path = filepath.Join(t.TempDir(), "wifi.json")
	cfg.Sim.AccessPoints = []config.SimAccessPoint{{SSID: "home", Auth: "wpa2-psk", Passphrase: "correct-horse"}}

	b, err := newBoard(context.Background(), cfg, newLogger(&bytes.Buffer{}, cfg.Log.SlogLevel()))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"home"}, b.sim.AccessPoints())
	assert.Equal(t, cfg.Credentials.Path, b.store.Path())
	assert.Nil(t, b.browser)
	assert.IsType(t, discovery.NoopAdvertiser{}, b.env.Advertiser)
	assert.NotEmpty(t, b.env.Instance)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestNewBoardTelemetryUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.MDNS.Enabled = false
	cfg.Credentials.Path = filepath.Join(t.TempDir(), "wifi.json")
	cfg.Telemetry.Broker = "mqtt://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var logs bytes.Buffer
	b, err := newBoard(ctx, cfg, newLogger(&logs, cfg.Log.SlogLevel()))
	require.NoError(t, err)
	defer b.Close()

	assert.Contains(t, logs.String(), "telemetry disabled")
}
