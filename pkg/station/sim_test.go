package station

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcu-template/taskboot/pkg/netjoin"
)

var (
	homeAddr = netip.MustParseAddr("10.0.0.7")
	quiet    = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func newSim(aps ...AccessPoint) *SimDriver {
	return NewSimDriver(SimOptions{Logger: quiet, AccessPoints: aps})
}

func recv(t *testing.T, ch <-chan netjoin.Event) netjoin.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return netjoin.Event{}
	}
}

func TestSimDriverAssociation(t *testing.T) {
	tests := []struct {
		name string
		ap   AccessPoint
		req  netjoin.ConnectRequest
		want netjoin.Event
	}{
		{
			name: "joins",
			ap:   NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr),
			req:  netjoin.ConnectRequest{SSID: "home", Passphrase: "correct-horse", MinAuth: netjoin.AuthWPA2PSK},
			want: netjoin.AddressAcquired(homeAddr),
		},
		{
			name: "unknown ssid",
			ap:   NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr),
			req:  netjoin.ConnectRequest{SSID: "office", Passphrase: "correct-horse"},
			want: netjoin.Disconnected(netjoin.ReasonNoAPFound),
		},
		{
			name: "wrong passphrase",
			ap:   NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr),
			req:  netjoin.ConnectRequest{SSID: "home", Passphrase: "battery-staple", MinAuth: netjoin.AuthWPA2PSK},
			want: netjoin.Disconnected(netjoin.ReasonAuthFailed),
		},
		{
			name: "weak auth rejected",
			ap:   NewAccessPoint("legacy", netjoin.AuthWPAPSK, "correct-horse", homeAddr),
			req:  netjoin.ConnectRequest{SSID: "legacy", Passphrase: "correct-horse", MinAuth: netjoin.AuthWPA2PSK},
			want: netjoin.Disconnected(netjoin.ReasonAuthModeRejected),
		},
		{
			name: "open network ignores passphrase",
			ap:   NewAccessPoint("cafe", netjoin.AuthOpen, "", netip.Addr{}),
			req:  netjoin.ConnectRequest{SSID: "cafe", Passphrase: "whatever1", MinAuth: netjoin.AuthOpen},
			want: netjoin.AddressAcquired(DefaultAddress),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newSim(tt.ap)
			defer d.Stop()

			events, err := d.Subscribe()
			require.NoError(t, err)
			require.NoError(t, d.Start(context.Background()))
			assert.Equal(t, netjoin.DriverStarted(), recv(t, events))

			require.NoError(t, d.Connect(tt.req))
			assert.Equal(t, tt.want, recv(t, events))
		})
	}
}

func TestSimDriverFailFirst(t *testing.T) {
	ap := NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr)
	ap.FailFirst = 2
	d := newSim(ap)
	defer d.Stop()

	events, err := d.Subscribe()
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	recv(t, events)

	req := netjoin.ConnectRequest{SSID: "home", Passphrase: "correct-horse"}
	for i := 0; i < 2; i++ {
		require.NoError(t, d.Connect(req))
		assert.Equal(t, netjoin.Disconnected(netjoin.ReasonAssocFailed), recv(t, events))
	}
	require.NoError(t, d.Connect(req))
	assert.Equal(t, netjoin.AddressAcquired(homeAddr), recv(t, events))
	assert.Equal(t, 3, d.ConnectCount())
}

func TestSimDriverLifecycle(t *testing.T) {
	t.Run("StartBeforeSubscribe", func(t *testing.T) {
		d := newSim()
		assert.ErrorIs(t, d.Start(context.Background()), ErrNotSubscribed)
	})

	t.Run("ConnectBeforeStart", func(t *testing.T) {
		d := newSim()
		_, err := d.Subscribe()
		require.NoError(t, err)
		defer d.Stop()

		assert.ErrorIs(t, d.Connect(netjoin.ConnectRequest{SSID: "x"}), ErrNotStarted)
		assert.Equal(t, 1, d.ConnectCount())
	})

	t.Run("StartCancelled", func(t *testing.T) {
		d := newSim()
		_, err := d.Subscribe()
		require.NoError(t, err)
		defer d.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, d.Start(ctx), context.Canceled)
	})

	t.Run("StopClosesChannel", func(t *testing.T) {
		d := newSim()
		events, err := d.Subscribe()
		require.NoError(t, err)

		require.NoError(t, d.Stop())
		_, ok := <-events
		assert.False(t, ok)

		// Stop is idempotent.
		require.NoError(t, d.Stop())
	})

	t.Run("ConnectDoesNotBlock", func(t *testing.T) {
		d := newSim()
		_, err := d.Subscribe()
		require.NoError(t, err)
		defer d.Stop()
		require.NoError(t, d.Start(context.Background()))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10; i++ {
				_ = d.Connect(netjoin.ConnectRequest{SSID: "none"})
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Connect blocked on an unread event channel")
		}
	})

	t.Run("ResubscribeDropsStaleEvents", func(t *testing.T) {
		d := newSim()
		defer d.Stop()

		_, err := d.Subscribe()
		require.NoError(t, err)
		require.NoError(t, d.Start(context.Background()))
		d.Inject(netjoin.Disconnected(netjoin.ReasonBeaconTimeout))

		fresh, err := d.Subscribe()
		require.NoError(t, err)
		require.NoError(t, d.Start(context.Background()))
		assert.Equal(t, netjoin.DriverStarted(), recv(t, fresh))
	})
}

func TestSimDriverAccessPoints(t *testing.T) {
	d := newSim(NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr))

	d.AddAccessPoint(NewAccessPoint("lab", netjoin.AuthOpen, "", netip.Addr{}))
	assert.ElementsMatch(t, []string{"home", "lab"}, d.AccessPoints())

	d.RemoveAccessPoint("home")
	assert.Equal(t, []string{"lab"}, d.AccessPoints())
}

func TestSimDriverWithCoordinator(t *testing.T) {
	tests := []struct {
		name         string
		failFirst    int
		passphrase   string
		maxRetries   int
		wantOutcome  netjoin.Outcome
		wantConnects int
	}{
		{"first try", 0, "correct-horse", 5, netjoin.OutcomeConnected, 1},
		{"flaky ap", 3, "correct-horse", 5, netjoin.OutcomeConnected, 4},
		{"flaky ap exhausts budget", 3, "correct-horse", 2, netjoin.OutcomeFailed, 3},
		{"wrong passphrase", 0, "battery-staple", 5, netjoin.OutcomeFailed, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap := NewAccessPoint("home", netjoin.AuthWPA2PSK, "correct-horse", homeAddr)
			ap.FailFirst = tt.failFirst
			d := newSim(ap)
			defer d.Stop()

			c := netjoin.NewCoordinator(d, netjoin.Options{Logger: quiet})
			defer c.Close()

			cfg := netjoin.DefaultJoinConfig("home", tt.passphrase)
			cfg.MaxRetries = tt.maxRetries
			cfg.Timeout = 5 * time.Second

			outcome, err := c.BeginJoin(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantConnects, d.ConnectCount())

			if outcome == netjoin.OutcomeConnected {
				assert.Equal(t, homeAddr, c.Snapshot().Address)
			}
		})
	}
}
