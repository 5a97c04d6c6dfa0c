package station

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcu-template/taskboot/pkg/netjoin"
)

func disconnects(n int) []Step {
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Reply(netjoin.Disconnected(netjoin.ReasonNoAPFound))
	}
	return steps
}

func join(t *testing.T, d netjoin.Driver, maxRetries int) (netjoin.Outcome, netjoin.Snapshot, error) {
	t.Helper()
	c := netjoin.NewCoordinator(d, netjoin.Options{Logger: quiet})
	t.Cleanup(c.Close)

	cfg := netjoin.DefaultJoinConfig("home", "correct-horse")
	cfg.MaxRetries = maxRetries
	cfg.Timeout = 5 * time.Second

	outcome, err := c.BeginJoin(context.Background(), cfg)
	return outcome, c.Snapshot(), err
}

func TestScriptDriverScenarios(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.42")

	t.Run("RetriesExhausted", func(t *testing.T) {
		d := NewScriptDriver(disconnects(6)...)
		defer d.Stop()

		outcome, snap, err := join(t, d, 5)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeFailed, outcome)
		assert.Equal(t, 5, snap.RetryCount)
		assert.Equal(t, 6, d.Connects())
	})

	t.Run("JoinsAfterTwoFailures", func(t *testing.T) {
		steps := append(disconnects(2), Reply(netjoin.AddressAcquired(addr)))
		d := NewScriptDriver(steps...)
		defer d.Stop()

		outcome, snap, err := join(t, d, 5)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeConnected, outcome)
		assert.Equal(t, addr, snap.Address)
		assert.Equal(t, 0, snap.RetryCount)
		assert.Equal(t, 3, d.Connects())
	})

	t.Run("ZeroRetries", func(t *testing.T) {
		d := NewScriptDriver(disconnects(1)...)
		defer d.Stop()

		outcome, _, err := join(t, d, 0)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeFailed, outcome)
		assert.Equal(t, 1, d.Connects())
	})

	t.Run("LateDisconnectIgnored", func(t *testing.T) {
		d := NewScriptDriver(Reply(
			netjoin.AddressAcquired(addr),
			netjoin.Disconnected(netjoin.ReasonBeaconTimeout),
		))
		defer d.Stop()

		outcome, _, err := join(t, d, 5)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeConnected, outcome)

		// The late disconnect must not trigger another connect.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, d.Connects())
	})

	t.Run("DelayedReply", func(t *testing.T) {
		d := NewScriptDriver(Step{
			Events: []netjoin.Event{netjoin.AddressAcquired(addr)},
			Delay:  20 * time.Millisecond,
		})
		defer d.Stop()

		start := time.Now()
		outcome, _, err := join(t, d, 5)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeConnected, outcome)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

func TestScriptDriverErrors(t *testing.T) {
	boom := errors.New("radio offline")

	t.Run("Subscribe", func(t *testing.T) {
		d := &ScriptDriver{SubscribeErr: boom}
		outcome, _, err := join(t, d, 5)
		assert.Equal(t, netjoin.OutcomeFailed, outcome)
		assert.ErrorIs(t, err, netjoin.ErrSetup)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Start", func(t *testing.T) {
		d := &ScriptDriver{StartErr: boom}
		defer d.Stop()
		outcome, _, err := join(t, d, 5)
		assert.Equal(t, netjoin.OutcomeFailed, outcome)
		assert.ErrorIs(t, err, netjoin.ErrSetup)
	})

	t.Run("ConnectCountsAsDisconnect", func(t *testing.T) {
		d := &ScriptDriver{ConnectErr: boom}
		defer d.Stop()
		outcome, snap, err := join(t, d, 2)
		require.NoError(t, err)
		assert.Equal(t, netjoin.OutcomeFailed, outcome)
		assert.Equal(t, 2, snap.RetryCount)
		assert.Equal(t, 3, d.Connects())
	})
}

func TestScriptDriverRecordsRequests(t *testing.T) {
	d := NewScriptDriver(Reply(netjoin.AddressAcquired(netip.MustParseAddr("10.0.0.1"))))
	defer d.Stop()

	_, _, err := join(t, d, 5)
	require.NoError(t, err)

	reqs := d.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "home", reqs[0].SSID)
	assert.Equal(t, "correct-horse", reqs[0].Passphrase)
	assert.Equal(t, netjoin.AuthWPA2PSK, reqs[0].MinAuth)
}
