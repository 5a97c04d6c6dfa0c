package apps

import (
	"context"
	"fmt"

	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/telemetry"
)

// loadCredentials prefers the store and falls back to the config file.
// fromConfig reports the fallback.
func loadCredentials(env *Env) (creds *credentials.Credentials, fromConfig bool, err error) {
	if env.Credentials != nil {
		stored, err := env.Credentials.Load()
		switch {
		case err != nil:
			env.Logger.Warn("stored credentials unreadable, using config", "error", err)
		case stored != nil:
			return stored, false, nil
		}
	}

	w := env.Config.WiFi
	if w.SSID == "" {
		return nil, false, ErrNoCredentials
	}
	mode, err := w.AuthMode()
	if err != nil {
		return nil, false, err
	}
	creds, err = credentials.New(w.SSID, w.Passphrase, mode)
	if err != nil {
		return nil, false, err
	}
	return creds, true, nil
}

// joinNetwork joins the configured network and returns the final snapshot.
// Credentials taken from the config are saved once they have worked.
func joinNetwork(ctx context.Context, env *Env) (netjoin.Snapshot, error) {
	if env.Joiner == nil {
		return netjoin.Snapshot{}, fmt.Errorf("%w: no station driver", ErrJoinFailed)
	}

	creds, fromConfig, err := loadCredentials(env)
	if err != nil {
		return netjoin.Snapshot{}, err
	}

	cfg := creds.JoinConfig(env.Config.WiFi.MaxRetries)
	cfg.Timeout = env.Config.WiFi.Timeout

	env.Logger.Info("connecting", "ssid", cfg.SSID, "maxRetries", cfg.MaxRetries)
	outcome, err := env.Joiner.BeginJoin(ctx, cfg)
	snap := env.Joiner.Snapshot()
	if err != nil {
		return snap, fmt.Errorf("join %s: %w", cfg.SSID, err)
	}

	result := telemetry.JoinResult{
		SSID:    cfg.SSID,
		Outcome: outcome.String(),
		Retries: snap.RetryCount,
	}
	if snap.Address.IsValid() {
		result.Address = snap.Address.String()
	}
	if err := telemetry.PublishJSON(env.Publisher, telemetry.TopicJoin, result); err != nil {
		env.Logger.Debug("join result not published", "error", err)
	}

	if outcome != netjoin.OutcomeConnected {
		env.Logger.Error("failed to connect", "ssid", cfg.SSID, "outcome", outcome, "retries", snap.RetryCount)
		return snap, fmt.Errorf("%w: %s %s after %d retries", ErrJoinFailed, cfg.SSID, outcome, snap.RetryCount)
	}
	env.Logger.Info("connected", "ssid", cfg.SSID, "address", snap.Address)

	if fromConfig && env.Credentials != nil {
		if err := env.Credentials.Save(creds); err != nil {
			env.Logger.Warn("credentials not saved", "error", err)
		}
	}
	return snap, nil
}

// advertise announces the board over mDNS when enabled.
func advertise(ctx context.Context, env *Env, app string, port int, snap netjoin.Snapshot) {
	if !env.Config.MDNS.Enabled {
		return
	}
	info := &discovery.ServiceInfo{
		Instance: env.Instance,
		Service:  env.Config.MDNS.Service,
		Port:     uint16(port),
		Board:    env.Config.Board.Name,
		App:      app,
		Firmware: env.Config.Board.Firmware,
		Cores:    env.Config.Board.Cores,
	}
	if snap.Address.IsValid() {
		info.Address = snap.Address.String()
	}
	if err := env.Advertiser.Advertise(ctx, info); err != nil {
		env.Logger.Warn("mdns advertise failed", "instance", info.Instance, "error", err)
		return
	}
	env.Logger.Info("mdns started", "instance", info.Instance, "port", port)
}
