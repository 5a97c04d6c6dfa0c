package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/mcu-template/taskboot/internal/config"
	"github.com/mcu-template/taskboot/pkg/apps"
	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	tracelog "github.com/mcu-template/taskboot/pkg/log"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/station"
	"github.com/mcu-template/taskboot/pkg/telemetry"
)

// appID scopes the machine ID hash used for instance names.
const appID = "taskboot"

// telemetryConnectTimeout bounds the initial broker connect at boot.
const telemetryConnectTimeout = 10 * time.Second

// board holds everything an app needs, plus what must be closed on exit.
type board struct {
	env     *apps.Env
	sim     *station.SimDriver
	coord   *netjoin.Coordinator
	store   *credentials.FileStore
	browser *discovery.MDNSBrowser
	closers []func() error
}

// resolveApp picks the app named by sel, either a table index or a name.
func resolveApp(registry *apps.Registry, sel config.AppConfig) (apps.App, int, error) {
	if i, ok := sel.Index(); ok {
		app, err := registry.Lookup(i)
		if err != nil {
			return apps.App{}, 0, err
		}
		return app, i, nil
	}
	return registry.LookupName(strings.TrimSpace(sel.Select))
}

// newLogger builds the operational logger.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// printBanner logs the boot banner.
func printBanner(logger *slog.Logger, cfg *config.Config, app apps.App, index int) {
	logger.Info("taskboot starting",
		"board", cfg.Board.Name,
		"firmware", cfg.Board.Firmware,
		"arch", runtime.GOARCH,
		"cores", cfg.Board.Cores)
	logger.Info(fmt.Sprintf("Running on %s (%d-core %s)", cfg.Board.Name, cfg.Board.Cores, runtime.GOARCH))
	logger.Info("selected app", "index", index, "name", app.Name, "description", app.Description)
}

// newBoard wires the station, coordinator, stores and publishers described
// by cfg. Optional services that fail to start are logged and replaced by
// inert implementations.
func newBoard(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*board, error) {
	b := &board{}

	aps, err := cfg.Sim.StationAccessPoints()
	if err != nil {
		return nil, err
	}
	b.sim = station.NewSimDriver(station.SimOptions{
		Logger:       logger.With("component", "station"),
		Delay:        cfg.Sim.Delay,
		AccessPoints: aps,
	})
	b.closers = append(b.closers, b.sim.Stop)

	var trace tracelog.Logger = tracelog.NewSlogAdapter(logger.With("component", "trace"))
	if cfg.Log.Trace != "" {
		fl, err := tracelog.NewFileLogger(cfg.Log.Trace)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		b.closers = append(b.closers, fl.Close)
		trace = tracelog.NewMultiLogger(fl, trace)
		logger.Info("join trace enabled", "path", cfg.Log.Trace)
	}

	b.coord = netjoin.NewCoordinator(b.sim, netjoin.Options{
		Logger: logger.With("component", "netjoin"),
		Trace:  trace,
	})
	b.closers = append(b.closers, func() error { b.coord.Close(); return nil })

	b.store = credentials.NewFileStore(cfg.Credentials.ResolvedPath())

	var advertiser discovery.Advertiser = discovery.NoopAdvertiser{}
	if cfg.MDNS.Enabled {
		adv, err := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: cfg.MDNS.Interface,
			TTL:       discovery.DefaultTTL,
			Logger:    logger.With("component", "mdns"),
		})
		if err != nil {
			logger.Warn("mdns disabled", "error", err)
		} else {
			advertiser = adv
			b.browser = discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.MDNS.Interface})
		}
	}

	var publisher telemetry.Publisher = telemetry.NoopPublisher{}
	if cfg.Telemetry.Broker != "" {
		pub, err := telemetry.NewMQTTPublisher(cfg.Telemetry.Broker, telemetry.MQTTOptions{
			Logger: logger.With("component", "telemetry"),
			Retain: cfg.Telemetry.Retain,
		})
		if err == nil {
			connectCtx, cancel := context.WithTimeout(ctx, telemetryConnectTimeout)
			err = pub.Connect(connectCtx)
			cancel()
			if err != nil {
				_ = pub.Close()
			}
		}
		if err != nil {
			logger.Warn("telemetry disabled", "broker", cfg.Telemetry.Broker, "error", err)
		} else {
			publisher = pub
			b.closers = append(b.closers, pub.Close)
		}
	}

	b.env = &apps.Env{
		Config:      cfg,
		Logger:      logger,
		Joiner:      b.coord,
		Credentials: b.store,
		Advertiser:  advertiser,
		Publisher:   publisher,
		Instance:    discovery.InstanceName(cfg.MDNS.Instance, cfg.MDNS.Prefix, appID),
	}
	b.closers = append(b.closers, func() error { advertiser.StopAll(); return nil })
	return b, nil
}

// Close releases everything in reverse order of creation.
func (b *board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
