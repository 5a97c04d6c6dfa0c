// Command taskboot boots one application from the app table on a
// simulated dual-core board.
//
// Usage:
//
//	taskboot [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-app string        App to boot, by table index or name (overrides config)
//	-log-level string  Log level: debug, info, warn, error (overrides config)
//	-trace string      Join trace file (overrides config)
//	-interactive       Start the interactive console
//	-list              List the app table and exit
//
// Examples:
//
//	# Boot the default app
//	taskboot
//
//	# Boot the HTTP server with a config file
//	taskboot -config /etc/taskboot/board.yaml -app http_server
//
//	# Poke the simulated radio while the WiFi app runs
//	taskboot -app 0 -interactive -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcu-template/taskboot/cmd/taskboot/interactive"
	"github.com/mcu-template/taskboot/internal/config"
	"github.com/mcu-template/taskboot/pkg/apps"
)

// Flags holds the command-line settings.
type Flags struct {
	ConfigFile  string
	App         string
	LogLevel    string
	Trace       string
	Interactive bool
	List        bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.App, "app", "", "App to boot, by table index or name (overrides config)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&flags.Trace, "trace", "", "Join trace file (overrides config)")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive console")
	flag.BoolVar(&flags.List, "list", false, "List the app table and exit")
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "taskboot: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	if f.App != "" {
		cfg.App.Select = f.App
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Trace != "" {
		cfg.Log.Trace = f.Trace
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func listApps(w io.Writer, registry *apps.Registry) {
	for i, app := range registry.List() {
		fmt.Fprintf(w, "%d  %-14s %s\n", i, app.Name, app.Description)
	}
}

func run(ctx context.Context, f Flags, stdout io.Writer) error {
	registry := apps.NewRegistry()
	if f.List {
		listApps(stdout, registry)
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	app, index, err := resolveApp(registry, cfg.App)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var console *interactive.Console
	logOut := stdout
	if f.Interactive {
		// The console is wired to the board below; its writer is needed first.
		console, err = interactive.New(interactive.Options{})
		if err != nil {
			return err
		}
		defer console.Close()
		logOut = console.Stdout()
	}

	logger := newLogger(logOut, cfg.Log.SlogLevel())
	printBanner(logger, cfg, app, index)

	b, err := newBoard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if console != nil {
		console.Wire(interactive.Options{
			Registry:    registry,
			ActiveApp:   app.Name,
			Joiner:      b.coord,
			Sim:         b.sim,
			Credentials: b.store,
			Browser:     browserOrNil(b),
			Service:     cfg.MDNS.Service,
			MaxRetries:  cfg.WiFi.MaxRetries,
		})
		go console.Run(ctx, cancel)
	}

	err = app.Run(ctx, b.env)
	if err != nil {
		logger.Error("app stopped", "app", app.Name, "error", err)
		if console != nil {
			// The console outlives a failed app.
			<-ctx.Done()
			return nil
		}
		return err
	}
	logger.Info("shutting down", "app", app.Name)
	return nil
}

// browserOrNil avoids handing the console a typed nil.
func browserOrNil(b *board) interactive.Browser {
	if b.browser == nil {
		return nil
	}
	return b.browser
}
