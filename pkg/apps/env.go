package apps

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcu-template/taskboot/internal/config"
	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/tasks"
	"github.com/mcu-template/taskboot/pkg/telemetry"
)

// App names in table order.
const (
	WiFiBasic   = "wifi_basic"
	MultiThread = "multi_thread"
	HTTPServer  = "http_server"
)

// Default task periods.
const (
	HelloPeriod = 2 * time.Second
	StatsPeriod = 5 * time.Second
)

var (
	// ErrJoinFailed is returned when the network join ends without an
	// address.
	ErrJoinFailed = errors.New("network join failed")

	// ErrNoCredentials is returned when neither the store nor the config
	// names a network.
	ErrNoCredentials = errors.New("no network credentials")
)

// Joiner runs network join attempts. *netjoin.Coordinator implements it.
type Joiner interface {
	BeginJoin(ctx context.Context, cfg netjoin.JoinConfig) (netjoin.Outcome, error)
	Snapshot() netjoin.Snapshot
}

var _ Joiner = (*netjoin.Coordinator)(nil)

// Timing overrides task periods. Zero fields use the defaults.
type Timing struct {
	Hello time.Duration
	Stats time.Duration
}

// Env is what an app runs against.
type Env struct {
	Config      *config.Config
	Logger      *slog.Logger
	Joiner      Joiner
	Credentials credentials.Store
	Advertiser  discovery.Advertiser
	Publisher   telemetry.Publisher

	// Instance is the mDNS instance name.
	Instance string

	Timing  Timing
	Started time.Time
}

// App is a registry entry.
type App = tasks.App[*Env]

// Registry is the app table type.
type Registry = tasks.Registry[*Env]

// NewRegistry returns the app table in boot order.
func NewRegistry() *Registry {
	r, err := tasks.NewRegistry(
		App{Name: WiFiBasic, Description: "WiFi + mDNS + Stats", Run: RunWiFiBasic},
		App{Name: MultiThread, Description: "Multi-core threading demo", Run: RunMultiThread},
		App{Name: HTTPServer, Description: "Simple HTTP web server", Run: RunHTTPServer},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// withDefaults fills unset dependencies with inert implementations.
func (e *Env) withDefaults() *Env {
	out := *e
	if out.Config == nil {
		out.Config = config.Default()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Advertiser == nil {
		out.Advertiser = discovery.NoopAdvertiser{}
	}
	if out.Publisher == nil {
		out.Publisher = telemetry.NoopPublisher{}
	}
	if out.Timing.Hello <= 0 {
		out.Timing.Hello = HelloPeriod
	}
	if out.Timing.Stats <= 0 {
		out.Timing.Stats = StatsPeriod
	}
	if out.Started.IsZero() {
		out.Started = time.Now()
	}
	if out.Instance == "" {
		out.Instance = discovery.InstanceName(out.Config.MDNS.Instance, out.Config.MDNS.Prefix, "taskboot")
	}
	return &out
}

// statsCore is the core the stats task runs on: 1 on multi-core boards.
func (e *Env) statsCore() int {
	if e.Config.Board.Cores > 1 {
		return 1
	}
	return 0
}

func (e *Env) newGroup(ctx context.Context) *tasks.Group {
	return tasks.NewGroup(ctx, tasks.GroupOptions{
		Cores:  e.Config.Board.Cores,
		Logger: e.Logger,
	})
}
