package discovery

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// Advertise registers the service, replacing an earlier registration of
	// the same instance.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Update replaces the TXT records of an advertised instance.
	Update(info *ServiceInfo) error

	// Stop withdraws one instance.
	Stop(instance string) error

	// StopAll withdraws all advertisements.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger is the optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// server is the part of *zeroconf.Server the advertiser drives.
type server interface {
	SetText(text []string)
	Shutdown()
}

// registerFunc registers a DNS-SD service instance.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	s, err := zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NoopAdvertiser discards advertisements. It is used when mDNS is disabled.
type NoopAdvertiser struct{}

func (NoopAdvertiser) Advertise(context.Context, *ServiceInfo) error { return nil }
func (NoopAdvertiser) Update(*ServiceInfo) error                     { return nil }
func (NoopAdvertiser) Stop(string) error                             { return nil }
func (NoopAdvertiser) StopAll()                                      {}

var _ Advertiser = NoopAdvertiser{}
