package discovery

import (
	"errors"
	"slices"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeHTTP is the default service type boards advertise.
	ServiceTypeHTTP = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is advertised when ServiceInfo has no port.
	DefaultPort = 80

	// DefaultInstancePrefix prefixes generated instance names.
	DefaultInstancePrefix = "taskboot"
)

// TXT record key constants.
const (
	TXTKeyBoard    = "board" // Board name
	TXTKeyApp      = "app"   // Active application
	TXTKeyFirmware = "fw"    // Firmware version (optional)
	TXTKeyCores    = "cores" // Logical core count (optional)
	TXTKeyAddress  = "addr"  // Station address (optional)
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTKeyLen is the recommended DNS-SD key length.
	MaxTXTKeyLen = 9

	// MaxTXTStringLen is the length limit of one key=value string.
	MaxTXTStringLen = 255
)

const (
	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second

	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrTXTKeyTooLong       = errors.New("TXT key exceeds 9 characters")
	ErrTXTStringTooLong    = errors.New("TXT string exceeds 255 bytes")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// ServiceInfo describes the service a board advertises.
type ServiceInfo struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Service is the service type. Empty means ServiceTypeHTTP.
	Service string

	// Port is the advertised port. Zero means DefaultPort.
	Port uint16

	Board    string
	App      string
	Firmware string
	Cores    int

	// Address is the station address, if known.
	Address string
}

// Peer is a board found by browsing.
type Peer struct {
	InstanceName string
	Host         string
	Port         uint16

	// Addresses contains all IPv4 and IPv6 addresses seen for the instance.
	Addresses []string

	Info *ServiceInfo
}

func (p *Peer) clone() *Peer {
	c := *p
	c.Addresses = slices.Clone(p.Addresses)
	if p.Info != nil {
		info := *p.Info
		c.Info = &info
	}
	return &c
}
