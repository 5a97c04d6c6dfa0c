package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	logger   *slog.Logger
	register registerFunc

	mu      sync.Mutex
	servers map[string]server // keyed by instance name
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interface != "" {
		if _, err := net.InterfaceByName(config.Interface); err != nil {
			return nil, fmt.Errorf("mdns interface %q: %w", config.Interface, err)
		}
	}
	return &MDNSAdvertiser{
		config:   config,
		logger:   logger,
		register: zeroconfRegister,
		servers:  make(map[string]server),
	}, nil
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising a service instance.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ServiceInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	txt := EncodeServiceTXT(info)
	if err := ValidateTXT(txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing for this instance if any
	if s, exists := a.servers[info.Instance]; exists {
		s.Shutdown()
		delete(a.servers, info.Instance)
	}

	service := info.Service
	if service == "" {
		service = ServiceTypeHTTP
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	s, err := a.register(info.Instance, service, Domain, port, TXTRecordsToStrings(txt), a.getInterfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", service, err)
	}

	a.servers[info.Instance] = s
	a.logger.Info("mdns service registered", "instance", info.Instance, "service", service, "port", port)
	return nil
}

// Update replaces the TXT records of an advertised instance.
func (a *MDNSAdvertiser) Update(info *ServiceInfo) error {
	txt := EncodeServiceTXT(info)
	if err := ValidateTXT(txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, exists := a.servers[info.Instance]
	if !exists {
		return ErrNotFound
	}
	s.SetText(TXTRecordsToStrings(txt))
	return nil
}

// Stop withdraws one instance.
func (a *MDNSAdvertiser) Stop(instance string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, exists := a.servers[instance]
	if !exists {
		return ErrNotFound
	}
	s.Shutdown()
	delete(a.servers, instance)
	return nil
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for instance, s := range a.servers {
		s.Shutdown()
		delete(a.servers, instance)
	}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// MDNSBrowser finds boards using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse searches for instances of serviceType. Empty means
// ServiceTypeHTTP. Each instance is sent once; addresses seen later on
// other interfaces are merged into the same Peer. The channel is closed
// when ctx is done.
func (b *MDNSBrowser) Browse(ctx context.Context, serviceType string) (<-chan *Peer, error) {
	if serviceType == "" {
		serviceType = ServiceTypeHTTP
	}

	out := make(chan *Peer)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		peers := newPeerSet()
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if p := peers.add(fromServiceEntry(entry)); p != nil {
					select {
					case out <- p:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				peers.remove(fromServiceEntry(entry))

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, serviceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// Find browses until the named instance answers or ctx is done.
func (b *MDNSBrowser) Find(ctx context.Context, serviceType, instance string) (*Peer, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	for p := range results {
		if p.InstanceName == instance {
			return p, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// browseEntry is the subset of a zeroconf answer the browser uses.
type browseEntry struct {
	instance  string
	host      string
	port      int
	text      []string
	addresses []string
}

func fromServiceEntry(entry *zeroconf.ServiceEntry) browseEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return browseEntry{
		instance:  entry.Instance,
		host:      entry.HostName,
		port:      entry.Port,
		text:      entry.Text,
		addresses: addrs,
	}
}

// peerSet tracks browsed peers by instance name.
type peerSet map[string]*Peer

func newPeerSet() peerSet {
	return make(peerSet)
}

// add records an answer. It returns a copy of the peer when the instance is
// new and nil when the answer only adds addresses or carries no valid board
// TXT. Later answers update the tracked peer, never the returned copy.
func (s peerSet) add(e browseEntry) *Peer {
	info, err := DecodeServiceTXT(StringsToTXTRecords(e.text))
	if err != nil {
		return nil
	}

	if existing, found := s[e.instance]; found {
		existing.Addresses = mergeAddresses(existing.Addresses, e.addresses)
		return nil
	}

	p := &Peer{
		InstanceName: e.instance,
		Host:         e.host,
		Port:         uint16(e.port),
		Addresses:    slices.Clone(e.addresses),
		Info:         info,
	}
	s[e.instance] = p
	return p.clone()
}

// remove drops the addresses of a goodbye answer and forgets the instance
// once none remain.
func (s peerSet) remove(e browseEntry) {
	existing, found := s[e.instance]
	if !found {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, e.addresses)
	if len(existing.Addresses) == 0 {
		delete(s, e.instance)
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)
