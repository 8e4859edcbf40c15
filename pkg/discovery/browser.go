package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures gateway browsing.
type BrowserConfig struct {
	// BrowseTimeout bounds FindGateway. Default: BrowseTimeout.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to browse on.
	// Empty string means all interfaces.
	Interface string
}

// Browser discovers local gateways over mDNS.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a gateway browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &Browser{config: config}
}

// Browse searches for gateways until the context is cancelled. The returned
// channel is closed when browsing stops. Each gateway is emitted once per
// instance name.
func (b *Browser) Browse(ctx context.Context) (<-chan *Gateway, error) {
	out := make(chan *Gateway)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]struct{})

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				gw := entryToGateway(entry)
				if gw == nil {
					continue
				}
				if _, found := seen[gw.InstanceName]; found {
					continue
				}
				seen[gw.InstanceName] = struct{}{}
				select {
				case out <- gw:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(seen, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeGateway, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// FindGateway returns the first gateway discovered within the browse
// timeout. ErrNoGatewayFound when none answers in time.
func (b *Browser) FindGateway(ctx context.Context) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	gateways, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case gw, ok := <-gateways:
		if !ok {
			return nil, ErrNoGatewayFound
		}
		return gw, nil
	case <-ctx.Done():
		return nil, ErrNoGatewayFound
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// ServiceEntry is a transport-neutral mDNS service entry. It decouples
// Gateway conversion from the zeroconf types for testability.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToGateway converts a ServiceEntry to a Gateway.
func (e *ServiceEntry) ToGateway() (*Gateway, error) {
	info, err := DecodeGatewayTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}

	endpoint := info.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s:%d", e.Host, e.Port)
	}

	return &Gateway{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    e.Addrs,
		GatewayID:    info.GatewayID,
		APIVersion:   info.APIVersion,
		Endpoint:     endpoint,
	}, nil
}

// entryToGateway converts a zeroconf entry to a Gateway. Returns nil for
// entries with unusable TXT records.
func entryToGateway(entry *zeroconf.ServiceEntry) *Gateway {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	e := ServiceEntry{
		Instance: entry.Instance,
		Service:  entry.Service,
		Domain:   entry.Domain,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}

	gw, err := e.ToGateway()
	if err != nil {
		return nil
	}
	return gw
}
