package model

import (
	"fmt"
	"net/netip"
)

// DefaultMTU is the MTU used when the tunnel configuration does not set one.
const DefaultMTU = 1250

// Endpoint is an address with its prefix length, e.g. 10.0.0.1/24.
type Endpoint struct {
	// IP is the textual address, kept as written in the configuration.
	IP string

	// PrefixLength is the number of leading bits of the network mask.
	PrefixLength int
}

var _ fmt.Stringer = Endpoint{}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s/%d", e.IP, e.PrefixLength)
}

// Prefix converts the endpoint to a [netip.Prefix]. It fails when the
// address is not a literal IP or the prefix length is out of range.
func (e Endpoint) Prefix() (netip.Prefix, error) {
	addr, err := netip.ParseAddr(e.IP)
	if err != nil {
		return netip.Prefix{}, err
	}
	return addr.Prefix(e.PrefixLength)
}

// HostPrefix is like [Endpoint.Prefix] but keeps the host bits, which is
// what an interface address needs.
func (e Endpoint) HostPrefix() (netip.Prefix, error) {
	masked, err := e.Prefix()
	if err != nil {
		return netip.Prefix{}, err
	}
	addr, _ := netip.ParseAddr(e.IP)
	return netip.PrefixFrom(addr, masked.Bits()), nil
}

// TunnelConfig is the validated form of a tunnel start request. A new one is
// parsed for each start request and it is never reused.
type TunnelConfig struct {
	// Name is the tunnel name.
	Name string

	// IncludeApps are the applications whose traffic the tunnel carries.
	IncludeApps []string

	// ExcludeApps are the applications whose traffic bypasses the tunnel.
	ExcludeApps []string

	// Address is the address assigned to the virtual interface.
	Address Endpoint

	// MTU of the virtual interface.
	MTU int

	// DNSServers in configuration order.
	DNSServers []string

	// PeerRoutes flattens the routes of every peer, in encounter order.
	PeerRoutes []Endpoint
}
