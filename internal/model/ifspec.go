package model

import "github.com/speedguard/sgvpn/internal/optional"

// AddressFamily is an address family the virtual interface accepts.
type AddressFamily int

const (
	// FamilyIPv4 is AF_INET.
	FamilyIPv4 = AddressFamily(4)

	// FamilyIPv6 is AF_INET6.
	FamilyIPv6 = AddressFamily(6)
)

// String maps an [AddressFamily] to a string.
func (af AddressFamily) String() string {
	switch af {
	case FamilyIPv4:
		return "inet"
	case FamilyIPv6:
		return "inet6"
	default:
		return "unknown"
	}
}

// InterfaceSpec describes the virtual interface we ask the host to create.
// It is derived from a [TunnelConfig]; see the ifbuilder package.
type InterfaceSpec struct {
	// Session is the user visible label of the VPN session.
	Session string

	// DisallowedApps bypass the tunnel. The first entry is always our own identity.
	DisallowedApps []string

	// AllowedApps are carried by the tunnel. When not empty the host treats
	// this list as authoritative.
	AllowedApps []string

	// Address is the interface address.
	Address Endpoint

	// DNSServers pushed to the host resolver.
	DNSServers []string

	// Routes sent through the interface.
	Routes []Endpoint

	// MTU of the interface.
	MTU int

	// Families lists the allowed address families.
	Families []AddressFamily

	// Metered is None when the host cannot express metering.
	Metered optional.Value[bool]

	// Blocking requests fail-closed behavior while the interface is not active.
	Blocking bool
}

// AllowsFamily returns whether af is among the allowed families.
func (s *InterfaceSpec) AllowsFamily(af AddressFamily) bool {
	for _, f := range s.Families {
		if f == af {
			return true
		}
	}
	return false
}

// Disallows returns whether app is in the disallowed set.
func (s *InterfaceSpec) Disallows(app string) bool {
	for _, a := range s.DisallowedApps {
		if a == app {
			return true
		}
	}
	return false
}
