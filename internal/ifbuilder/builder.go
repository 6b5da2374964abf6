// Package ifbuilder translates a tunnel configuration into the description
// of the virtual interface we ask the host for.
package ifbuilder

import (
	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/optional"
	"github.com/speedguard/sgvpn/internal/runtimex"
)

// DefaultSessionPrefix is prepended to the tunnel name to form the session label.
const DefaultSessionPrefix = "SpeedGuard_"

// Policy holds the host-dependent inputs of [Build]. None of them come from
// the tunnel configuration.
type Policy struct {
	// SessionPrefix is prepended to the tunnel name.
	SessionPrefix string

	// SelfIdentity is the identity of the process running the tunnel. It
	// is always disallowed so that the engine's own traffic never loops
	// back into the tunnel.
	SelfIdentity string

	// SupportsMetering tells whether the host can mark an interface as
	// unmetered.
	SupportsMetering bool
}

// Build returns the [model.InterfaceSpec] for cfg. It does not modify cfg.
//
// When both allowed and disallowed apps are present both lists are set and
// the host precedence rules decide which one wins.
func Build(cfg *model.TunnelConfig, policy Policy) *model.InterfaceSpec {
	runtimex.Assert(cfg != nil, "ifbuilder: nil config")
	runtimex.Assert(policy.SelfIdentity != "", "ifbuilder: empty self identity")

	disallowed := make([]string, 0, len(cfg.ExcludeApps)+1)
	disallowed = append(disallowed, policy.SelfIdentity)
	for _, app := range cfg.ExcludeApps {
		if app != policy.SelfIdentity {
			disallowed = append(disallowed, app)
		}
	}

	metered := optional.None[bool]()
	if policy.SupportsMetering {
		metered = optional.Some(false)
	}

	return &model.InterfaceSpec{
		Session:        policy.SessionPrefix + cfg.Name,
		DisallowedApps: disallowed,
		AllowedApps:    append([]string{}, cfg.IncludeApps...),
		Address:        cfg.Address,
		DNSServers:     append([]string{}, cfg.DNSServers...),
		Routes:         append([]model.Endpoint{}, cfg.PeerRoutes...),
		MTU:            cfg.MTU,
		Families:       []model.AddressFamily{model.FamilyIPv4, model.FamilyIPv6},
		Metered:        metered,
		Blocking:       true,
	}
}
