//go:build linux

package platform

import (
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/speedguard/sgvpn/internal/model"
)

const (
	// routeMetric is the metric of the routes through the interface.
	routeMetric = 0

	// blackholeMetric is worse than routeMetric so the blackhole only
	// matches once the interface routes are gone.
	blackholeMetric = 4096
)

var allFamilies = []model.AddressFamily{model.FamilyIPv4, model.FamilyIPv6}

func familyOf(af model.AddressFamily) int {
	if af == model.FamilyIPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func familyOfPrefix(p netip.Prefix) model.AddressFamily {
	if p.Addr().Is4() {
		return model.FamilyIPv4
	}
	return model.FamilyIPv6
}

func defaultPrefix(af model.AddressFamily) netip.Prefix {
	if af == model.FamilyIPv6 {
		return netip.PrefixFrom(netip.IPv6Unspecified(), 0)
	}
	return netip.PrefixFrom(netip.IPv4Unspecified(), 0)
}

func prefixToIPNet(prefix netip.Prefix) *net.IPNet {
	return &net.IPNet{
		IP:   prefix.Addr().AsSlice(),
		Mask: net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen()),
	}
}

// planRoutes returns the routes to install in the tunnel table.
//
// With blocking set every route gets a blackhole twin, so traffic for the
// tunnel prefixes is dropped while the interface is down instead of leaking
// through the next rule. Families the spec does not allow are blackholed
// entirely.
func planRoutes(linkIndex, table int, spec *model.InterfaceSpec, routes []netip.Prefix) []netlink.Route {
	var out []netlink.Route
	for _, p := range routes {
		af := familyOfPrefix(p)
		if !spec.AllowsFamily(af) {
			continue
		}
		out = append(out, netlink.Route{
			LinkIndex: linkIndex,
			Dst:       prefixToIPNet(p),
			Table:     table,
			Family:    familyOf(af),
			Priority:  routeMetric,
		})
		if spec.Blocking {
			out = append(out, netlink.Route{
				Dst:      prefixToIPNet(p),
				Table:    table,
				Family:   familyOf(af),
				Type:     unix.RTN_BLACKHOLE,
				Priority: blackholeMetric,
			})
		}
	}
	for _, af := range allFamilies {
		if spec.AllowsFamily(af) {
			continue
		}
		out = append(out, netlink.Route{
			Dst:      prefixToIPNet(defaultPrefix(af)),
			Table:    table,
			Family:   familyOf(af),
			Type:     unix.RTN_BLACKHOLE,
			Priority: blackholeMetric,
		})
	}
	return out
}

// planRules returns the ip rules selecting which UIDs use the tunnel table.
//
// Disallowed UIDs go to the main table at the first priority. At the next
// priority either the allowed UIDs or, when there are none, everybody else
// goes to the tunnel table. A lookup that finds no route falls through to
// the following rules, so only the tunnel prefixes are affected.
func planRules(settings Settings, disallowed, allowed []uint32) []*netlink.Rule {
	var out []*netlink.Rule
	for _, af := range allFamilies {
		for _, uid := range disallowed {
			r := netlink.NewRule()
			r.Priority = settings.RulePriority
			r.Family = familyOf(af)
			r.UIDRange = netlink.NewRuleUIDRange(uid, uid)
			r.Table = unix.RT_TABLE_MAIN
			out = append(out, r)
		}
		if len(allowed) == 0 {
			r := netlink.NewRule()
			r.Priority = settings.RulePriority + 1
			r.Family = familyOf(af)
			r.Table = settings.Table
			out = append(out, r)
			continue
		}
		for _, uid := range allowed {
			r := netlink.NewRule()
			r.Priority = settings.RulePriority + 1
			r.Family = familyOf(af)
			r.UIDRange = netlink.NewRuleUIDRange(uid, uid)
			r.Table = settings.Table
			out = append(out, r)
		}
	}
	return out
}
