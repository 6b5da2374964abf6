//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/speedguard/sgvpn/internal/model"
)

// Establish implements [model.Establisher]. When it fails after the device
// exists it returns the handle together with the error, and the caller must
// close it.
func (e *Establisher) Establish(ctx context.Context, spec *model.InterfaceSpec) (model.TransportHandle, error) {
	addr, err := spec.Address.HostPrefix()
	if err != nil {
		return nil, fmt.Errorf("%w: address %s: %w", ErrInvalidSpec, spec.Address, err)
	}
	routes := make([]netip.Prefix, 0, len(spec.Routes))
	for _, r := range spec.Routes {
		p, err := r.Prefix()
		if err != nil {
			return nil, fmt.Errorf("%w: route %s: %w", ErrInvalidSpec, r, err)
		}
		routes = append(routes, p)
	}
	disallowed, err := e.resolveApps(spec.DisallowedApps)
	if err != nil {
		return nil, err
	}
	allowed, err := e.resolveApps(spec.AllowedApps)
	if err != nil {
		return nil, err
	}
	if !spec.Metered.IsNone() {
		e.logger.Debug("platform: metering is not supported, ignoring")
	}

	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = e.settings.InterfaceName
	if e.settings.Owner != "" {
		o, err := e.lookupOwner(e.settings.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: owner %q: %w", ErrInvalidSpec, e.settings.Owner, err)
		}
		cfg.Permissions = devicePermissions(o, os.Geteuid(), os.Getegid())
	}
	iface, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("platform: open tun: %w", err)
	}
	file, ok := iface.ReadWriteCloser.(*os.File)
	if !ok {
		iface.Close()
		return nil, errors.New("platform: tun device is not a file")
	}
	h := &handle{logger: e.logger, file: file, name: iface.Name()}
	e.logger.Infof("platform: created %s for %s", h.name, spec.Session)

	if err := e.configure(ctx, h, spec, addr, routes, disallowed, allowed); err != nil {
		return h, fmt.Errorf("platform: %s: %w", h.name, err)
	}
	return h, nil
}

// devicePermissions returns nil when the device would be owned by our own
// user and group anyway. water always sets both owner and group, so the
// group must be a real one.
func devicePermissions(o owner, euid, egid int) *water.DevicePermissions {
	if int(o.uid) == euid && int(o.gid) == egid {
		return nil
	}
	return &water.DevicePermissions{Owner: uint(o.uid), Group: uint(o.gid)}
}

func (e *Establisher) configure(ctx context.Context, h *handle, spec *model.InterfaceSpec,
	addr netip.Prefix, routes []netip.Prefix, disallowed, allowed []uint32) error {
	link, err := netlink.LinkByName(h.name)
	if err != nil {
		return err
	}
	if err := netlink.LinkSetAlias(link, spec.Session); err != nil {
		e.logger.Warnf("platform: %s: cannot set alias: %s", h.name, err)
	}
	if err := netlink.LinkSetMTU(link, spec.MTU); err != nil {
		return fmt.Errorf("set mtu %d: %w", spec.MTU, err)
	}
	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: prefixToIPNet(addr)}); err != nil {
		return fmt.Errorf("add address %s: %w", addr, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("link up: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, route := range planRoutes(link.Attrs().Index, e.settings.Table, spec, routes) {
		route := route
		if err := netlink.RouteAdd(&route); err != nil {
			return fmt.Errorf("add route %s: %w", route.Dst, err)
		}
		h.routes = append(h.routes, route)
	}
	for _, rule := range planRules(e.settings, disallowed, allowed) {
		if err := netlink.RuleAdd(rule); err != nil {
			return fmt.Errorf("add rule %s: %w", rule, err)
		}
		h.rules = append(h.rules, rule)
	}

	if len(spec.DNSServers) > 0 {
		path, err := e.writeResolvConf(h.name, spec.Session, spec.DNSServers)
		if err != nil {
			return fmt.Errorf("write resolver file: %w", err)
		}
		h.resolvConf = path
	}

	// Fd already switches the descriptor to blocking mode.
	fd := int(h.file.Fd())
	if !spec.Blocking {
		if err := unix.SetNonblock(fd, true); err != nil {
			return fmt.Errorf("set nonblock: %w", err)
		}
	}
	return ctx.Err()
}

// handle is the [model.TransportHandle] of a TUN device.
type handle struct {
	logger model.Logger
	file   *os.File
	name   string

	routes     []netlink.Route
	rules      []*netlink.Rule
	resolvConf string

	closeOnce sync.Once
	closeErr  error
}

func (h *handle) Fd() uintptr {
	return h.file.Fd()
}

func (h *handle) Name() string {
	return h.name
}

// File returns the device file, for passing it to a child process.
func (h *handle) File() *os.File {
	return h.file
}

// Close removes what Establish installed and closes the device, which
// deletes the link. It is idempotent.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		var errs []error
		for _, rule := range h.rules {
			if err := netlink.RuleDel(rule); err != nil {
				errs = append(errs, fmt.Errorf("del rule %s: %w", rule, err))
			}
		}
		for i := range h.routes {
			if err := netlink.RouteDel(&h.routes[i]); err != nil && !errors.Is(err, unix.ESRCH) {
				errs = append(errs, fmt.Errorf("del route %s: %w", h.routes[i].Dst, err))
			}
		}
		if h.resolvConf != "" {
			if err := os.Remove(h.resolvConf); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		if err := h.file.Close(); err != nil {
			errs = append(errs, err)
		}
		h.closeErr = errors.Join(errs...)
		h.logger.Infof("platform: %s closed", h.name)
	})
	return h.closeErr
}
