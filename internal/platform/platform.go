// Package platform creates the virtual interface on the host.
//
// On Linux the interface is a TUN device. Per-application filtering is
// expressed with ip rules matching the UID of the application, so an "app"
// is a user name or a numeric UID.
package platform

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/speedguard/sgvpn/internal/model"
)

var (
	// ErrUnsupported is returned on hosts where we cannot create interfaces.
	ErrUnsupported = errors.New("platform: unsupported")

	// ErrInvalidSpec means the interface spec cannot be applied as is.
	ErrInvalidSpec = errors.New("platform: invalid interface spec")
)

const (
	// DefaultInterfaceName lets the kernel pick the next free index.
	DefaultInterfaceName = "sgtun%d"

	// DefaultTable is the routing table holding the tunnel routes.
	DefaultTable = 7250

	// DefaultRulePriority is the priority of the first ip rule we install.
	DefaultRulePriority = 7200

	// DefaultStateDir is where per-interface state files are written.
	DefaultStateDir = "/run/sgvpn"
)

// Settings controls how interfaces are created.
type Settings struct {
	// InterfaceName may contain a %d verb.
	InterfaceName string

	// Table is the routing table used for tunnel routes.
	Table int

	// RulePriority is the priority of the first ip rule. We use two
	// consecutive priorities starting here.
	RulePriority int

	// StateDir receives the resolver file of each interface.
	StateDir string

	// Owner is the user owning the TUN device, usually our own identity.
	// Empty means the device keeps the kernel default.
	Owner string
}

// withDefaults returns a copy of s where zero fields get their default.
func (s Settings) withDefaults() Settings {
	if s.InterfaceName == "" {
		s.InterfaceName = DefaultInterfaceName
	}
	if s.Table == 0 {
		s.Table = DefaultTable
	}
	if s.RulePriority == 0 {
		s.RulePriority = DefaultRulePriority
	}
	if s.StateDir == "" {
		s.StateDir = DefaultStateDir
	}
	return s
}

// Establisher implements [model.Establisher] for the current host.
type Establisher struct {
	logger   model.Logger
	settings Settings

	// lookupUID maps an application to its UID.
	lookupUID func(app string) (uint32, error)

	// lookupOwner maps Settings.Owner to the owner of the device.
	lookupOwner func(name string) (owner, error)
}

var _ model.Establisher = &Establisher{}

// NewEstablisher creates an [Establisher].
func NewEstablisher(logger model.Logger, settings Settings) *Establisher {
	return &Establisher{
		logger:      logger,
		settings:    settings.withDefaults(),
		lookupUID:   lookupUID,
		lookupOwner: lookupOwner,
	}
}

// lookupUID accepts a numeric UID or a user name.
func lookupUID(app string) (uint32, error) {
	if uid, err := strconv.ParseUint(app, 10, 32); err == nil {
		return uint32(uid), nil
	}
	u, err := user.Lookup(app)
	if err != nil {
		return 0, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("user %s: non numeric uid %q", app, u.Uid)
	}
	return uint32(uid), nil
}

// owner is the user and group owning the TUN device.
type owner struct {
	uid uint32
	gid uint32
}

// lookupOwner accepts a user name or a numeric UID. The group is the primary
// group of the user; a UID without a passwd entry gets our effective group.
func lookupOwner(name string) (owner, error) {
	u, err := user.Lookup(name)
	if err != nil {
		uid, numErr := strconv.ParseUint(name, 10, 32)
		if numErr != nil {
			return owner{}, err
		}
		if u, err = user.LookupId(name); err != nil {
			return owner{uid: uint32(uid), gid: uint32(os.Getegid())}, nil
		}
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return owner{}, fmt.Errorf("user %s: non numeric uid %q", name, u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return owner{}, fmt.Errorf("user %s: non numeric gid %q", name, u.Gid)
	}
	return owner{uid: uint32(uid), gid: uint32(gid)}, nil
}

// resolveApps maps apps to UIDs, dropping duplicates.
func (e *Establisher) resolveApps(apps []string) ([]uint32, error) {
	seen := make(map[uint32]bool, len(apps))
	uids := make([]uint32, 0, len(apps))
	for _, app := range apps {
		uid, err := e.lookupUID(app)
		if err != nil {
			return nil, fmt.Errorf("%w: app %q: %w", ErrInvalidSpec, app, err)
		}
		if seen[uid] {
			continue
		}
		seen[uid] = true
		uids = append(uids, uid)
	}
	return uids, nil
}
