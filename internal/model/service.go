package model

import "context"

// ServiceDisposition tells the service supervisor whether to restart us.
type ServiceDisposition int

const (
	// NotSticky means the service stopped itself and must not be restarted
	// until a new start request arrives.
	NotSticky = ServiceDisposition(iota)

	// Sticky means the tunnel is running and the service should be kept alive.
	Sticky
)

// String maps a [ServiceDisposition] to a string.
func (d ServiceDisposition) String() string {
	switch d {
	case Sticky:
		return "STICKY"
	case NotSticky:
		return "NOT_STICKY"
	default:
		return "INVALID"
	}
}

// TransportHandle is the open virtual interface.
type TransportHandle interface {
	// Fd returns the file descriptor the engine reads and writes packets on.
	Fd() uintptr

	// Name is the interface name, e.g. sgtun0.
	Name() string

	// Close releases the interface. Implementations must tolerate being
	// called more than once.
	Close() error
}

// Establisher asks the host to create a virtual interface matching spec.
// A nil handle means the host refused.
type Establisher interface {
	Establish(ctx context.Context, spec *InterfaceSpec) (TransportHandle, error)
}

// Runner is the native tunnel engine. Start must return promptly: the engine
// keeps running in the background and owns handle from the moment Start is
// called.
type Runner interface {
	Start(handle TransportHandle, rawConfig string)
}

// Stopper stops the hosting service.
type Stopper interface {
	StopSelf()
}
