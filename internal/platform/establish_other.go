//go:build !linux

package platform

import (
	"context"
	"runtime"

	"github.com/speedguard/sgvpn/internal/model"
)

// Establish implements [model.Establisher].
func (e *Establisher) Establish(ctx context.Context, spec *model.InterfaceSpec) (model.TransportHandle, error) {
	e.logger.Warnf("platform: cannot create interfaces on %s", runtime.GOOS)
	return nil, ErrUnsupported
}
