// Package runner contains the [model.Runner] implementations that take
// ownership of an established interface.
package runner

import (
	"errors"
	"os"

	"github.com/speedguard/sgvpn/internal/model"
)

// ErrNoFile is returned for handles that cannot be passed around as files.
var ErrNoFile = errors.New("runner: handle does not expose a file")

// ExitFunc is called once the runner gives a handle back, after closing it.
// err is nil on a clean exit.
type ExitFunc func(name string, err error)

// Func adapts a function to [model.Runner].
type Func func(handle model.TransportHandle, rawConfig string)

var _ model.Runner = Func(nil)

// Start implements [model.Runner].
func (f Func) Start(handle model.TransportHandle, rawConfig string) {
	f(handle, rawConfig)
}

// fileHandle is implemented by the handles of the platform package.
type fileHandle interface {
	File() *os.File
}

func fileOf(handle model.TransportHandle) (*os.File, error) {
	fh, ok := handle.(fileHandle)
	if !ok || fh.File() == nil {
		return nil, ErrNoFile
	}
	return fh.File(), nil
}

// closeAndExit closes the handle and notifies onExit, which may be nil.
func closeAndExit(logger model.Logger, handle model.TransportHandle, onExit ExitFunc, err error) {
	if cerr := handle.Close(); cerr != nil {
		logger.Warnf("runner: %s: close: %s", handle.Name(), cerr)
	}
	if onExit != nil {
		onExit(handle.Name(), err)
	}
}
