// Package lifecycle drives a tunnel start request from the raw configuration
// to a running engine.
//
// The sequence is parse, build, consent, establish and handoff. It runs on the
// caller's goroutine and fails fast: nothing here waits for the consent prompt
// or retries. The only outcome visible to the caller is the
// [model.ServiceDisposition]; a failure also stops the hosting service.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/speedguard/sgvpn/internal/consent"
	"github.com/speedguard/sgvpn/internal/ifbuilder"
	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/runtimex"
	"github.com/speedguard/sgvpn/internal/tunconfig"
)

var (
	// ErrEstablish means the host did not give us a usable interface.
	ErrEstablish = errors.New("lifecycle: establish failed")

	// ErrConsent means we asked to establish before the user consented. It
	// always comes wrapped together with ErrEstablish.
	ErrConsent = errors.New("lifecycle: consent missing")
)

// Step names a stage of the start sequence.
type Step string

const (
	StepParse     = Step("parse")
	StepBuild     = Step("build")
	StepConsent   = Step("consent")
	StepEstablish = Step("establish")
	StepHandoff   = Step("handoff")
)

// Result describes the outcome of one start request.
type Result struct {
	Attempt     string
	Disposition model.ServiceDisposition

	// FailedStep is empty on success.
	FailedStep Step
	Err        error
	Elapsed    time.Duration
}

// Observer is told about every start request.
type Observer interface {
	Observe(result *Result)
}

// Manager runs start requests. Every field except Observer and
// EstablishTimeout is required.
type Manager struct {
	Logger      model.Logger
	Policy      ifbuilder.Policy
	Gate        *consent.Gate
	Establisher model.Establisher
	Runner      model.Runner
	Stopper     model.Stopper

	// Observer may be nil.
	Observer Observer

	// EstablishTimeout bounds the call to the establisher. Zero means no bound.
	EstablishTimeout time.Duration
}

// Start provisions the tunnel described by rawConfig and hands it to the
// runner. It returns [model.Sticky] once the runner owns the interface and
// [model.NotSticky], after stopping the service, on any failure.
func (m *Manager) Start(rawConfig string) model.ServiceDisposition {
	runtimex.Assert(m.Logger != nil, "lifecycle: nil Logger")
	runtimex.Assert(m.Gate != nil, "lifecycle: nil Gate")
	runtimex.Assert(m.Establisher != nil, "lifecycle: nil Establisher")
	runtimex.Assert(m.Runner != nil, "lifecycle: nil Runner")
	runtimex.Assert(m.Stopper != nil, "lifecycle: nil Stopper")

	started := time.Now()
	result := &Result{Attempt: uuid.NewString()}
	logger := withFields(m.Logger, log.Fields{"attempt": result.Attempt})
	logger.Debugf("tunnel data: %s", rawConfig)

	var (
		step      = StepParse
		handle    model.TransportHandle
		handedOff bool
	)
	err := runtimex.Catch(func() error {
		cfg, err := tunconfig.Parse(rawConfig)
		if err != nil {
			return err
		}
		logger = withFields(logger, log.Fields{"tunnel": cfg.Name})

		step = StepBuild
		spec := ifbuilder.Build(cfg, m.Policy)

		step = StepConsent
		if err := m.Gate.Ensure(); err != nil {
			return fmt.Errorf("%w: %w: %w", ErrEstablish, ErrConsent, err)
		}

		step = StepEstablish
		logger.Infof("starting vpn service %s", spec.Session)
		handle, err = m.establish(spec)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEstablish, err)
		}
		if !usable(handle) {
			return fmt.Errorf("%w: no usable transport handle", ErrEstablish)
		}

		// The runner owns the handle from here on, even if Start panics.
		step = StepHandoff
		handedOff = true
		m.Runner.Start(handle, rawConfig)
		logger.Infof("tunnel handed to the engine on %s", handle.Name())
		return nil
	})

	result.Elapsed = time.Since(started)
	if err == nil {
		result.Disposition = model.Sticky
		m.observe(result)
		return model.Sticky
	}

	if handle != nil && !handedOff {
		closeHandle(logger, handle)
	}
	logger.Errorf("failed to establish vpn service at step %s: %s", step, err)
	m.Stopper.StopSelf()

	result.Disposition = model.NotSticky
	result.FailedStep = step
	result.Err = err
	m.observe(result)
	return model.NotSticky
}

func (m *Manager) establish(spec *model.InterfaceSpec) (model.TransportHandle, error) {
	ctx := context.Background()
	if m.EstablishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.EstablishTimeout)
		defer cancel()
	}
	return m.Establisher.Establish(ctx, spec)
}

func (m *Manager) observe(result *Result) {
	if m.Observer != nil {
		m.Observer.Observe(result)
	}
}

// invalidFd is what a closed *os.File reports.
const invalidFd = ^uintptr(0)

func usable(handle model.TransportHandle) bool {
	if handle == nil {
		return false
	}
	return handle.Fd() != invalidFd
}

func closeHandle(logger model.Logger, handle model.TransportHandle) {
	err := runtimex.Catch(handle.Close)
	if err != nil {
		logger.Warnf("closing transport handle: %s", err)
		return
	}
	logger.Debug("transport handle closed")
}

// withFields attaches structured fields when the logger supports them, as
// the apex/log loggers do.
func withFields(logger model.Logger, fields log.Fields) model.Logger {
	if l, ok := logger.(interface{ WithFields(log.Fielder) *log.Entry }); ok {
		return l.WithFields(fields)
	}
	return logger
}
