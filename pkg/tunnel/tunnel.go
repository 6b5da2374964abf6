// Package tunnel contains the public tunnel API.
//
// A [Service] receives tunnel start requests, provisions the virtual
// interface and hands it to the engine. It plays the role of the host VPN
// service: when a request fails it stops itself, unless a consent prompt is
// pending, in which case the answer decides whether the last request is
// delivered again or the service stops.
package tunnel

import (
	"sync"
	"sync/atomic"

	"github.com/speedguard/sgvpn/internal/consent"
	"github.com/speedguard/sgvpn/internal/lifecycle"
	"github.com/speedguard/sgvpn/internal/metrics"
	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/platform"
	"github.com/speedguard/sgvpn/internal/runner"
	"github.com/speedguard/sgvpn/internal/workers"
	"github.com/speedguard/sgvpn/pkg/config"
)

// ServiceDisposition is exposed on the public API.
type ServiceDisposition = model.ServiceDisposition

// The possible dispositions.
const (
	Sticky    = model.Sticky
	NotSticky = model.NotSticky
)

// Option customizes a [Service].
type Option func(o *options)

type options struct {
	establisher model.Establisher
	runner      model.Runner
	prompter    consent.Prompter
	packetLog   bool
}

// WithEstablisher replaces the platform establisher.
func WithEstablisher(e model.Establisher) Option {
	return func(o *options) {
		o.establisher = e
	}
}

// WithRunner replaces the engine runner.
func WithRunner(r model.Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithPrompter replaces the consent prompter.
func WithPrompter(p consent.Prompter) Option {
	return func(o *options) {
		o.prompter = p
	}
}

// WithPacketLog logs the packets read from the interface instead of running
// the engine.
func WithPacketLog() Option {
	return func(o *options) {
		o.packetLog = true
	}
}

// Service provisions tunnels. The zero value is invalid; use [NewService].
type Service struct {
	logger  model.Logger
	gate    *consent.Gate
	manager *lifecycle.Manager
	metrics *metrics.Provisioning
	workers *workers.Manager

	mu          sync.Mutex
	lastRequest string
	hasRequest  bool

	provisioned atomic.Bool

	done     chan struct{}
	stopOnce sync.Once
}

var _ model.Stopper = &Service{}

// NewService creates a [Service]. It fails when the metrics cannot be
// registered or the engine cannot be found.
func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	settings := cfg.Settings()
	logger := cfg.Logger()

	prov, err := metrics.NewProvisioning(cfg.Registerer())
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:  logger,
		metrics: prov,
		workers: workers.NewManager(logger),
		done:    make(chan struct{}),
	}

	if o.prompter == nil {
		o.prompter = &consent.PrivilegePrompter{Logger: logger}
	}
	s.gate = consent.NewGate(logger, o.prompter, nil)

	if o.establisher == nil {
		o.establisher = platform.NewEstablisher(logger, settings.Platform())
	}
	if o.runner == nil {
		o.runner, err = s.newRunner(settings, o.packetLog)
		if err != nil {
			return nil, err
		}
	}

	s.manager = &lifecycle.Manager{
		Logger:           logger,
		Policy:           settings.Policy(),
		Gate:             s.gate,
		Establisher:      o.establisher,
		Runner:           o.runner,
		Stopper:          s,
		Observer:         prov,
		EstablishTimeout: settings.EstablishTimeout,
	}
	s.workers.StartWorker("consent", s.watchConsent)
	return s, nil
}

func (s *Service) newRunner(settings *config.Settings, packetLog bool) (model.Runner, error) {
	if packetLog {
		r := runner.NewPacketLog(s.logger, s.workers, 0)
		r.OnExit = s.engineExited
		return r, nil
	}
	r := runner.NewExecRunner(s.logger, s.workers, settings.Engine.Path, settings.Engine.Args...)
	r.OnExit = s.engineExited
	if err := r.Init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Start delivers a start request.
func (s *Service) Start(rawConfig string) ServiceDisposition {
	s.mu.Lock()
	s.lastRequest = rawConfig
	s.hasRequest = true
	s.mu.Unlock()
	disposition := s.manager.Start(rawConfig)
	if disposition == Sticky {
		s.provisioned.Store(true)
	}
	return disposition
}

// Provisioned returns true once a start request has handed an interface to
// the engine.
func (s *Service) Provisioned() bool {
	return s.provisioned.Load()
}

// StopSelf implements [model.Stopper].
//
// A failed start normally stops the service. The exception is a start that
// failed because consent is missing while the prompt is still pending: the
// service keeps running so the answer can be acted upon. A grant re-delivers
// the last start request, a denial stops the service.
func (s *Service) StopSelf() {
	if s.gate.State() == consent.Requested {
		s.logger.Info("tunnel: waiting for the consent answer")
		return
	}
	s.stop()
}

// Done returns a channel closed once the service has stopped.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Stop stops the service and waits for the engine and the background
// workers to exit.
func (s *Service) Stop() {
	s.stop()
	s.workers.WaitWorkersShutdown()
}

func (s *Service) stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("tunnel: stopping")
		s.workers.StartShutdown()
		close(s.done)
	})
}

// watchConsent acts on settled prompts: a grant delivers the last request
// again, a denial stops the service.
func (s *Service) watchConsent() {
	for {
		select {
		case <-s.workers.ShouldShutdown():
			return
		case state := <-s.gate.Events():
			switch state {
			case consent.Granted:
				s.redeliver()
			case consent.Denied:
				s.stop()
			}
		}
	}
}

func (s *Service) redeliver() {
	s.mu.Lock()
	raw, ok := s.lastRequest, s.hasRequest
	s.mu.Unlock()
	if !ok {
		return
	}
	s.logger.Info("tunnel: consent granted, delivering the last start request again")
	s.Start(raw)
}

func (s *Service) engineExited(name string, err error) {
	s.metrics.EngineExited()
	if err != nil {
		s.logger.Warnf("tunnel: engine for %s exited: %s", name, err)
	} else {
		s.logger.Infof("tunnel: engine for %s exited", name)
	}
	s.stop()
}
