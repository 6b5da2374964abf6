// Package vpntest provides fakes for testing the provisioning packages.
package vpntest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/speedguard/sgvpn/internal/model"
)

// Handle is a [model.TransportHandle] that counts how many times it was closed.
type Handle struct {
	FD     uintptr
	IfName string
	closed atomic.Int32
}

var _ model.TransportHandle = &Handle{}

// NewHandle returns a handle with a fake fd.
func NewHandle() *Handle {
	return &Handle{FD: 42, IfName: "sgtun0"}
}

func (h *Handle) Fd() uintptr {
	return h.FD
}

func (h *Handle) Name() string {
	return h.IfName
}

func (h *Handle) Close() error {
	h.closed.Add(1)
	return nil
}

// CloseCount returns the number of Close calls.
func (h *Handle) CloseCount() int {
	return int(h.closed.Load())
}

// ErrRefused is returned by [Establisher] when configured to refuse.
var ErrRefused = errors.New("vpntest: establish refused")

// Establisher is a programmable [model.Establisher].
type Establisher struct {
	// Handle is returned by Establish. Leave nil to simulate a refusal.
	Handle model.TransportHandle

	// Err is returned alongside Handle.
	Err error

	// Panic, when set, makes Establish panic with this value.
	Panic any

	mu    sync.Mutex
	specs []*model.InterfaceSpec
}

var _ model.Establisher = &Establisher{}

func (e *Establisher) Establish(ctx context.Context, spec *model.InterfaceSpec) (model.TransportHandle, error) {
	e.mu.Lock()
	e.specs = append(e.specs, spec)
	e.mu.Unlock()
	if e.Panic != nil {
		panic(e.Panic)
	}
	return e.Handle, e.Err
}

// Specs returns the specs passed to Establish.
func (e *Establisher) Specs() []*model.InterfaceSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*model.InterfaceSpec{}, e.specs...)
}

// RunnerCall records one call to [Runner.Start].
type RunnerCall struct {
	Handle    model.TransportHandle
	RawConfig string
}

// Runner is a [model.Runner] that records its calls.
type Runner struct {
	// Panic, when set, makes Start panic with this value.
	Panic any

	mu    sync.Mutex
	calls []RunnerCall
}

var _ model.Runner = &Runner{}

func (r *Runner) Start(handle model.TransportHandle, rawConfig string) {
	r.mu.Lock()
	r.calls = append(r.calls, RunnerCall{Handle: handle, RawConfig: rawConfig})
	r.mu.Unlock()
	if r.Panic != nil {
		panic(r.Panic)
	}
}

// Calls returns the recorded calls.
func (r *Runner) Calls() []RunnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunnerCall{}, r.calls...)
}

// Stopper counts StopSelf calls.
type Stopper struct {
	stopped atomic.Int32
}

var _ model.Stopper = &Stopper{}

func (s *Stopper) StopSelf() {
	s.stopped.Add(1)
}

// Count returns the number of StopSelf calls.
func (s *Stopper) Count() int {
	return int(s.stopped.Load())
}

// Prompter is a consent prompter that records prompts and resolves them
// only when the test says so.
type Prompter struct {
	// IsPrepared is returned by Prepared.
	IsPrepared bool

	mu       sync.Mutex
	resolves []func(bool)
}

func (p *Prompter) Prepared() bool {
	return p.IsPrepared
}

func (p *Prompter) Prompt(resolve func(granted bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves = append(p.resolves, resolve)
}

// Prompts returns how many prompts were shown.
func (p *Prompter) Prompts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resolves)
}

// Answer resolves the most recent prompt.
func (p *Prompter) Answer(granted bool) {
	p.mu.Lock()
	resolve := p.resolves[len(p.resolves)-1]
	p.mu.Unlock()
	resolve(granted)
}
