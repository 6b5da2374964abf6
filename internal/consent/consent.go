// Package consent implements the permission gate that must be passed before
// a virtual interface can be created.
//
// The gate never blocks: when consent is not settled it triggers a prompt
// and reports failure, and the answer arrives later as a separate event.
package consent

import (
	"errors"
	"sync"

	"github.com/speedguard/sgvpn/internal/model"
)

// ErrNotGranted is returned when consent is missing or was denied.
var ErrNotGranted = errors.New("consent: not granted")

// State is the state of the gate.
type State int

const (
	// Unrequested means no prompt has been shown yet.
	Unrequested = State(iota)

	// Requested means a prompt is pending.
	Requested

	// Granted means the user approved.
	Granted

	// Denied means the user refused the last prompt.
	Denied
)

// String maps a [State] to a string.
func (s State) String() string {
	switch s {
	case Unrequested:
		return "UNREQUESTED"
	case Requested:
		return "REQUESTED"
	case Granted:
		return "GRANTED"
	case Denied:
		return "DENIED"
	default:
		return "INVALID"
	}
}

// Prompter shows the out-of-band consent prompt.
type Prompter interface {
	// Prepared returns true when the host already holds consent.
	Prepared() bool

	// Prompt shows the prompt and returns immediately. resolve is called
	// later, from any goroutine, with the answer.
	Prompt(resolve func(granted bool))
}

// Gate tracks consent. The zero value is invalid; use [NewGate]. This struct
// is concurrency safe.
type Gate struct {
	logger    model.Logger
	prompter  Prompter
	onGranted func()

	mu     sync.Mutex
	state  State
	prompt uint64

	// events receives every state settled by a prompt.
	events chan State
}

// NewGate creates a gate. onGranted is the completion hook invoked once per
// approved prompt; it may be nil.
func NewGate(logger model.Logger, prompter Prompter, onGranted func()) *Gate {
	g := &Gate{
		logger:    logger,
		prompter:  prompter,
		onGranted: onGranted,
		state:     Unrequested,
		events:    make(chan State, 1),
	}
	if prompter.Prepared() {
		g.state = Granted
	}
	return g
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Events returns a channel where settled prompts are delivered. Events are
// dropped when nobody drains the channel.
func (g *Gate) Events() <-chan State {
	return g.events
}

// Ensure returns nil when consent is already granted. Otherwise it makes sure
// a prompt is pending and returns [ErrNotGranted] without waiting.
func (g *Gate) Ensure() error {
	g.mu.Lock()
	switch g.state {
	case Granted:
		g.mu.Unlock()
		return nil
	case Requested:
		g.mu.Unlock()
		g.logger.Debug("consent: prompt already pending")
		return ErrNotGranted
	}
	g.state = Requested
	g.prompt++
	id := g.prompt
	g.mu.Unlock()

	g.logger.Info("consent: requesting permission to create the interface")
	g.prompter.Prompt(func(granted bool) {
		g.settle(id, granted)
	})
	return ErrNotGranted
}

// Resolve delivers the answer to the pending prompt. Calls with no pending
// prompt are ignored.
func (g *Gate) Resolve(granted bool) {
	g.mu.Lock()
	id := g.prompt
	g.mu.Unlock()
	g.settle(id, granted)
}

func (g *Gate) settle(id uint64, granted bool) {
	g.mu.Lock()
	if g.state != Requested || id != g.prompt {
		g.mu.Unlock()
		g.logger.Debugf("consent: ignoring stale answer for prompt %d", id)
		return
	}
	if granted {
		g.state = Granted
	} else {
		g.state = Denied
	}
	state := g.state
	g.mu.Unlock()

	select {
	case g.events <- state:
	default:
	}

	if !granted {
		g.logger.Warn("consent: permission denied")
		return
	}
	g.logger.Info("consent: permission granted")
	if g.onGranted != nil {
		g.onGranted()
	}
}
