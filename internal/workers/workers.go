// Package workers tracks the background goroutines that outlive a start
// request, such as the one waiting for the tunnel engine to exit.
package workers

import (
	"errors"
	"sync"

	"github.com/speedguard/sgvpn/internal/model"
)

// ErrShutdown is the error returned by a worker that is shutting down.
var ErrShutdown = errors.New("worker is shutting down")

// Manager coordinates the lifecycles of the workers. The zero value is
// invalid; use [NewManager].
type Manager struct {
	logger model.Logger

	// shouldShutdown is closed to signal all workers to shut down.
	shouldShutdown chan any

	// shutdownOnce ensures we close shouldShutdown once.
	shutdownOnce sync.Once

	// wg tracks the running workers.
	wg *sync.WaitGroup
}

// NewManager creates a new manager.
func NewManager(logger model.Logger) *Manager {
	return &Manager{
		logger:         logger,
		shouldShutdown: make(chan any),
		shutdownOnce:   sync.Once{},
		wg:             &sync.WaitGroup{},
	}
}

// StartWorker runs fx in a background goroutine. The worker is considered
// done when fx returns.
func (m *Manager) StartWorker(name string, fx func()) {
	m.wg.Add(1)
	go func() {
		defer func() {
			m.logger.Debugf("%s: done", name)
			m.wg.Done()
		}()
		m.logger.Debugf("%s: started", name)
		fx()
	}()
}

// StartShutdown initiates the shutdown of all workers.
func (m *Manager) StartShutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shouldShutdown)
	})
}

// ShouldShutdown returns the channel closed when workers should shut down.
func (m *Manager) ShouldShutdown() <-chan any {
	return m.shouldShutdown
}

// WaitWorkersShutdown blocks until all workers have shut down.
func (m *Manager) WaitWorkersShutdown() {
	m.wg.Wait()
}
