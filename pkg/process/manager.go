// Package process handles signal-driven shutdown of an invocation.
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cheribuild/cheribuild/pkg/logger"
)

// Manager cancels the build on SIGINT or SIGTERM. The first signal runs
// the registered shutdown handlers, which cancel the engine context;
// the current stage's process dies with the context and no cleanup of
// partially built targets is attempted. A second signal exits
// immediately.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	stop             chan struct{}
}

// NewManager creates a new process manager.
func NewManager(log logger.Logger) *Manager {
	return &Manager{logger: log}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run in
// reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start begins listening for signals until ctx ends or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case sig := <-sigChan:
			m.logger.Warn("Received signal, stopping after current stage",
				logger.WithField("signal", sig.String()))
			m.handleShutdown()
		}

		select {
		case <-ctx.Done():
		case <-m.stop:
		case sig := <-sigChan:
			m.logger.Error("Received second signal, exiting now",
				logger.WithField("signal", sig.String()))
			os.Exit(130)
		}
	}()
}

// Stop stops signal handling and waits for the watcher goroutine.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning reports whether the manager is listening for signals.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}
