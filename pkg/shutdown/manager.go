// Package shutdown coordinates the graceful shutdown of the server's components.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Manager runs registered closers in reverse registration order under one deadline.
type Manager struct {
	timeout time.Duration
	closers []closer
	log     zerolog.Logger
}

// NewManager creates a manager. A zero timeout means 30s.
func NewManager(timeout time.Duration, log zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		timeout: timeout,
		log:     log.With().Str("component", "shutdown").Logger(),
	}
}

// Add registers a cleanup function. Register in startup order.
func (m *Manager) Add(name string, fn func(ctx context.Context) error) {
	m.closers = append(m.closers, closer{name: name, fn: fn})
}

// Wait blocks until SIGINT, SIGTERM or ctx is done, then calls Shutdown.
func (m *Manager) Wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		m.log.Info().Err(ctx.Err()).Msg("context done, shutting down")
	}
	return m.Shutdown()
}

// Shutdown calls every closer, newest first, and joins their errors.
// A failing closer does not stop the ones after it.
func (m *Manager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		c := m.closers[i]
		start := time.Now()
		if err := c.fn(ctx); err != nil {
			m.log.Error().Err(err).Str("closer", c.name).Msg("shutdown error")
			errs = append(errs, err)
			continue
		}
		m.log.Debug().Str("closer", c.name).Dur("elapsed", time.Since(start)).Msg("component stopped")
	}
	m.log.Info().Int("errors", len(errs)).Msg("shutdown complete")
	return errors.Join(errs...)
}
