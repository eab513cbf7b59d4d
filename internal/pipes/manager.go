// Package pipes owns the lifecycle of the SDK's raw-media named-pipe transport.
package pipes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zoom-kiosk/internal/conference"
)

const defaultAckTimeout = 5 * time.Second

var (
	// ErrAlreadyActive is returned by Start when the pipes are already serving.
	ErrAlreadyActive = errors.New("pipes already active")
	// ErrActive is returned by SetConfig while the pipes are serving.
	// Replacing pipe names mid-flight is not supported.
	ErrActive = errors.New("cannot replace pipe config while active")
)

// RawDataSource yields the SDK raw-data object, nil until the SDK is ready.
type RawDataSource interface {
	RawData() conference.RawData
}

// Manager performs idempotent start/stop of the raw-data pipe transport.
type Manager struct {
	source     RawDataSource
	ackTimeout time.Duration
	logger     zerolog.Logger

	// opMu serializes Start/Stop; mu guards the fields below.
	opMu   sync.Mutex
	mu     sync.RWMutex
	config Config
	active bool
}

// NewManager creates a pipe manager. A zero ackTimeout selects the default.
func NewManager(source RawDataSource, ackTimeout time.Duration, logger zerolog.Logger) *Manager {
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}
	return &Manager{
		source:     source,
		ackTimeout: ackTimeout,
		logger:     logger,
	}
}

// SetConfig validates and stores cfg. On error the previous config is kept.
func (m *Manager) SetConfig(cfg Config) error {
	if !cfg.Complete() {
		return fmt.Errorf("pipe config: all three pipe names are required: %w", conference.ErrInvalidParameter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	m.config = cfg.WithDefaults()
	return nil
}

// Config returns the stored config.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Active reports whether the pipes are serving.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Start hands the config to the SDK and starts the pipe server.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	active, cfg := m.active, m.config
	m.mu.RUnlock()

	if active {
		return ErrAlreadyActive
	}
	if !cfg.Complete() {
		return fmt.Errorf("start pipes: %w", conference.ErrInvalidParameter)
	}

	rd := m.source.RawData()
	if rd == nil {
		return fmt.Errorf("start pipes: %w", conference.ErrUninitialized)
	}

	err := m.call(ctx, func() error {
		if err := rd.SetPipeServeInitParam(cfg.params()); err != nil {
			return fmt.Errorf("set pipe params: %w", err)
		}
		if err := rd.StartPipeServe(); err != nil {
			return fmt.Errorf("start pipe serve: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.active = true
	m.mu.Unlock()

	m.logger.Info().
		Str("video", cfg.VideoPipeName).
		Str("share", cfg.SharePipeName).
		Str("audio", cfg.AudioPipeName).
		Int("max_read_length", cfg.MaxReadLength).
		Msg("pipes started")
	return nil
}

// Stop stops the pipe server. The manager is inactive afterwards whatever
// the SDK reports; the SDK's error is still returned for logging.
func (m *Manager) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.Active() {
		return nil
	}

	defer func() {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
	}()

	rd := m.source.RawData()
	if rd == nil {
		return fmt.Errorf("stop pipes: %w", conference.ErrUninitialized)
	}

	if err := m.call(ctx, rd.StopPipeServe); err != nil {
		return fmt.Errorf("stop pipe serve: %w", err)
	}

	m.logger.Info().Msg("pipes stopped")
	return nil
}

// call runs a synchronous SDK call, giving up after the ack timeout. A call
// that times out keeps running in the background; its result is discarded.
func (m *Manager) call(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, m.ackTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", conference.ErrTimeout, m.ackTimeout)
	}
}
