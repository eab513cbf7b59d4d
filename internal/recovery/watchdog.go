// Package recovery schedules reconnect attempts with exponential backoff
// after a meeting ends or fails.
package recovery

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the watchdog's phase.
type State string

const (
	StateIdle       State = "idle"
	StateMonitoring State = "monitoring"
	StateRecovering State = "recovering"
	StateFailed     State = "failed"
)

const maxJitter = time.Second

// Config holds the retry policy.
type Config struct {
	MaxRetries       int `mapstructure:"max_retries" json:"maxRetries"`
	InitialBackoffMs int `mapstructure:"initial_backoff_ms" json:"initialBackoffMs"`
	MaxBackoffMs     int `mapstructure:"max_backoff_ms" json:"maxBackoffMs"`
}

// DefaultConfig mirrors the shipped kiosk settings.
func DefaultConfig() Config {
	return Config{MaxRetries: 10, InitialBackoffMs: 1000, MaxBackoffMs: 60000}
}

// Retry is delivered on Due when a scheduled attempt is ready to run.
type Retry struct {
	Attempt int
	gen     uint64
}

// Watchdog tracks disconnections and tells its owner when to reconnect.
// It never reconnects by itself: the owner receives from Due, calls Begin,
// performs the reconnect and reports the outcome with Result.
type Watchdog struct {
	cfg    Config
	logger zerolog.Logger
	jitter func() time.Duration

	mu      sync.Mutex
	state   State
	retries int
	gen     uint64
	timer   *time.Timer
	due     chan Retry
}

// New creates an idle watchdog.
func New(cfg Config, logger zerolog.Logger) *Watchdog {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Watchdog{
		cfg:    cfg,
		logger: logger,
		jitter: func() time.Duration { return time.Duration(rand.Int64N(int64(maxJitter))) },
		state:  StateIdle,
		due:    make(chan Retry, 8),
	}
}

// Due delivers retries whose backoff has elapsed.
func (w *Watchdog) Due() <-chan Retry {
	return w.due
}

// State returns the current phase.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Retries returns the number of attempts made in the current recovery.
func (w *Watchdog) Retries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retries
}

// Start begins monitoring.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateMonitoring
	w.retries = 0
	w.logger.Info().Msg("watchdog monitoring")
}

// Stop cancels any pending retry and goes idle.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearTimerLocked()
	w.state = StateIdle
	w.logger.Info().Msg("watchdog stopped")
}

// OnDisconnected starts a fresh recovery. A disconnect during recovery or
// after giving up resets the attempt count.
func (w *Watchdog) OnDisconnected() {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateIdle:
		return
	case StateRecovering, StateFailed:
		w.clearTimerLocked()
		w.logger.Info().Str("from", string(w.state)).Msg("disconnect during recovery, starting over")
	}
	w.retries = 0
	w.state = StateRecovering
	w.scheduleLocked()
}

// OnConnected ends recovery.
func (w *Watchdog) OnConnected() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateIdle {
		return
	}
	if w.state == StateRecovering {
		w.logger.Info().Int("attempts", w.retries).Msg("connection restored")
	}
	w.clearTimerLocked()
	w.state = StateMonitoring
	w.retries = 0
}

// Begin claims r. It returns false for retries superseded by a later
// disconnect, connect or stop; those must be ignored.
func (w *Watchdog) Begin(r Retry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r.gen != w.gen || w.state != StateRecovering {
		return false
	}
	w.retries++
	w.logger.Info().Int("attempt", w.retries).Int("max", w.cfg.MaxRetries).Msg("attempting recovery")
	return true
}

// Result reports the outcome of the attempt claimed by Begin. Success
// waits for OnConnected; failure schedules the next attempt or gives up.
func (w *Watchdog) Result(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil || w.state != StateRecovering {
		return
	}
	w.logger.Warn().Err(err).Int("attempt", w.retries).Msg("recovery attempt failed")
	w.scheduleLocked()
}

// Backoff returns the delay before attempt n (zero-based), jitter included.
func (w *Watchdog) Backoff(n int) time.Duration {
	initial := time.Duration(w.cfg.InitialBackoffMs) * time.Millisecond
	limit := time.Duration(w.cfg.MaxBackoffMs) * time.Millisecond

	delay := initial
	for i := 0; i < n && delay < limit; i++ {
		delay *= 2
	}
	delay += w.jitter()
	if limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

func (w *Watchdog) scheduleLocked() {
	if w.retries >= w.cfg.MaxRetries {
		w.state = StateFailed
		w.logger.Error().Int("attempts", w.retries).Msg("max retries reached, giving up")
		return
	}

	w.gen++
	r := Retry{Attempt: w.retries + 1, gen: w.gen}
	delay := w.Backoff(w.retries)
	w.logger.Info().Int("attempt", r.Attempt).Dur("in", delay).Msg("scheduling recovery")

	w.timer = time.AfterFunc(delay, func() {
		select {
		case w.due <- r:
		default:
			w.logger.Warn().Int("attempt", r.Attempt).Msg("retry dropped, owner not receiving")
		}
	})
}

func (w *Watchdog) clearTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}
