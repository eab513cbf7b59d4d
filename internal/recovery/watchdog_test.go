package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestWatchdog(maxRetries int) *Watchdog {
	w := New(Config{MaxRetries: maxRetries, InitialBackoffMs: 1, MaxBackoffMs: 20}, zerolog.Nop())
	w.jitter = func() time.Duration { return 0 }
	return w
}

func waitRetry(t *testing.T, w *Watchdog) Retry {
	t.Helper()
	select {
	case r := <-w.Due():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for retry")
	}
	return Retry{}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	w := New(Config{MaxRetries: 5, InitialBackoffMs: 1000, MaxBackoffMs: 5000}, zerolog.Nop())
	w.jitter = func() time.Duration { return 500 * time.Millisecond }

	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 1500 * time.Millisecond},
		{1, 2500 * time.Millisecond},
		{2, 4500 * time.Millisecond},
		{3, 5000 * time.Millisecond},
		{30, 5000 * time.Millisecond},
	}
	for _, c := range cases {
		if got := w.Backoff(c.n); got != c.want {
			t.Errorf("Backoff(%d) = %s, want %s", c.n, got, c.want)
		}
	}
}

func TestWatchdog_IdleIgnoresDisconnect(t *testing.T) {
	w := newTestWatchdog(3)
	w.OnDisconnected()
	if w.State() != StateIdle {
		t.Errorf("expected idle, got %s", w.State())
	}
}

func TestWatchdog_RetriesUntilFailed(t *testing.T) {
	w := newTestWatchdog(2)
	w.Start()
	w.OnDisconnected()
	if w.State() != StateRecovering {
		t.Fatalf("expected recovering, got %s", w.State())
	}

	for attempt := 1; attempt <= 2; attempt++ {
		r := waitRetry(t, w)
		if r.Attempt != attempt {
			t.Errorf("expected attempt %d, got %d", attempt, r.Attempt)
		}
		if !w.Begin(r) {
			t.Fatalf("attempt %d unexpectedly stale", attempt)
		}
		w.Result(errors.New("join failed"))
	}

	if w.State() != StateFailed {
		t.Errorf("expected failed after max retries, got %s", w.State())
	}
	if w.Retries() != 2 {
		t.Errorf("expected 2 attempts, got %d", w.Retries())
	}
}

func TestWatchdog_ConnectedResets(t *testing.T) {
	w := newTestWatchdog(3)
	w.Start()
	w.OnDisconnected()
	r := waitRetry(t, w)
	if !w.Begin(r) {
		t.Fatal("retry unexpectedly stale")
	}
	w.Result(nil)
	w.OnConnected()

	if w.State() != StateMonitoring || w.Retries() != 0 {
		t.Errorf("expected monitoring with 0 retries, got %s/%d", w.State(), w.Retries())
	}
}

func TestWatchdog_StaleRetryIgnored(t *testing.T) {
	w := New(Config{MaxRetries: 3, InitialBackoffMs: 1, MaxBackoffMs: 1}, zerolog.Nop())
	w.jitter = func() time.Duration { return 0 }
	w.Start()
	w.OnDisconnected()
	r := waitRetry(t, w)

	w.OnConnected()
	if w.Begin(r) {
		t.Error("expected retry superseded by reconnect to be stale")
	}
}

func TestWatchdog_DisconnectAfterFailedStartsOver(t *testing.T) {
	w := newTestWatchdog(1)
	w.Start()
	w.OnDisconnected()
	r := waitRetry(t, w)
	w.Begin(r)
	w.Result(errors.New("nope"))
	if w.State() != StateFailed {
		t.Fatalf("expected failed, got %s", w.State())
	}

	w.OnDisconnected()
	if w.State() != StateRecovering || w.Retries() != 0 {
		t.Errorf("expected fresh recovery, got %s/%d", w.State(), w.Retries())
	}
	w.Stop()
	if w.State() != StateIdle {
		t.Errorf("expected idle after stop, got %s", w.State())
	}
}
