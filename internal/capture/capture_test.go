package capture

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLine_Valid(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev, err := ParseLine([]byte(`{"type":"click","x":120,"y":-40,"button":"right"}`), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.X != 120 || ev.Y != -40 || ev.Button != ButtonRight || ev.Kind != KindClick {
		t.Errorf("unexpected event: %+v", ev)
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, ev.Timestamp)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	lines := []string{
		``,
		`not json`,
		`{"type":"move","x":1,"y":2,"button":"left"}`,
		`{"type":"click","y":2,"button":"left"}`,
		`{"type":"click","x":1,"y":2,"button":"side"}`,
	}
	for _, line := range lines {
		if _, err := ParseLine([]byte(line), time.Now()); !errors.Is(err, ErrMalformedLine) {
			t.Errorf("line %q: expected ErrMalformedLine, got %v", line, err)
		}
	}
}

func TestMarshalLine_RoundTrip(t *testing.T) {
	line, err := MarshalLine(5, 6, ButtonMiddle)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(line, []byte("\n")) || bytes.Count(line, []byte("\n")) != 1 {
		t.Fatalf("expected exactly one trailing newline, got %q", line)
	}
	ev, err := ParseLine(bytes.TrimSpace(line), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if ev.X != 5 || ev.Y != 6 || ev.Button != ButtonMiddle {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestEdgeDetector_HeldButtonFiresOnce(t *testing.T) {
	var d EdgeDetector
	levels := []bool{false, false, true, true, false, true}
	var fired []int
	for i, down := range levels {
		if pressed := d.Step(ButtonState{Left: down}); len(pressed) > 0 {
			if len(pressed) != 1 || pressed[0] != ButtonLeft {
				t.Fatalf("tick %d: unexpected buttons %v", i, pressed)
			}
			fired = append(fired, i)
		}
	}
	if len(fired) != 2 || fired[0] != 2 || fired[1] != 5 {
		t.Errorf("expected edges at ticks [2 5], got %v", fired)
	}
}

func TestEdgeDetector_SimultaneousButtons(t *testing.T) {
	var d EdgeDetector
	pressed := d.Step(ButtonState{Left: true, Right: true, Middle: true})
	if len(pressed) != 3 {
		t.Fatalf("expected 3 edges, got %v", pressed)
	}
	for i, b := range Buttons {
		if pressed[i] != b {
			t.Errorf("edge %d: expected %s, got %s", i, b, pressed[i])
		}
	}
	if again := d.Step(ButtonState{Left: true, Right: true, Middle: true}); len(again) != 0 {
		t.Errorf("expected no edges while held, got %v", again)
	}
}

type scriptedSampler struct {
	samples []Sample
	pos     int
}

func (s *scriptedSampler) Sample() (Sample, error) {
	if s.pos >= len(s.samples) {
		return Sample{}, nil
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, nil
}

func runPoller(t *testing.T, sampler Sampler, ticks int) string {
	t.Helper()
	p := NewPoller(sampler, 0, zerolog.Nop())

	var out bytes.Buffer
	tickCh := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.run(ctx, tickCh, &out) }()

	for i := 0; i < ticks; i++ {
		tickCh <- time.Now()
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("poller returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	return out.String()
}

func TestPoller_EmitsOneRecordPerPress(t *testing.T) {
	levels := []bool{false, false, true, true, false, true}
	samples := make([]Sample, len(levels))
	for i, down := range levels {
		samples[i] = Sample{X: i * 10, Y: i, Buttons: ButtonState{Left: down}}
	}

	out := runPoller(t, &scriptedSampler{samples: samples}, len(samples))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d: %q", len(lines), out)
	}

	first, err := ParseLine([]byte(lines[0]), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if first.X != 20 || first.Y != 2 || first.Button != ButtonLeft {
		t.Errorf("unexpected first record: %+v", first)
	}
	second, err := ParseLine([]byte(lines[1]), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if second.X != 50 {
		t.Errorf("expected second record at x=50, got %+v", second)
	}
}

func TestPoller_UnavailableIsSilent(t *testing.T) {
	out := runPoller(t, unavailableSampler{}, 20)
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestNewSampler_AlwaysUsable(t *testing.T) {
	s, err := NewSampler()
	if s == nil {
		t.Fatal("expected a sampler even when polling is unavailable")
	}
	if err != nil && !errors.Is(err, ErrTransportUnavailable) {
		t.Errorf("expected ErrTransportUnavailable, got %v", err)
	}
}
