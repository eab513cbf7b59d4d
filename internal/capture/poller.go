package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the button polling period.
const DefaultInterval = 10 * time.Millisecond

// Poller samples the pointer on a fixed period and writes one record per
// press edge to its output.
type Poller struct {
	sampler  Sampler
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a poller. A non-positive interval uses DefaultInterval.
func NewPoller(sampler Sampler, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{sampler: sampler, interval: interval, logger: logger}
}

// Run polls until ctx is done. Records go to out only; nothing else is
// ever written there.
func (p *Poller) Run(ctx context.Context, out io.Writer) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	return p.run(ctx, ticker.C, out)
}

func (p *Poller) run(ctx context.Context, ticks <-chan time.Time, out io.Writer) error {
	w := bufio.NewWriter(out)
	var (
		edges       EdgeDetector
		unavailable bool
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
		}

		sample, err := p.sampler.Sample()
		if err != nil {
			if errors.Is(err, ErrTransportUnavailable) {
				if !unavailable {
					p.logger.Warn().Err(err).Msg("pointer polling unavailable, emitting nothing")
					unavailable = true
				}
				continue
			}
			p.logger.Debug().Err(err).Msg("sample failed")
			continue
		}

		pressed := edges.Step(sample.Buttons)
		if len(pressed) == 0 {
			continue
		}
		for _, b := range pressed {
			line, err := MarshalLine(sample.X, sample.Y, b)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
		}
		// A closed stdout means the parent is gone.
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
