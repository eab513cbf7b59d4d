package controller

import (
	"context"
	"errors"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/config"
	"zoom-kiosk/internal/pipes"
	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/recorder"
)

// Status returns the most recent status text and connection state.
func (c *Controller) Status(ctx context.Context) (protocol.StatusUpdatePayload, error) {
	var st protocol.StatusUpdatePayload
	err := c.call(ctx, func(context.Context) {
		st = protocol.StatusUpdatePayload{Status: c.sc.StatusText, State: string(c.sc.State)}
	})
	return st, err
}

// Config returns the UI-facing config summary.
func (c *Controller) Config(ctx context.Context) (protocol.ConfigPayload, error) {
	var out protocol.ConfigPayload
	err := c.call(ctx, func(context.Context) {
		s := c.cfg.Summary()
		out = protocol.ConfigPayload{DisplayName: s.DisplayName, PMI: s.PMI, MonitorIndex: s.MonitorIndex}
	})
	return out, err
}

// Reconnect re-runs the connect path unless already connected.
func (c *Controller) Reconnect(ctx context.Context) (bool, error) {
	var (
		skipped bool
		rerr    error
	)
	err := c.call(ctx, func(loopCtx context.Context) {
		skipped, rerr = c.reconnect(loopCtx)
	})
	if err != nil {
		return false, err
	}
	return skipped, rerr
}

// StartRecording resets the recording and launches click capture. Capture
// failures degrade the recording instead of failing the call.
func (c *Controller) StartRecording(ctx context.Context) error {
	return c.call(ctx, func(context.Context) {
		// Replayed clicks must not end up in the new recording.
		c.cancelReplay()

		var captureErr error
		if c.capture != nil {
			captureErr = c.capture.Start()
			c.capture.Queue().Drain()
		}
		c.recorder.Start()
		if captureErr != nil {
			c.logger.Error().Err(captureErr).Msg("capture start failed")
			c.recorder.MarkDegraded()
		}

		c.notify(protocol.TypeRecordingStarted, protocol.RecordingStartedPayload{})
		c.publishRecordingStatus()
	})
}

// StopRecording ends the recording, saving or discarding it.
func (c *Controller) StopRecording(ctx context.Context, save bool) (recorder.StopResult, error) {
	var (
		res  recorder.StopResult
		serr error
	)
	err := c.call(ctx, func(loopCtx context.Context) {
		if c.capture != nil {
			c.drainClicks()
			if err := c.capture.Stop(); err != nil && !errors.Is(err, capture.ErrNotRunning) {
				c.logger.Warn().Err(err).Msg("capture stop failed")
			}
		}

		res, serr = c.recorder.Stop(loopCtx, save)
		if errors.Is(serr, recorder.ErrNotRecording) {
			return
		}
		if serr != nil {
			c.logger.Error().Err(serr).Msg("recording save failed")
		}
		c.notify(protocol.TypeRecordingStopped, protocol.RecordingStoppedPayload{Saved: res.Saved, ActionCount: res.ActionCount})
		c.publishRecordingStatus()
	})
	if err != nil {
		return res, err
	}
	return res, serr
}

// RecordClick appends a click reported by the UI.
func (c *Controller) RecordClick(ctx context.Context, evt capture.ClickEvent) error {
	return c.call(ctx, func(context.Context) {
		if c.recorder.RecordEvent(evt) {
			c.publishRecordingStatus()
		}
	})
}

// RecordingStatus returns the recorder snapshot.
func (c *Controller) RecordingStatus(ctx context.Context) (recorder.Status, error) {
	var st recorder.Status
	err := c.call(ctx, func(context.Context) {
		st = c.recorder.Status()
	})
	return st, err
}

// LoadRecording returns the saved recording.
func (c *Controller) LoadRecording(ctx context.Context) (*recorder.Recording, error) {
	return c.recorder.Load(ctx)
}

// DeleteRecording removes the saved recording.
func (c *Controller) DeleteRecording(ctx context.Context) error {
	return c.recorder.Delete(ctx)
}

// ApplyConfig swaps in a reloaded configuration. Pipe names are offered to
// the pipe manager, which refuses them while the pipes are serving.
func (c *Controller) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	var perr error
	err := c.call(ctx, func(context.Context) {
		if cfg.Pipes.Names.Complete() {
			perr = c.pipes.SetConfig(cfg.Pipes.Names)
			if errors.Is(perr, pipes.ErrActive) {
				c.logger.Warn().Msg("pipe names changed while active; keeping current pipes")
			}
		}
		c.sc.RawDataRequested = cfg.Pipes.RawData
		c.cfg = cfg

		s := cfg.Summary()
		c.notify(protocol.TypeConfig, protocol.ConfigPayload{DisplayName: s.DisplayName, PMI: s.PMI, MonitorIndex: s.MonitorIndex})
	})
	if err != nil {
		return err
	}
	return perr
}
