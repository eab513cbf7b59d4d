package controller

import (
	"context"
	"errors"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/recorder"
)

type replayResult struct {
	played int
	err    error
}

// startReplay plays the saved recording in the background. At most one
// replay runs; none starts while recording.
func (c *Controller) startReplay(ctx context.Context) {
	if c.player == nil || !c.cfg.Kiosk.ReplayOnConnect || c.replayCancel != nil {
		return
	}
	if c.recorder.Status().IsRecording {
		return
	}

	rec, err := c.recorder.Load(ctx)
	if errors.Is(err, recorder.ErrNoRecording) {
		return
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("load recording for replay")
		return
	}
	if len(rec.Actions) == 0 {
		return
	}

	c.notifyStatus("Applying preferences...")

	playCtx, cancel := context.WithCancel(ctx)
	c.replayCancel = cancel
	go func() {
		n, err := c.player.Play(playCtx, rec)
		c.replayDone <- replayResult{played: n, err: err}
	}()
}

// cancelReplay stops a running replay. The replay still reports through
// replayDone.
func (c *Controller) cancelReplay() {
	if c.replayCancel != nil {
		c.replayCancel()
	}
}

func (c *Controller) finishReplay(res replayResult) {
	if c.replayCancel != nil {
		c.replayCancel()
		c.replayCancel = nil
	}

	switch {
	case res.err == nil:
		c.logger.Info().Int("clicks", res.played).Msg("recording replayed")
		c.notifyStatus("Preferences applied")
	case errors.Is(res.err, capture.ErrTransportUnavailable):
		if !c.replayUnavailable {
			c.logger.Warn().Err(res.err).Msg("input injection unavailable, recording not replayed")
			c.replayUnavailable = true
		}
	case errors.Is(res.err, context.Canceled):
		c.logger.Info().Int("clicks", res.played).Msg("replay cancelled")
	default:
		c.logger.Warn().Err(res.err).Int("clicks", res.played).Msg("replay failed")
	}
}

func (c *Controller) notifyStatus(text string) {
	c.notify(protocol.TypeStatusUpdate, protocol.StatusUpdatePayload{Status: text, State: string(c.sc.State)})
}
