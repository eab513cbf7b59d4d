package controller

import (
	"context"
	"fmt"

	"zoom-kiosk/internal/conference"
	"zoom-kiosk/internal/session"
)

// connect runs Init (once), Auth and Join unless already connected. It
// reports true when the call was skipped.
func (c *Controller) connect(ctx context.Context) (bool, error) {
	if c.sc.State == session.StateConnected {
		c.logger.Debug().Msg("already connected, reconnect skipped")
		return true, nil
	}

	if !c.initialized {
		if err := c.client.Init(ctx); err != nil {
			return false, fmt.Errorf("init sdk: %w", err)
		}
		c.initialized = true
	}

	token, err := conference.GenerateJWT(c.cfg.Zoom.SDKKey, c.cfg.Zoom.SDKSecret, c.cfg.Zoom.PMI, c.now())
	if err != nil {
		return false, fmt.Errorf("generate token: %w", err)
	}
	if err := c.client.Auth(ctx, token); err != nil {
		return false, fmt.Errorf("auth: %w", err)
	}

	meeting, err := c.cfg.MeetingNumber()
	if err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	params := conference.JoinParams{
		MeetingNumber:    meeting,
		DisplayName:      c.cfg.Zoom.DisplayName,
		Passcode:         c.cfg.Zoom.Passcode,
		DirectShare:      true,
		VideoOff:         true,
		AudioOff:         !c.cfg.Screen.ShareComputerSound,
		WithRawData:      c.sc.RawDataRequested,
		MonitorIndex:     c.cfg.Screen.MonitorIndex,
		StereoShareAudio: c.cfg.Screen.StereoAudio,
	}
	if err := c.client.Join(ctx, params); err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	c.logger.Info().Uint64("meeting", meeting).Bool("raw_data", params.WithRawData).Msg("join requested")
	return false, nil
}

// reconnect is connect as driven by the UI or the watchdog.
func (c *Controller) reconnect(ctx context.Context) (bool, error) {
	skipped, err := c.connect(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reconnect failed")
	}
	return skipped, err
}
