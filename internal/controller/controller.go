// Package controller runs the kiosk's single event loop. Meeting status,
// captured clicks, capture process exits, pipe results, recovery retries
// and UI commands are all handled on one goroutine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/conference"
	"zoom-kiosk/internal/config"
	"zoom-kiosk/internal/logging"
	"zoom-kiosk/internal/pipes"
	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/recorder"
	"zoom-kiosk/internal/recovery"
	"zoom-kiosk/internal/session"
)

const (
	commandQueueCap = 32
	shutdownTimeout = 5 * time.Second
)

// ErrStopped is returned for commands sent after the loop has exited.
var ErrStopped = errors.New("controller stopped")

// Publisher delivers notifications to the UI.
type Publisher interface {
	Notify(msgType string, payload any)
}

// CaptureSupervisor runs the click capture process.
type CaptureSupervisor interface {
	Start() error
	Stop() error
	Running() bool
	Exits() <-chan capture.Exit
	Queue() *capture.Queue
}

// Options wires the controller's collaborators. Capture may be nil when
// click capture is disabled.
type Options struct {
	Config   *config.Config
	Client   conference.Client
	Recorder *recorder.Recorder
	Capture  CaptureSupervisor
	// Player replays the saved recording on connect. Nil disables replay.
	Player    *recorder.Player
	Publisher Publisher
	// Logger is the base logger; each component gets its own tag.
	Logger zerolog.Logger
	// Now is used for token issue times. Defaults to time.Now.
	Now func() time.Time
}

var _ session.StatusSink = (*Controller)(nil)

// Controller owns the session context and serializes all mutation through
// its loop.
type Controller struct {
	cfg      *config.Config
	client   conference.Client
	pipes    *pipes.Manager
	worker   *pipes.Worker
	sc       *session.Context
	machine  *session.StateMachine
	recorder *recorder.Recorder
	capture  CaptureSupervisor
	player   *recorder.Player
	watchdog *recovery.Watchdog
	pub      Publisher
	logger   zerolog.Logger
	now      func() time.Time

	initialized bool

	replayCancel      context.CancelFunc // non-nil while a replay runs
	replayDone        chan replayResult
	replayUnavailable bool

	commands chan func(context.Context)
	stopped  chan struct{}
}

// New builds a controller. It does not touch the SDK until Run.
func New(opts Options) *Controller {
	cfg := opts.Config
	base := opts.Logger
	logger := base.With().Str(logging.FieldComponent, "controller").Logger()
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		cfg:      cfg,
		client:   opts.Client,
		recorder: opts.Recorder,
		capture:  opts.Capture,
		player:   opts.Player,
		pub:      opts.Publisher,
		logger:   logger,
		now:      now,
		commands: make(chan func(context.Context), commandQueueCap),
		stopped:  make(chan struct{}),

		replayDone: make(chan replayResult, 1),
	}

	c.pipes = pipes.NewManager(opts.Client, cfg.Pipes.AckTimeout(), base.With().Str(logging.FieldComponent, "pipes").Logger())
	if cfg.Pipes.Names.Complete() {
		if err := c.pipes.SetConfig(cfg.Pipes.Names); err != nil {
			logger.Warn().Err(err).Msg("pipe config rejected")
		}
	}
	c.worker = pipes.NewWorker(c.pipes)

	c.sc = session.NewContext(cfg.Pipes.RawData)
	c.machine = session.NewStateMachine(c.sc, c.worker, c, base.With().Str(logging.FieldComponent, "session").Logger())

	if cfg.Kiosk.AutoReconnect {
		c.watchdog = recovery.New(cfg.Recovery, base.With().Str(logging.FieldComponent, "recovery").Logger())
	}
	return c
}

// Pipes exposes the pipe manager.
func (c *Controller) Pipes() *pipes.Manager {
	return c.pipes
}

// Run connects to the meeting and processes events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)

	statuses, unsubscribe := c.client.Subscribe()
	defer unsubscribe()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go c.worker.Run(workerCtx)

	var (
		ready <-chan struct{}
		exits <-chan capture.Exit
		due   <-chan recovery.Retry
	)
	if c.capture != nil {
		ready = c.capture.Queue().Ready()
		exits = c.capture.Exits()
	}
	if c.watchdog != nil {
		c.watchdog.Start()
		due = c.watchdog.Due()
	}

	if _, err := c.connect(ctx); err != nil {
		c.logger.Error().Err(err).Msg("initial connect failed")
		c.StatusChanged(conference.StatusEvent{Status: conference.StatusFailed}, c.sc.State, fmt.Sprintf("Connect failed: %v", err))
		if c.watchdog != nil {
			c.watchdog.OnDisconnected()
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil

		case ev, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			c.handleStatus(ctx, ev)

		case <-ready:
			c.drainClicks()

		case exit := <-exits:
			c.handleCaptureExit(exit)

		case res := <-c.worker.Results():
			c.handlePipeResult(res)

		case r := <-due:
			if !c.watchdog.Begin(r) {
				continue
			}
			_, err := c.reconnect(ctx)
			c.watchdog.Result(err)

		case res := <-c.replayDone:
			c.finishReplay(res)

		case cmd := <-c.commands:
			cmd(ctx)
		}
	}
}

func (c *Controller) handleStatus(ctx context.Context, ev conference.StatusEvent) {
	prev := c.sc.State
	c.machine.Handle(ctx, ev)

	switch {
	case c.sc.State == session.StateConnected && prev != session.StateConnected:
		c.startReplay(ctx)
	case prev == session.StateConnected && c.sc.State != session.StateConnected:
		c.cancelReplay()
	}

	if c.watchdog == nil {
		return
	}
	switch c.sc.State {
	case session.StateConnected:
		c.watchdog.OnConnected()
	case session.StateEnded, session.StateFailed:
		c.watchdog.OnDisconnected()
	}
}

// StatusChanged forwards a handled status to the UI.
func (c *Controller) StatusChanged(_ conference.StatusEvent, state session.State, text string) {
	c.notify(protocol.TypeStatusUpdate, protocol.StatusUpdatePayload{Status: text, State: string(state)})
}

func (c *Controller) handlePipeResult(res pipes.Result) {
	ev := c.logger.Info()
	if res.Err != nil {
		ev = c.logger.Warn().Err(res.Err)
	}
	ev.Str("op", string(res.Op)).Dur("took", res.Duration).Bool("active", c.pipes.Active()).Msg("pipe operation finished")
}

func (c *Controller) drainClicks() {
	events := c.capture.Queue().Drain()
	if len(events) == 0 {
		return
	}
	recorded := 0
	for _, evt := range events {
		if c.recorder.RecordEvent(evt) {
			recorded++
		}
	}
	if recorded > 0 {
		c.publishRecordingStatus()
	}
}

func (c *Controller) handleCaptureExit(exit capture.Exit) {
	if !exit.Crashed() {
		return
	}

	c.notify(protocol.TypeStatusUpdate, protocol.StatusUpdatePayload{
		Status: fmt.Sprintf("Capture process exited: code %d", exit.Code),
		State:  string(c.sc.State),
	})
	c.recorder.MarkDegraded()
	c.publishRecordingStatus()

	if c.cfg.Capture.RestartOnCrash && c.recorder.Status().IsRecording {
		if err := c.capture.Start(); err != nil {
			c.logger.Error().Err(err).Msg("capture restart failed")
		}
	}
}

func (c *Controller) shutdown() {
	c.cancelReplay()
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	if c.capture != nil && c.capture.Running() {
		_ = c.capture.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := c.client.Leave(ctx); err != nil && !errors.Is(err, conference.CodeNotInMeeting) {
		c.logger.Warn().Err(err).Msg("leave meeting")
	}
	if err := c.pipes.Stop(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("stop pipes")
	}
	c.logger.Info().Msg("controller stopped")
}

func (c *Controller) notify(msgType string, payload any) {
	if c.pub != nil {
		c.pub.Notify(msgType, payload)
	}
}

func (c *Controller) publishRecordingStatus() {
	st := c.recorder.Status()
	c.notify(protocol.TypeRecordingStatus, protocol.RecordingStatusPayload{
		IsRecording: st.IsRecording,
		ActionCount: st.ActionCount,
		Degraded:    st.Degraded,
	})
}

// call runs fn on the loop and waits for it to finish.
func (c *Controller) call(ctx context.Context, fn func(context.Context)) error {
	done := make(chan struct{})
	cmd := func(loopCtx context.Context) {
		defer close(done)
		fn(loopCtx)
	}

	select {
	case c.commands <- cmd:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
