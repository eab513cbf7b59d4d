package controller

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/conference"
	"zoom-kiosk/internal/config"
	"zoom-kiosk/internal/pipes"
	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/realtime"
	"zoom-kiosk/internal/recorder"
	"zoom-kiosk/internal/recovery"
)

type published struct {
	msgType string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Notify(msgType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{msgType, payload})
}

func (p *fakePublisher) find(match func(published) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.msgs {
		if match(m) {
			return true
		}
	}
	return false
}

func (p *fakePublisher) count(match func(published) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if match(m) {
			n++
		}
	}
	return n
}

type fakeCapture struct {
	mu       sync.Mutex
	queue    *capture.Queue
	exits    chan capture.Exit
	running  bool
	starts   int
	startErr error
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{queue: capture.NewQueue(8), exits: make(chan capture.Exit, 4)}
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return capture.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeCapture) Exits() <-chan capture.Exit { return f.exits }
func (f *fakeCapture) Queue() *capture.Queue      { return f.queue }

func (f *fakeCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeInjector struct {
	mu     sync.Mutex
	x, y   int
	clicks []capture.ClickEvent
}

func (f *fakeInjector) CursorPos() (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y, nil
}

func (f *fakeInjector) MoveTo(x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
	return nil
}

func (f *fakeInjector) Click(b capture.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, capture.ClickEvent{X: f.x, Y: f.y, Button: b})
	return nil
}

func (f *fakeInjector) ScreenSize() (int, int, error) { return 200, 100, nil }

func (f *fakeInjector) clicked() []capture.ClickEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.ClickEvent(nil), f.clicks...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Zoom: config.ZoomConfig{
			SDKKey:      "key",
			SDKSecret:   "secret",
			PMI:         "123 456 7890",
			DisplayName: "REMOTE-PC-01",
		},
		Screen:   config.ScreenConfig{MonitorIndex: 1, ShareComputerSound: true},
		Recovery: recovery.Config{MaxRetries: 3, InitialBackoffMs: 10, MaxBackoffMs: 40},
		Kiosk:    config.KioskConfig{AutoReconnect: true, ReplayOnConnect: true, PlaybackSpeed: 1},
		Pipes:    config.PipesConfig{AckTimeoutMs: 1000},
		Capture:  config.CaptureConfig{Enabled: true},
		Storage:  recorder.StoreConfig{Type: "file", Path: filepath.Join(t.TempDir(), "user-prefs.json")},
	}
}

type harness struct {
	ctrl    *Controller
	sim     *conference.Simulator
	pub     *fakePublisher
	capture *fakeCapture
	inject  *fakeInjector
	rec     *recorder.Recorder
	cancel  context.CancelFunc
	done    chan error
}

func startController(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	store, err := recorder.NewStore(cfg.Storage)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		sim:     conference.NewSimulator(5 * time.Millisecond),
		pub:     &fakePublisher{},
		capture: newFakeCapture(),
		inject:  &fakeInjector{},
		rec:     recorder.New(store),
		done:    make(chan error, 1),
	}
	t.Cleanup(h.sim.Close)

	h.ctrl = New(Options{
		Config:    cfg,
		Client:    h.sim,
		Recorder:  h.rec,
		Capture:   h.capture,
		Player:    recorder.NewPlayer(h.inject, 1, zerolog.Nop()),
		Publisher: h.pub,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ctrl.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("controller did not stop")
		}
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func isState(state string) func(published) bool {
	return func(m published) bool {
		p, ok := m.payload.(protocol.StatusUpdatePayload)
		return m.msgType == protocol.TypeStatusUpdate && ok && p.State == state
	}
}

func TestController_ConnectsOnStartup(t *testing.T) {
	h := startController(t, testConfig(t))

	waitFor(t, "connected", func() bool { return h.pub.find(isState("connected")) })

	st, err := h.ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != "connected" || st.Status != "In meeting" {
		t.Errorf("status = %+v", st)
	}

	skipped, err := h.ctrl.Reconnect(context.Background())
	if err != nil || !skipped {
		t.Errorf("Reconnect while connected = %v, %v; want skipped", skipped, err)
	}
}

func TestController_ConfigSummary(t *testing.T) {
	h := startController(t, testConfig(t))

	got, err := h.ctrl.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	want := protocol.ConfigPayload{DisplayName: "REMOTE-PC-01", PMI: "123 456 7890", MonitorIndex: 1}
	if got != want {
		t.Errorf("Config = %+v, want %+v", got, want)
	}
}

func TestController_BadPMIReportsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Zoom.PMI = ""
	cfg.Kiosk.AutoReconnect = false
	h := startController(t, cfg)

	waitFor(t, "connect failure", func() bool {
		return h.pub.find(func(m published) bool {
			p, ok := m.payload.(protocol.StatusUpdatePayload)
			return ok && strings.HasPrefix(p.Status, "Connect failed")
		})
	})

	if _, err := h.ctrl.Reconnect(context.Background()); err == nil {
		t.Error("Reconnect with no PMI should fail")
	}
}

func TestController_RawDataStartsPipes(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Pipes.RawData = true
	cfg.Pipes.Names = pipes.Config{
		VideoPipeName: filepath.Join(dir, "video"),
		SharePipeName: filepath.Join(dir, "share"),
		AudioPipeName: filepath.Join(dir, "audio"),
	}
	h := startController(t, cfg)

	waitFor(t, "pipes active", h.ctrl.Pipes().Active)

	h.sim.Inject(conference.StatusEvent{Status: conference.StatusReconnecting})
	waitFor(t, "pipes stopped", func() bool { return !h.ctrl.Pipes().Active() })
}

func TestController_RecordingFlow(t *testing.T) {
	h := startController(t, testConfig(t))
	ctx := context.Background()

	// Stale clicks from before the recording must not count.
	h.capture.queue.Push(capture.ClickEvent{X: 9, Y: 9, Button: capture.ButtonLeft, Kind: capture.KindClick, Timestamp: time.Now()})

	if err := h.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !h.capture.Running() {
		t.Fatal("capture not started")
	}
	if !h.pub.find(func(m published) bool { return m.msgType == protocol.TypeRecordingStarted }) {
		t.Error("recording-started not published")
	}

	now := time.Now()
	h.capture.queue.Push(capture.ClickEvent{X: 1, Y: 2, Button: capture.ButtonLeft, Kind: capture.KindClick, Timestamp: now})
	h.capture.queue.Push(capture.ClickEvent{X: 3, Y: 4, Button: capture.ButtonRight, Kind: capture.KindClick, Timestamp: now.Add(50 * time.Millisecond)})

	waitFor(t, "two actions", func() bool {
		st, err := h.ctrl.RecordingStatus(ctx)
		return err == nil && st.ActionCount == 2
	})

	if err := h.ctrl.RecordClick(ctx, capture.ClickEvent{X: 5, Y: 6, Button: capture.ButtonMiddle, Kind: capture.KindClick, Timestamp: now.Add(100 * time.Millisecond)}); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}

	res, err := h.ctrl.StopRecording(ctx, true)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if !res.Saved || res.ActionCount != 3 {
		t.Errorf("StopRecording = %+v, want saved with 3 actions", res)
	}
	if h.capture.Running() {
		t.Error("capture still running after stop")
	}

	rec, err := h.ctrl.LoadRecording(ctx)
	if err != nil {
		t.Fatalf("LoadRecording: %v", err)
	}
	if len(rec.Actions) != 3 || rec.Actions[0].X != 1 || rec.Actions[2].Button != capture.ButtonMiddle {
		t.Errorf("saved actions = %+v", rec.Actions)
	}

	if err := h.ctrl.DeleteRecording(ctx); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if _, err := h.ctrl.LoadRecording(ctx); !errors.Is(err, recorder.ErrNoRecording) {
		t.Errorf("LoadRecording after delete = %v, want ErrNoRecording", err)
	}
}

func TestController_StopWithoutRecording(t *testing.T) {
	h := startController(t, testConfig(t))

	_, err := h.ctrl.StopRecording(context.Background(), true)
	if !errors.Is(err, recorder.ErrNotRecording) {
		t.Fatalf("StopRecording = %v, want ErrNotRecording", err)
	}
	if h.pub.find(func(m published) bool { return m.msgType == protocol.TypeRecordingStopped }) {
		t.Error("recording-stopped published for a no-op stop")
	}
}

func TestController_CaptureStartFailureDegrades(t *testing.T) {
	h := startController(t, testConfig(t))
	h.capture.startErr = errors.New("no display")

	if err := h.ctrl.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	st, _ := h.ctrl.RecordingStatus(context.Background())
	if !st.IsRecording || !st.Degraded {
		t.Errorf("status = %+v, want recording and degraded", st)
	}
}

func TestController_CaptureCrash(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.RestartOnCrash = true
	h := startController(t, cfg)
	ctx := context.Background()

	if err := h.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.capture.Stop()
	h.capture.exits <- capture.Exit{ID: "p1", Code: 3}

	waitFor(t, "crash status", func() bool {
		return h.pub.find(func(m published) bool {
			p, ok := m.payload.(protocol.StatusUpdatePayload)
			return ok && p.Status == "Capture process exited: code 3"
		})
	})
	st, _ := h.ctrl.RecordingStatus(ctx)
	if !st.Degraded {
		t.Error("recording not degraded after crash")
	}
	if n := h.capture.startCount(); n != 2 {
		t.Errorf("capture starts = %d, want restart", n)
	}
}

func TestController_ExpectedCaptureExitIgnored(t *testing.T) {
	h := startController(t, testConfig(t))
	ctx := context.Background()

	if err := h.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.capture.exits <- capture.Exit{ID: "p1", Expected: true}

	st, _ := h.ctrl.RecordingStatus(ctx)
	if st.Degraded {
		t.Error("expected exit degraded the recording")
	}
}

func TestController_AutoReconnect(t *testing.T) {
	h := startController(t, testConfig(t))

	waitFor(t, "connected", func() bool { return h.pub.find(isState("connected")) })
	h.sim.Inject(conference.StatusEvent{Status: conference.StatusEnded})

	waitFor(t, "reconnected", func() bool { return h.pub.count(isState("connected")) >= 2 })
}

func TestController_NoAutoReconnect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kiosk.AutoReconnect = false
	h := startController(t, cfg)

	waitFor(t, "connected", func() bool { return h.pub.find(isState("connected")) })
	h.sim.Inject(conference.StatusEvent{Status: conference.StatusEnded})
	waitFor(t, "ended", func() bool { return h.pub.find(isState("ended")) })

	time.Sleep(100 * time.Millisecond)
	if n := h.pub.count(isState("connected")); n != 1 {
		t.Errorf("connected %d times, want no reconnect", n)
	}
}

func TestController_ApplyConfig(t *testing.T) {
	h := startController(t, testConfig(t))

	next := testConfig(t)
	next.Zoom.DisplayName = "FRONT-DESK"
	if err := h.ctrl.ApplyConfig(context.Background(), next); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	if !h.pub.find(func(m published) bool {
		p, ok := m.payload.(protocol.ConfigPayload)
		return m.msgType == protocol.TypeConfig && ok && p.DisplayName == "FRONT-DESK"
	}) {
		t.Error("config not published")
	}
	got, _ := h.ctrl.Config(context.Background())
	if got.DisplayName != "FRONT-DESK" {
		t.Errorf("Config().DisplayName = %q", got.DisplayName)
	}
}

func TestController_CallAfterStop(t *testing.T) {
	h := startController(t, testConfig(t))
	h.cancel()
	<-h.done
	h.done <- nil

	if _, err := h.ctrl.Status(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Status after stop = %v, want ErrStopped", err)
	}
}

var _ realtime.Backend = (*Controller)(nil)

func TestController_StopThenStartRecording(t *testing.T) {
	h := startController(t, testConfig(t))
	ctx := context.Background()

	if err := h.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := h.ctrl.StopRecording(ctx, false); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if err := h.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("second StartRecording: %v", err)
	}

	if !h.capture.Running() || h.capture.startCount() != 2 {
		t.Errorf("expected capture relaunched, running=%v starts=%d", h.capture.Running(), h.capture.startCount())
	}
	st, _ := h.ctrl.RecordingStatus(ctx)
	if !st.IsRecording || st.Degraded {
		t.Errorf("status = %+v, want recording and not degraded", st)
	}
}

func saveRecording(t *testing.T, cfg *config.Config, actions ...recorder.Action) {
	t.Helper()
	store, err := recorder.NewStore(cfg.Storage)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	now := time.Now().UTC()
	rec := &recorder.Recording{ID: "saved", StartedAt: now, StoppedAt: now, Actions: actions}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestController_ReplaysOnConnect(t *testing.T) {
	cfg := testConfig(t)
	saveRecording(t, cfg,
		recorder.Action{X: 40, Y: 30, Button: capture.ButtonLeft, Type: capture.KindClick, OffsetMs: 0},
		recorder.Action{X: 150, Y: 80, Button: capture.ButtonRight, Type: capture.KindClick, OffsetMs: 30},
	)
	h := startController(t, cfg)

	waitFor(t, "replayed clicks", func() bool { return len(h.inject.clicked()) == 2 })

	got := h.inject.clicked()
	if got[0].X != 40 || got[0].Y != 30 || got[1].X != 150 || got[1].Button != capture.ButtonRight {
		t.Errorf("clicks = %+v", got)
	}
	waitFor(t, "applied status", func() bool {
		return h.pub.find(func(m published) bool {
			p, ok := m.payload.(protocol.StatusUpdatePayload)
			return ok && p.Status == "Preferences applied"
		})
	})
}

func TestController_ReplayDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kiosk.ReplayOnConnect = false
	saveRecording(t, cfg, recorder.Action{X: 1, Y: 1, Type: capture.KindClick})
	h := startController(t, cfg)

	waitFor(t, "connected", func() bool { return h.pub.find(isState("connected")) })
	time.Sleep(100 * time.Millisecond)
	if n := len(h.inject.clicked()); n != 0 {
		t.Errorf("expected no replay, got %d clicks", n)
	}
}
