package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "kiosk.yaml", `
zoom:
  sdk_key: key
  sdk_secret: secret
  pmi: "123-456-7890"
  display_name: LOBBY-01
pipes:
  raw_data: true
  video: v
  share: s
  audio: a
  ack_timeout_ms: 2500
storage:
  type: sqlite
  path: /tmp/rec.db
`)

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if cfg.Zoom.DisplayName != "LOBBY-01" || cfg.File != path {
		t.Errorf("unexpected zoom config: %+v (file %q)", cfg.Zoom, cfg.File)
	}
	if !cfg.Pipes.RawData || !cfg.Pipes.Names.Complete() || cfg.Pipes.Names.VideoPipeName != "v" {
		t.Errorf("unexpected pipes config: %+v", cfg.Pipes)
	}
	if cfg.Pipes.AckTimeout().Milliseconds() != 2500 {
		t.Errorf("expected 2500ms ack timeout, got %s", cfg.Pipes.AckTimeout())
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("expected sqlite storage, got %q", cfg.Storage.Type)
	}

	n, err := cfg.MeetingNumber()
	if err != nil || n != 1234567890 {
		t.Errorf("expected meeting number 1234567890, got %d (%v)", n, err)
	}
}

func TestLoad_DefaultsAndClamping(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "screen": {"monitor_index": -2},
  "recovery": {"max_retries": 0},
  "kiosk": {"playback_speed": 12}
}`)

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Screen.MonitorIndex != 0 || cfg.Recovery.MaxRetries != 1 {
		t.Errorf("expected clamped values, got monitor=%d retries=%d", cfg.Screen.MonitorIndex, cfg.Recovery.MaxRetries)
	}
	if cfg.Kiosk.PlaybackSpeed != 1 || !cfg.Kiosk.ReplayOnConnect {
		t.Errorf("expected playback speed reset to 1 with replay on, got %+v", cfg.Kiosk)
	}
	for _, want := range []string{"SDK key", "SDK secret", "PMI", "monitor index", "max retries", "playback speed"} {
		if !hasWarning(warnings, want) {
			t.Errorf("expected warning containing %q in %v", want, warnings)
		}
	}

	if cfg.Zoom.DisplayName != "REMOTE-PC-01" {
		t.Errorf("expected default display name, got %q", cfg.Zoom.DisplayName)
	}
	if cfg.Recovery.InitialBackoffMs != 1000 || cfg.Recovery.MaxBackoffMs != 30000 {
		t.Errorf("unexpected recovery defaults: %+v", cfg.Recovery)
	}
	if cfg.Capture.QueueSize != 1024 || cfg.Capture.IntervalMs != 10 {
		t.Errorf("unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Pipes.AckTimeoutMs != 5000 {
		t.Errorf("expected default ack timeout 5000, got %d", cfg.Pipes.AckTimeoutMs)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "zoom:\n  pmi: \"111\"\n")
	t.Setenv("KIOSK_ZOOM_PMI", "999")
	t.Setenv("KIOSK_SERVER_PORT", "9100")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Zoom.PMI != "999" {
		t.Errorf("expected env override for pmi, got %q", cfg.Zoom.PMI)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env override for port, got %d", cfg.Server.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestMeetingNumber_Invalid(t *testing.T) {
	cfg := &Config{Zoom: ZoomConfig{PMI: "abc"}}
	if _, err := cfg.MeetingNumber(); err == nil {
		t.Error("expected error for non-numeric pmi")
	}
	cfg.Zoom.PMI = ""
	if _, err := cfg.MeetingNumber(); err == nil {
		t.Error("expected error for empty pmi")
	}
}

func TestSummary(t *testing.T) {
	cfg := &Config{
		Zoom:   ZoomConfig{DisplayName: "D", PMI: "42"},
		Screen: ScreenConfig{MonitorIndex: 1},
	}
	if got := cfg.Summary(); got != (Summary{DisplayName: "D", PMI: "42", MonitorIndex: 1}) {
		t.Errorf("unexpected summary: %+v", got)
	}
}
