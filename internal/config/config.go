// Package config loads the kiosk settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"zoom-kiosk/internal/logging"
	"zoom-kiosk/internal/pipes"
	"zoom-kiosk/internal/recorder"
	"zoom-kiosk/internal/recovery"
)

// EnvPrefix prefixes every environment override, e.g. KIOSK_ZOOM_PMI.
const EnvPrefix = "KIOSK"

type Config struct {
	Zoom     ZoomConfig
	Screen   ScreenConfig
	Recovery recovery.Config
	Kiosk    KioskConfig
	Pipes    PipesConfig
	Capture  CaptureConfig
	Storage  recorder.StoreConfig
	Server   ServerConfig
	Log      logging.Config

	// File is the config file actually read, empty when none was found.
	File string `mapstructure:"-"`
}

type ZoomConfig struct {
	SDKKey      string `mapstructure:"sdk_key"`
	SDKSecret   string `mapstructure:"sdk_secret"`
	PMI         string `mapstructure:"pmi"`
	Passcode    string `mapstructure:"passcode"`
	DisplayName string `mapstructure:"display_name"`
}

type ScreenConfig struct {
	MonitorIndex       int  `mapstructure:"monitor_index"`
	ShareComputerSound bool `mapstructure:"share_computer_sound"`
	StereoAudio        bool `mapstructure:"stereo_audio"`
}

type KioskConfig struct {
	AutoReconnect bool `mapstructure:"auto_reconnect"`
	// ReplayOnConnect plays the saved recording each time the meeting
	// connects.
	ReplayOnConnect bool    `mapstructure:"replay_on_connect"`
	PlaybackSpeed   float64 `mapstructure:"playback_speed"`
}

type PipesConfig struct {
	RawData      bool         `mapstructure:"raw_data"`
	Names        pipes.Config `mapstructure:",squash"`
	AckTimeoutMs int          `mapstructure:"ack_timeout_ms"`
}

// AckTimeout returns the per-call acknowledgement timeout.
func (p PipesConfig) AckTimeout() time.Duration {
	return time.Duration(p.AckTimeoutMs) * time.Millisecond
}

type CaptureConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	IntervalMs     int  `mapstructure:"interval_ms"`
	QueueSize      int  `mapstructure:"queue_size"`
	RestartOnCrash bool `mapstructure:"restart_on_crash"`
}

// Interval returns the polling period.
func (c CaptureConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

// Summary is the subset of settings shown to the UI.
type Summary struct {
	DisplayName  string `json:"displayName"`
	PMI          string `json:"pmi"`
	MonitorIndex int    `json:"monitorIndex"`
}

func (c *Config) Summary() Summary {
	return Summary{
		DisplayName:  c.Zoom.DisplayName,
		PMI:          c.Zoom.PMI,
		MonitorIndex: c.Screen.MonitorIndex,
	}
}

// MeetingNumber parses the PMI, ignoring spaces and dashes.
func (c *Config) MeetingNumber() (uint64, error) {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(c.Zoom.PMI)
	if digits == "" {
		return 0, errors.New("pmi not configured")
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pmi %q: %w", c.Zoom.PMI, err)
	}
	return n, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zoom.sdk_key", "")
	v.SetDefault("zoom.sdk_secret", "")
	v.SetDefault("zoom.pmi", "")
	v.SetDefault("zoom.passcode", "")
	v.SetDefault("zoom.display_name", "REMOTE-PC-01")

	v.SetDefault("screen.monitor_index", 0)
	v.SetDefault("screen.share_computer_sound", true)
	v.SetDefault("screen.stereo_audio", true)

	v.SetDefault("recovery.max_retries", 10)
	v.SetDefault("recovery.initial_backoff_ms", 1000)
	v.SetDefault("recovery.max_backoff_ms", 30000)

	v.SetDefault("kiosk.auto_reconnect", true)
	v.SetDefault("kiosk.replay_on_connect", true)
	v.SetDefault("kiosk.playback_speed", 1.0)

	v.SetDefault("pipes.raw_data", false)
	v.SetDefault("pipes.video", "")
	v.SetDefault("pipes.share", "")
	v.SetDefault("pipes.audio", "")
	v.SetDefault("pipes.max_read_length", 0)
	v.SetDefault("pipes.ack_timeout_ms", 5000)

	v.SetDefault("capture.enabled", true)
	v.SetDefault("capture.interval_ms", 10)
	v.SetDefault("capture.queue_size", 1024)
	v.SetDefault("capture.restart_on_crash", false)

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", recorder.DefaultFileName)

	v.SetDefault("server.port", 8787)
	v.SetDefault("server.static_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// searchPaths lists the directories probed for config.{yaml,json} when no
// explicit file is given.
func searchPaths() []string {
	paths := []string{".", "./config"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		paths = append(paths, filepath.Join(appData, "zoom-kiosk"))
	}
	return paths
}

// Load reads configuration from file (explicit path, or the first config
// file found on the search path) and KIOSK_* environment variables. The
// returned warnings describe settings that were missing or corrected.
func Load(path string) (*Config, []string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	warnings := cfg.Validate()
	if cfg.File == "" {
		warnings = append(warnings, "no config file found, using defaults and environment")
	}
	return &cfg, warnings, nil
}

// Validate clamps out-of-range values and reports what is missing.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Zoom.SDKKey == "" || c.Zoom.SDKKey == "YOUR_CLIENT_ID" {
		warnings = append(warnings, "Zoom SDK key is not configured")
	}
	if c.Zoom.SDKSecret == "" || c.Zoom.SDKSecret == "YOUR_CLIENT_SECRET" {
		warnings = append(warnings, "Zoom SDK secret is not configured")
	}
	if c.Zoom.PMI == "" || c.Zoom.PMI == "1234567890" {
		warnings = append(warnings, "Zoom PMI is not configured")
	}
	if c.Screen.MonitorIndex < 0 {
		c.Screen.MonitorIndex = 0
		warnings = append(warnings, "invalid monitor index, defaulting to 0")
	}
	if c.Recovery.MaxRetries < 1 {
		c.Recovery.MaxRetries = 1
		warnings = append(warnings, "invalid max retries, defaulting to 1")
	}
	if c.Kiosk.PlaybackSpeed < recorder.MinPlaybackSpeed || c.Kiosk.PlaybackSpeed > recorder.MaxPlaybackSpeed {
		c.Kiosk.PlaybackSpeed = 1
		warnings = append(warnings, "invalid playback speed, defaulting to 1")
	}
	if c.Pipes.RawData && !c.Pipes.Names.Complete() {
		warnings = append(warnings, "raw data requested but pipe names are incomplete; pipes will not start")
	}
	if c.Pipes.AckTimeoutMs <= 0 {
		c.Pipes.AckTimeoutMs = 5000
		warnings = append(warnings, "invalid pipe ack timeout, defaulting to 5000ms")
	}
	if c.Capture.QueueSize <= 0 {
		c.Capture.QueueSize = 1024
		warnings = append(warnings, "invalid capture queue size, defaulting to 1024")
	}
	return warnings
}
