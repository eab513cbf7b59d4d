package pipes

import "zoom-kiosk/internal/conference"

// Config names the three raw-media pipes and bounds the largest frame read.
type Config struct {
	VideoPipeName string `json:"videoPipeName" mapstructure:"video"`
	SharePipeName string `json:"sharePipeName" mapstructure:"share"`
	AudioPipeName string `json:"audioPipeName" mapstructure:"audio"`
	MaxReadLength int    `json:"maxReadLength" mapstructure:"max_read_length"`
}

// Complete reports whether all three pipe names are set.
func (c Config) Complete() bool {
	return c.VideoPipeName != "" && c.SharePipeName != "" && c.AudioPipeName != ""
}

// WithDefaults fills MaxReadLength when unset.
func (c Config) WithDefaults() Config {
	if c.MaxReadLength <= 0 {
		c.MaxReadLength = conference.DefaultMaxReadLength
	}
	return c
}

func (c Config) params() conference.PipeParams {
	return conference.PipeParams{
		VideoPipeName: c.VideoPipeName,
		SharePipeName: c.SharePipeName,
		AudioPipeName: c.AudioPipeName,
		MaxReadLength: c.MaxReadLength,
	}
}
