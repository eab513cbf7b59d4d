// Package conference describes the call contract of the vendor conferencing
// SDK and ships an in-process simulator of it.
package conference

import "context"

// DefaultMaxReadLength is one uncompressed 1080p 4:2:0 frame.
const DefaultMaxReadLength = 1920 * 1080 * 3 / 2

// PipeParams is the raw-data pipe configuration passed to the SDK.
type PipeParams struct {
	VideoPipeName string `json:"videoPipeName"`
	SharePipeName string `json:"sharePipeName"`
	AudioPipeName string `json:"audioPipeName"`
	MaxReadLength int    `json:"maxReadLength"`
}

// JoinParams are the arguments of a join-without-login request.
type JoinParams struct {
	MeetingNumber    uint64
	DisplayName      string
	Passcode         string
	DirectShare      bool
	VideoOff         bool
	AudioOff         bool
	WithRawData      bool
	MonitorIndex     int
	StereoShareAudio bool
}

// RawData is the SDK's raw-data sub-object driving the named-pipe transport.
// Calls are synchronous and may be slow.
type RawData interface {
	SetPipeServeInitParam(params PipeParams) error
	StartPipeServe() error
	StopPipeServe() error
}

// Client is the subset of the SDK the kiosk controller drives.
type Client interface {
	// Init loads and initializes the SDK.
	Init(ctx context.Context) error
	// Auth authenticates with an SDK JWT.
	Auth(ctx context.Context, token string) error
	// Join joins a meeting. Progress is reported through status events.
	Join(ctx context.Context, params JoinParams) error
	// Leave leaves the current meeting.
	Leave(ctx context.Context) error
	// Subscribe registers a status listener. The returned func removes it and
	// is safe to call more than once.
	Subscribe() (<-chan StatusEvent, func())
	// RawData returns the raw-data sub-object, nil before Init.
	RawData() RawData
}
