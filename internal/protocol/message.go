// Package protocol defines the messages exchanged with the kiosk UI.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"` // echoed on replies
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload any) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// Reply returns a copy of m addressed to the request with the given id.
func (m *Message) Reply(id string) *Message {
	out := *m
	out.ID = id
	return &out
}

// Server → Client message types.
const (
	TypeStatusUpdate     = "status-update"
	TypeRecordingStarted = "recording-started"
	TypeRecordingStopped = "recording-stopped"
	TypeRecordingStatus  = "recording-status"
	TypeConfig           = "config"
	TypeReconnectResult  = "reconnect-result"
	TypeError            = "error"
)

// Client → Server message types.
const (
	TypeStatusGet            = "status.get"
	TypeConfigGet            = "config.get"
	TypeReconnect            = "reconnect"
	TypeRecordingStart       = "recording.start"
	TypeRecordingStop        = "recording.stop"
	TypeRecordingRecordClick = "recording.recordClick"
)

// Error codes.
const (
	ErrInvalidMessage  = "INVALID_MESSAGE"
	ErrNotRecording    = "NOT_RECORDING"
	ErrSaveFailed      = "SAVE_FAILED"
	ErrReconnectFailed = "RECONNECT_FAILED"
	ErrNoRecording     = "NO_RECORDING"
	ErrInternal        = "INTERNAL"
)

// Server → Client payloads.

type StatusUpdatePayload struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

type RecordingStartedPayload struct{}

type RecordingStoppedPayload struct {
	Saved       bool `json:"saved"`
	ActionCount int  `json:"actionCount"`
}

type RecordingStatusPayload struct {
	IsRecording bool `json:"isRecording"`
	ActionCount int  `json:"actionCount"`
	Degraded    bool `json:"degraded,omitempty"`
}

type ConfigPayload struct {
	DisplayName  string `json:"displayName"`
	PMI          string `json:"pmi"`
	MonitorIndex int    `json:"monitorIndex"`
}

type ReconnectResultPayload struct {
	Skipped bool   `json:"skipped"` // already connected
	Error   string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type RecordingStopPayload struct {
	Save *bool `json:"save,omitempty"`
}

// ShouldSave defaults to saving when the flag is absent.
func (p RecordingStopPayload) ShouldSave() bool {
	return p.Save == nil || *p.Save
}

type RecordClickPayload struct {
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
	Button string `json:"button,omitempty"`
}
