package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeStatusGet:            true,
	TypeConfigGet:            true,
	TypeReconnect:            true,
	TypeRecordingStart:       true,
	TypeRecordingStop:        true,
	TypeRecordingRecordClick: true,
}

var validButtons = map[string]bool{
	"":       true,
	"left":   true,
	"right":  true,
	"middle": true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	switch msg.Type {
	case TypeRecordingStop:
		if _, err := DecodeRecordingStop(msg.Payload); err != nil {
			return nil, err
		}

	case TypeRecordingRecordClick:
		if len(msg.Payload) == 0 {
			return nil, fmt.Errorf("missing 'payload' field")
		}
		if _, err := DecodeRecordClick(msg.Payload); err != nil {
			return nil, err
		}
	}

	return &msg, nil
}

// DecodeRecordClick parses and checks a click payload.
func DecodeRecordClick(data []byte) (RecordClickPayload, error) {
	var p RecordClickPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("invalid payload for %s: %w", TypeRecordingRecordClick, err)
	}
	if p.X == nil || p.Y == nil {
		return p, fmt.Errorf("missing required fields 'x' and 'y' in %s payload", TypeRecordingRecordClick)
	}
	if !validButtons[p.Button] {
		return p, fmt.Errorf("unknown button %q in %s payload", p.Button, TypeRecordingRecordClick)
	}
	return p, nil
}

// DecodeRecordingStop parses an optional stop payload.
func DecodeRecordingStop(data []byte) (RecordingStopPayload, error) {
	var p RecordingStopPayload
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("invalid payload for %s: %w", TypeRecordingStop, err)
	}
	return p, nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
