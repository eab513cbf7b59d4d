// Package capture polls global pointer-button state in an isolated process
// and carries the resulting click events back to the parent.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Buttons lists every tracked button in emission order.
var Buttons = []Button{ButtonLeft, ButtonRight, ButtonMiddle}

// Valid reports whether b is a known button.
func (b Button) Valid() bool {
	switch b {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		return true
	}
	return false
}

// KindClick is the only record type on the capture stream.
const KindClick = "click"

// ClickEvent is one released→pressed transition.
type ClickEvent struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Button    Button    `json:"button"`
	Kind      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// record is the wire shape of one line on the capture stream.
type record struct {
	Type   string `json:"type"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
	Button Button `json:"button"`
}

// ErrMalformedLine marks a line that is not a valid click record.
var ErrMalformedLine = errors.New("malformed capture line")

// MarshalLine encodes a click as a single newline-terminated record.
func MarshalLine(x, y int, button Button) ([]byte, error) {
	data, err := json.Marshal(record{Type: KindClick, X: &x, Y: &y, Button: button})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ParseLine decodes one record, stamping it with receivedAt.
func ParseLine(line []byte, receivedAt time.Time) (ClickEvent, error) {
	var r record
	if err := json.Unmarshal(line, &r); err != nil {
		return ClickEvent{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if r.Type != KindClick {
		return ClickEvent{}, fmt.Errorf("%w: unknown type %q", ErrMalformedLine, r.Type)
	}
	if r.X == nil || r.Y == nil {
		return ClickEvent{}, fmt.Errorf("%w: missing coordinates", ErrMalformedLine)
	}
	if !r.Button.Valid() {
		return ClickEvent{}, fmt.Errorf("%w: unknown button %q", ErrMalformedLine, r.Button)
	}
	return ClickEvent{
		X:         *r.X,
		Y:         *r.Y,
		Button:    r.Button,
		Kind:      KindClick,
		Timestamp: receivedAt,
	}, nil
}
