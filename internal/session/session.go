// Package session tracks the meeting connection state and drives the raw
// pipe lifecycle from SDK status notifications.
package session

import (
	"time"

	"zoom-kiosk/internal/conference"
)

// State is the connection lifecycle phase.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
	StateReconnecting  State = "reconnecting"
	StateEnded         State = "ended"
	StateFailed        State = "failed"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// StateFor maps an SDK status onto a connection state. Statuses that do
// not move the lifecycle (audio ready, breakout rooms, ...) report false.
func StateFor(status conference.MeetingStatus) (State, bool) {
	switch status {
	case conference.StatusIdle:
		return StateIdle, true
	case conference.StatusConnecting, conference.StatusWaitingForHost, conference.StatusInWaitingRoom:
		return StateConnecting, true
	case conference.StatusInMeeting:
		return StateConnected, true
	case conference.StatusDisconnecting:
		return StateDisconnecting, true
	case conference.StatusReconnecting:
		return StateReconnecting, true
	case conference.StatusEnded:
		return StateEnded, true
	case conference.StatusFailed:
		return StateFailed, true
	}
	return "", false
}

// Context is the per-process session record owned by the controller.
type Context struct {
	State            State
	RawDataRequested bool
	LastStatus       conference.StatusEvent
	StatusText       string
	UpdatedAt        time.Time
}

// NewContext returns an idle context.
func NewContext(rawDataRequested bool) *Context {
	return &Context{
		State:            StateIdle,
		RawDataRequested: rawDataRequested,
		StatusText:       conference.StatusEvent{Status: conference.StatusIdle}.Text(),
	}
}
