package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zoom-kiosk/internal/conference"
	"zoom-kiosk/internal/pipes"
)

// PipeDispatcher queues pipe operations for asynchronous execution.
type PipeDispatcher interface {
	Submit(ctx context.Context, op pipes.Op)
}

// StatusSink receives every status after it has been handled.
type StatusSink interface {
	StatusChanged(ev conference.StatusEvent, state State, text string)
}

// StateMachine applies SDK status notifications to a Context.
type StateMachine struct {
	sc         *Context
	dispatcher PipeDispatcher
	sink       StatusSink
	logger     zerolog.Logger
}

// NewStateMachine creates a state machine mutating sc.
func NewStateMachine(sc *Context, dispatcher PipeDispatcher, sink StatusSink, logger zerolog.Logger) *StateMachine {
	return &StateMachine{sc: sc, dispatcher: dispatcher, sink: sink, logger: logger}
}

// Context returns the session context.
func (m *StateMachine) Context() *Context {
	return m.sc
}

// Handle applies ev. It never fails: pipe operations are queued and their
// outcome is only logged, and ev is always forwarded to the sink.
func (m *StateMachine) Handle(ctx context.Context, ev conference.StatusEvent) {
	prev := m.sc.State
	if next, ok := StateFor(ev.Status); ok {
		m.sc.State = next
	}
	m.sc.LastStatus = ev
	m.sc.StatusText = ev.Text()
	m.sc.UpdatedAt = time.Now().UTC()

	m.logger.Info().
		Str("status", ev.Status.String()).
		Int("result", ev.Result).
		Str("from", string(prev)).
		Str("to", string(m.sc.State)).
		Msg("meeting status")

	switch ev.Status {
	case conference.StatusConnecting:
		if m.sc.RawDataRequested {
			m.dispatcher.Submit(ctx, pipes.OpStart)
		}
	case conference.StatusDisconnecting, conference.StatusReconnecting:
		m.dispatcher.Submit(ctx, pipes.OpStop)
	}

	if m.sink != nil {
		m.sink.StatusChanged(ev, m.sc.State, m.sc.StatusText)
	}
}
