// Package recorder folds captured clicks into an interaction recording and
// hands finished recordings to a Store.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zoom-kiosk/internal/capture"
)

// ErrNotRecording is returned by Stop when no recording is in progress.
var ErrNotRecording = errors.New("not recording")

// Action is one persisted click, positioned relative to the recording start.
type Action struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Button   capture.Button `json:"button"`
	Type     string         `json:"type"`
	OffsetMs int64          `json:"offsetMs"`
}

// Recording is a saved interaction log.
type Recording struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	StoppedAt time.Time `json:"stoppedAt"`
	Degraded  bool      `json:"degraded,omitempty"`
	Actions   []Action  `json:"actions"`
}

// Status is the snapshot reported to the UI.
type Status struct {
	IsRecording bool `json:"isRecording"`
	ActionCount int  `json:"actionCount"`
	Degraded    bool `json:"degraded,omitempty"`
}

// StopResult describes how a recording ended.
type StopResult struct {
	Saved       bool
	ActionCount int
	Recording   *Recording // nil unless saved
}

// Recorder accumulates click events between Start and Stop.
type Recorder struct {
	store Store
	now   func() time.Time

	mu        sync.Mutex
	id        string
	recording bool
	saved     bool
	unsaved   bool // stopped with save, but the store failed
	degraded  bool
	startedAt time.Time
	stoppedAt time.Time
	actions   []capture.ClickEvent
}

// New creates a recorder persisting to store.
func New(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Start discards any previous log and begins recording.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.id = uuid.New().String()
	r.recording = true
	r.saved = false
	r.unsaved = false
	r.degraded = false
	r.startedAt = r.now().UTC()
	r.actions = nil
}

// RecordEvent appends evt while recording and reports whether it was kept.
// Events arriving while idle are discarded.
func (r *Recorder) RecordEvent(evt capture.ClickEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return false
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = r.now().UTC()
	}
	if evt.Kind == "" {
		evt.Kind = capture.KindClick
	}
	r.actions = append(r.actions, evt)
	return true
}

// MarkDegraded flags the current recording as having lost its capture
// source. The log itself is kept.
func (r *Recorder) MarkDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.degraded = true
	}
}

// Stop ends the recording. With save the log is written to the store;
// otherwise it is discarded. On a store failure the error is returned and
// the log stays in memory; a later Stop retries the save (or discards the
// log when save is false).
func (r *Recorder) Stop(ctx context.Context, save bool) (StopResult, error) {
	r.mu.Lock()
	switch {
	case r.recording:
		r.recording = false
		r.stoppedAt = r.now().UTC()
	case r.unsaved:
	default:
		r.mu.Unlock()
		return StopResult{}, ErrNotRecording
	}

	if !save {
		r.actions = nil
		r.unsaved = false
		r.mu.Unlock()
		return StopResult{}, nil
	}

	rec := r.snapshotLocked()
	r.mu.Unlock()

	var err error
	if r.store == nil {
		err = fmt.Errorf("save recording: no store configured")
	} else if serr := r.store.Save(ctx, rec); serr != nil {
		err = fmt.Errorf("save recording: %w", serr)
	}

	r.mu.Lock()
	if r.id == rec.ID {
		r.unsaved = err != nil
		r.saved = err == nil
	}
	r.mu.Unlock()

	if err != nil {
		return StopResult{ActionCount: len(rec.Actions)}, err
	}
	return StopResult{Saved: true, ActionCount: len(rec.Actions), Recording: rec}, nil
}

// Status returns the current snapshot without side effects.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		IsRecording: r.recording,
		ActionCount: len(r.actions),
		Degraded:    r.degraded,
	}
}

// Saved reports whether the last recording was persisted.
func (r *Recorder) Saved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// Load returns the persisted recording, or ErrNoRecording.
func (r *Recorder) Load(ctx context.Context) (*Recording, error) {
	if r.store == nil {
		return nil, ErrNoRecording
	}
	return r.store.Load(ctx)
}

// Delete removes the persisted recording.
func (r *Recorder) Delete(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Delete(ctx)
}

func (r *Recorder) snapshotLocked() *Recording {
	rec := &Recording{
		ID:        r.id,
		StartedAt: r.startedAt,
		StoppedAt: r.stoppedAt,
		Degraded:  r.degraded,
		Actions:   make([]Action, 0, len(r.actions)),
	}
	for _, evt := range r.actions {
		if evt.Kind != capture.KindClick {
			continue
		}
		offset := evt.Timestamp.Sub(r.startedAt).Milliseconds()
		if offset < 0 {
			offset = 0
		}
		rec.Actions = append(rec.Actions, Action{
			X:        evt.X,
			Y:        evt.Y,
			Button:   evt.Button,
			Type:     evt.Kind,
			OffsetMs: offset,
		})
	}
	return rec
}
