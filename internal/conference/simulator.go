package conference

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSimulatorStep = 200 * time.Millisecond
	subscriberBufCap     = 64
)

var _ Client = (*Simulator)(nil)

// Simulator is an in-process stand-in for the native SDK, used when the
// native addon is not available on the host. It walks through the same
// status sequence the SDK reports for join and leave.
type Simulator struct {
	mu            sync.Mutex
	initialized   bool
	authenticated bool
	inMeeting     bool
	rawData       *simRawData

	subMu       sync.RWMutex
	subscribers map[string]*simSubscriber

	step   time.Duration
	queue  chan StatusEvent
	done   chan struct{}
	closed sync.Once
}

type simSubscriber struct {
	ch   chan StatusEvent
	gone chan struct{}
	once sync.Once
}

// NewSimulator creates a simulator that spaces consecutive status
// notifications of one request by step. Zero selects the default.
func NewSimulator(step time.Duration) *Simulator {
	if step <= 0 {
		step = defaultSimulatorStep
	}
	s := &Simulator{
		subscribers: make(map[string]*simSubscriber),
		step:        step,
		queue:       make(chan StatusEvent, subscriberBufCap),
		done:        make(chan struct{}),
	}
	go s.deliver()
	return s
}

// Init marks the SDK initialized and creates the raw-data object.
func (s *Simulator) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	if s.rawData == nil {
		s.rawData = &simRawData{}
	}
	return nil
}

// Auth accepts any non-empty token once initialized.
func (s *Simulator) Auth(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrUninitialized
	}
	if token == "" {
		return ErrInvalidParameter
	}
	s.authenticated = true
	return nil
}

// Join reports Connecting followed by InMeeting.
func (s *Simulator) Join(ctx context.Context, params JoinParams) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrUninitialized
	}
	if !s.authenticated {
		s.mu.Unlock()
		return CodeUnauthenticated
	}
	if params.MeetingNumber == 0 {
		s.mu.Unlock()
		return ErrInvalidParameter
	}
	s.inMeeting = true
	s.mu.Unlock()

	go s.emitSequence(
		StatusEvent{Status: StatusConnecting},
		StatusEvent{Status: StatusInMeeting},
	)
	return nil
}

// Leave reports Disconnecting followed by Ended.
func (s *Simulator) Leave(ctx context.Context) error {
	s.mu.Lock()
	if !s.inMeeting {
		s.mu.Unlock()
		return CodeNotInMeeting
	}
	s.inMeeting = false
	s.mu.Unlock()

	go s.emitSequence(
		StatusEvent{Status: StatusDisconnecting},
		StatusEvent{Status: StatusEnded},
	)
	return nil
}

// Inject pushes an arbitrary status notification, as if the SDK had raised it.
func (s *Simulator) Inject(ev StatusEvent) {
	select {
	case s.queue <- ev:
	case <-s.done:
	}
}

// Subscribe registers a status listener.
func (s *Simulator) Subscribe() (<-chan StatusEvent, func()) {
	id := uuid.New().String()
	sub := &simSubscriber{
		ch:   make(chan StatusEvent, subscriberBufCap),
		gone: make(chan struct{}),
	}

	s.subMu.Lock()
	s.subscribers[id] = sub
	s.subMu.Unlock()

	return sub.ch, func() {
		sub.once.Do(func() { close(sub.gone) })
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// RawData returns the raw-data object, nil before Init.
func (s *Simulator) RawData() RawData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rawData == nil {
		return nil
	}
	return s.rawData
}

// Close stops delivery. Pending notifications are discarded.
func (s *Simulator) Close() {
	s.closed.Do(func() { close(s.done) })
}

func (s *Simulator) emitSequence(events ...StatusEvent) {
	for i, ev := range events {
		if i > 0 {
			select {
			case <-time.After(s.step):
			case <-s.done:
				return
			}
		}
		s.Inject(ev)
	}
}

// deliver forwards queued notifications to every subscriber in order.
func (s *Simulator) deliver() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			s.subMu.RLock()
			subs := make([]*simSubscriber, 0, len(s.subscribers))
			for _, sub := range s.subscribers {
				subs = append(subs, sub)
			}
			s.subMu.RUnlock()

			for _, sub := range subs {
				select {
				case sub.ch <- ev:
				case <-sub.gone:
				case <-s.done:
					return
				}
			}
		}
	}
}

// simRawData materializes the configured pipes as FIFOs where the host
// supports them.
type simRawData struct {
	mu      sync.Mutex
	params  PipeParams
	serving bool
	created []string
}

func (r *simRawData) SetPipeServeInitParam(params PipeParams) error {
	if params.VideoPipeName == "" || params.SharePipeName == "" || params.AudioPipeName == "" {
		return ErrInvalidParameter
	}
	if params.MaxReadLength <= 0 {
		params.MaxReadLength = DefaultMaxReadLength
	}
	r.mu.Lock()
	r.params = params
	r.mu.Unlock()
	return nil
}

func (r *simRawData) StartPipeServe() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params.VideoPipeName == "" {
		return ErrInvalidParameter
	}
	if r.serving {
		return nil
	}
	for _, name := range []string{r.params.VideoPipeName, r.params.SharePipeName, r.params.AudioPipeName} {
		path := pipePath(name)
		if err := makeFIFO(path); err != nil {
			r.removeCreated()
			return CodeServiceFailed
		}
		r.created = append(r.created, path)
	}
	r.serving = true
	return nil
}

func (r *simRawData) StopPipeServe() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeCreated()
	r.serving = false
	return nil
}

func (r *simRawData) removeCreated() {
	for _, path := range r.created {
		removeFIFO(path)
	}
	r.created = nil
}

func pipePath(name string) string {
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return name
	}
	return filepath.Join(os.TempDir(), name)
}
