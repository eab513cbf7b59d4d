package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zoom-kiosk/internal/protocol"
)

const defaultSubscriberBufCap = 256

// Hub fans notifications out to any number of subscribers. A subscriber
// that falls behind loses messages rather than stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan []byte
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]chan []byte),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. The channel is closed by Unsubscribe.
func (h *Hub) Subscribe(bufCap int) (string, <-chan []byte) {
	if bufCap <= 0 {
		bufCap = defaultSubscriberBufCap
	}
	id := uuid.New().String()
	ch := make(chan []byte, bufCap)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends msg to every subscriber.
func (h *Hub) Publish(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal notification")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- data:
		default:
			h.logger.Warn().Str("subscriber", id).Str("type", msg.Type).Msg("subscriber buffer full, dropping")
		}
	}
}

// Notify builds and publishes a message.
func (h *Hub) Notify(msgType string, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("build notification")
		return
	}
	h.Publish(msg)
}

// SendTo delivers msg to a single subscriber and reports whether it was queued.
func (h *Hub) SendTo(id string, msg *protocol.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.subs[id]
	if !ok {
		return false
	}
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}
