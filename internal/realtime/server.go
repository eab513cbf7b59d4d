// Package realtime exposes the kiosk controller to the UI over WebSocket
// and REST.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/recorder"
)

const (
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	requestTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The UI is served locally.
	},
}

// Backend is the controller surface the bridge drives.
type Backend interface {
	Status(ctx context.Context) (protocol.StatusUpdatePayload, error)
	Config(ctx context.Context) (protocol.ConfigPayload, error)
	Reconnect(ctx context.Context) (skipped bool, err error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context, save bool) (recorder.StopResult, error)
	RecordClick(ctx context.Context, evt capture.ClickEvent) error
	RecordingStatus(ctx context.Context) (recorder.Status, error)
	LoadRecording(ctx context.Context) (*recorder.Recording, error)
	DeleteRecording(ctx context.Context) error
}

// Server manages WebSocket connections and routes requests to the backend.
type Server struct {
	backend   Backend
	hub       *Hub
	staticDir string
	logger    zerolog.Logger
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   <-chan []byte
	server *Server
}

// New creates a new realtime server publishing through hub.
func New(backend Backend, hub *Hub, staticDir string, logger zerolog.Logger) *Server {
	return &Server{
		backend:   backend,
		hub:       hub,
		staticDir: staticDir,
		logger:    logger,
	}
}

// Hub returns the notification hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	mux.HandleFunc("GET /status", s.handleGetStatus)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /reconnect", s.handleReconnect)
	mux.HandleFunc("POST /recording/start", s.handleStartRecording)
	mux.HandleFunc("POST /recording/stop", s.handleStopRecording)
	mux.HandleFunc("POST /recording/click", s.handleRecordClick)
	mux.HandleFunc("GET /recording/status", s.handleRecordingStatus)
	mux.HandleFunc("GET /recording", s.handleGetRecording)
	mux.HandleFunc("DELETE /recording", s.handleDeleteRecording)

	// Static file serving.
	if s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		mux.Handle("/", fileServer)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	id, send := s.hub.Subscribe(defaultSubscriberBufCap)
	c := &client{
		id:     id,
		conn:   conn,
		send:   send,
		server: s,
	}
	s.logger.Debug().Str("client", id).Msg("client connected")

	// Send current state to the new client.
	s.sendSnapshot(c)

	go c.writePump()
	go c.readPump()
}

func (s *Server) sendSnapshot(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if st, err := s.backend.Status(ctx); err == nil {
		s.reply(c, "", protocol.TypeStatusUpdate, st)
	}
	if rs, err := s.backend.RecordingStatus(ctx); err == nil {
		s.reply(c, "", protocol.TypeRecordingStatus, recordingStatusPayload(rs))
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.hub.Unsubscribe(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, "", protocol.ErrInvalidMessage, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.TypeStatusGet:
		st, err := s.backend.Status(ctx)
		if err != nil {
			s.sendError(c, msg.ID, protocol.ErrInternal, err.Error())
			return
		}
		s.reply(c, msg.ID, protocol.TypeStatusUpdate, st)

	case protocol.TypeConfigGet:
		cfg, err := s.backend.Config(ctx)
		if err != nil {
			s.sendError(c, msg.ID, protocol.ErrInternal, err.Error())
			return
		}
		s.reply(c, msg.ID, protocol.TypeConfig, cfg)

	case protocol.TypeReconnect:
		skipped, err := s.backend.Reconnect(ctx)
		result := protocol.ReconnectResultPayload{Skipped: skipped}
		if err != nil {
			result.Error = err.Error()
		}
		s.reply(c, msg.ID, protocol.TypeReconnectResult, result)

	case protocol.TypeRecordingStart:
		if err := s.backend.StartRecording(ctx); err != nil {
			s.sendError(c, msg.ID, protocol.ErrInternal, err.Error())
		}

	case protocol.TypeRecordingStop:
		p, _ := protocol.DecodeRecordingStop(msg.Payload)
		if _, err := s.backend.StopRecording(ctx, p.ShouldSave()); err != nil {
			s.sendError(c, msg.ID, errorCode(err), err.Error())
		}

	case protocol.TypeRecordingRecordClick:
		p, _ := protocol.DecodeRecordClick(msg.Payload)
		if err := s.backend.RecordClick(ctx, clickFromPayload(p)); err != nil {
			s.sendError(c, msg.ID, protocol.ErrInternal, err.Error())
		}
	}
}

func (s *Server) reply(c *client, id, msgType string, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return
	}
	if !s.hub.SendTo(c.id, msg.Reply(id)) {
		s.logger.Debug().Str("client", c.id).Str("type", msgType).Msg("reply dropped")
	}
}

func (s *Server) sendError(c *client, id, code, message string) {
	msg, _ := protocol.NewErrorMessage(code, message)
	s.hub.SendTo(c.id, msg.Reply(id))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, recorder.ErrNotRecording):
		return protocol.ErrNotRecording
	case errors.Is(err, recorder.ErrNoRecording):
		return protocol.ErrNoRecording
	}
	return protocol.ErrSaveFailed
}

func recordingStatusPayload(st recorder.Status) protocol.RecordingStatusPayload {
	return protocol.RecordingStatusPayload{
		IsRecording: st.IsRecording,
		ActionCount: st.ActionCount,
		Degraded:    st.Degraded,
	}
}

func clickFromPayload(p protocol.RecordClickPayload) capture.ClickEvent {
	button := capture.Button(p.Button)
	if button == "" {
		button = capture.ButtonLeft
	}
	evt := capture.ClickEvent{
		Button:    button,
		Kind:      capture.KindClick,
		Timestamp: time.Now().UTC(),
	}
	if p.X != nil {
		evt.X = *p.X
	}
	if p.Y != nil {
		evt.Y = *p.Y
	}
	return evt
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorPayload{Code: code, Message: message})
}
