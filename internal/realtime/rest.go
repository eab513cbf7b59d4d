package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"zoom-kiosk/internal/protocol"
	"zoom-kiosk/internal/recorder"
)

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.backend.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.backend.Config(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	skipped, err := s.backend.Reconnect(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, protocol.ErrReconnectFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.ReconnectResultPayload{Skipped: skipped})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.StartRecording(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording"})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	var req protocol.RecordingStopPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, "invalid request body")
		return
	}

	res, err := s.backend.StopRecording(r.Context(), req.ShouldSave())
	if errors.Is(err, recorder.ErrNotRecording) {
		writeError(w, http.StatusConflict, protocol.ErrNotRecording, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrSaveFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.RecordingStoppedPayload{Saved: res.Saved, ActionCount: res.ActionCount})
}

func (s *Server) handleRecordClick(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, "invalid request body")
		return
	}
	p, err := protocol.DecodeRecordClick(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, err.Error())
		return
	}

	if err := s.backend.RecordClick(r.Context(), clickFromPayload(p)); err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.backend.RecordingStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recordingStatusPayload(st))
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.LoadRecording(r.Context())
	if errors.Is(err, recorder.ErrNoRecording) {
		writeError(w, http.StatusNotFound, protocol.ErrNoRecording, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteRecording(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
