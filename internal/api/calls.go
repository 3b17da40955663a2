package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/readysetinsure/dashboard/internal/callwatch"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/processor"
	"github.com/readysetinsure/dashboard/internal/vapi"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type callRequest struct {
	Template string `json:"template"`
	Notes    string `json:"notes,omitempty"`
}

// POST /api/v1/customers/{policy}/calls
func (s *Server) startCall(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil || !s.calls.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "outbound calls are not configured")
		return
	}

	var req callRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Template == "" {
		writeError(w, http.StatusBadRequest, "template is required")
		return
	}

	policy := chi.URLParam(r, "policy")
	call, err := s.calls.StartCall(r.Context(), policy, req.Template, req.Notes)
	switch {
	case err == nil:
	case errors.Is(err, vapi.ErrTemplateNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
		return
	case errors.Is(err, processor.ErrNoPhone):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, processor.ErrCallsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		s.logger.Error("failed to start call", "policy_number", policy, "error", err)
		writeError(w, http.StatusBadGateway, "failed to start call")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"call_id": call.ID,
		"status":  call.Status,
		"stream":  "/api/v1/calls/" + call.ID + "/stream",
	})
}

// GET /api/v1/calls/templates lists templates even when calling is disabled.
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeJSON(w, http.StatusOK, map[string]any{"templates": []any{}})
		return
	}
	tpls := s.calls.Templates()
	out := make([]map[string]string, 0, len(tpls))
	for _, key := range tpls.Keys() {
		out = append(out, map[string]string{
			"key":         key,
			"name":        tpls[key].Name,
			"description": tpls[key].Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

// GET /api/v1/calls/{id}/stream upgrades to a websocket and pushes each
// status update as JSON until the watch finishes.
func (s *Server) streamCall(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "outbound calls are not configured")
		return
	}

	callID := chi.URLParam(r, "id")
	updates, unsubscribe, err := s.stream.Subscribe(callID)
	if errors.Is(err, callwatch.ErrNotWatching) {
		writeError(w, http.StatusNotFound, "call is not being watched")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "call_id", callID, "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case u, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "watch finished"))
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				s.logger.Debug("websocket write failed", "call_id", callID, "error", err)
				return
			}
		case <-gone:
			return
		}
	}
}

// POST /api/v1/calls/{id}/stop
func (s *Server) stopCall(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "outbound calls are not configured")
		return
	}

	callID := chi.URLParam(r, "id")
	if err := s.stream.Stop(callID); err != nil {
		if errors.Is(err, callwatch.ErrNotWatching) {
			writeError(w, http.StatusNotFound, "call is not being watched")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// POST /callhook receives Vapi server messages.
func (s *Server) callhook(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil || !s.calls.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "outbound calls are not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	msgType, err := s.calls.HandleWebhook(r.Context(), body)
	if errors.Is(err, processor.ErrBadWebhook) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("webhook processing failed", "type", msgType, "error", err)
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received", "type": msgType})
}
