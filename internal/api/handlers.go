// Package api provides HTTP handlers for DuetLoop endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/duetloop/duetloop/internal/models"
)

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startHandler: processing start request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.startHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := s.sched.Start()
	slog.Info("Server.startHandler: conversation started")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation started", resp))
}

func (s *Server) nextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.nextHandler: processing poll request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.nextHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	turn, err := s.sched.Poll(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrConversationNotActive) {
			slog.Warn("Server.nextHandler: poll against inactive conversation")
			writeJSONResponse(w, http.StatusConflict, models.Error("Conversation is not active"))
			return
		}
		slog.Error("Server.nextHandler: poll failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to poll for next turn"))
		return
	}
	if turn == nil {
		writeJSONResponse(w, http.StatusOK, models.WaitingResponse{Waiting: true})
		return
	}

	slog.Debug("Server.nextHandler: turn delivered", "turn_number", turn.TurnNumber, "speaker", turn.Speaker)
	writeJSONResponse(w, http.StatusOK, turn)
}

func (s *Server) ackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.ackHandler: processing acknowledgement", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.ackHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// The body is optional; acknowledgements are advisory and must be safe to
	// send redundantly or without a turn number.
	var req models.AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		slog.Warn("Server.ackHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	s.sched.Acknowledge(req.TurnNumber)
	writeJSONResponse(w, http.StatusOK, models.Acknowledged())
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.statusHandler: processing status request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.statusHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(s.sched.Status()))
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.stopHandler: processing stop request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.stopHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := s.sched.Stop()
	slog.Info("Server.stopHandler: conversation stopped")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation stopped", resp))
}
