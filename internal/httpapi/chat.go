package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/ent0n29/recall/internal/chat"
	"github.com/ent0n29/recall/internal/llm"
	"github.com/ent0n29/recall/internal/policy"
	"github.com/ent0n29/recall/internal/protocol"
)

const sourceTextLimit = protocol.SourceTextLimit

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "chat backend not configured")
		return
	}
	var req protocol.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateTurn(req.SessionID, req.Message); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.runTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		status, code, msg := s.classifyError(err)
		respondError(w, status, code, msg)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "chat backend not configured")
		return
	}
	var req protocol.ClearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.clear(r.Context(), req.SessionID); err != nil {
		status, code, msg := s.classifyError(err)
		respondError(w, status, code, msg)
		return
	}
	respondJSON(w, http.StatusOK, protocol.Cleared{OK: true})
}

type historyResponse struct {
	SessionID string `json:"session_id"`
	Turns     any    `json:"turns"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "chat backend not configured")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if err := policy.CheckSessionID(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	turns, err := s.orchestrator.History(r.Context(), sessionID)
	if err != nil {
		status, code, msg := s.classifyError(err)
		respondError(w, status, code, msg)
		return
	}
	respondJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Turns: turns})
}

func validateTurn(sessionID, message string) error {
	if err := policy.CheckSessionID(sessionID); err != nil {
		return err
	}
	return policy.CheckMessage(message)
}

func (s *Server) runTurn(ctx context.Context, sessionID, message string) (protocol.ChatReply, error) {
	res, err := s.orchestrator.HandleTurn(ctx, sessionID, message)
	if err != nil {
		return protocol.ChatReply{}, err
	}
	if sess := s.sessions.RecordTurn(sessionID); sess.Turns == 1 {
		s.metrics.ObserveSessionEvent("started", s.sessions.ActiveCount())
	}
	sources := make([]protocol.Source, 0, len(res.Memories))
	for i, m := range res.Memories {
		sources = append(sources, protocol.NewSource(i+1, m.Score, m.Content))
	}
	return protocol.ChatReply{Reply: res.Reply, Sources: sources}, nil
}

// clear empties a session's history. An id that chat refuses can never have
// history, so clearing it succeeds without touching the store.
func (s *Server) clear(ctx context.Context, sessionID string) error {
	if policy.CheckSessionID(sessionID) != nil {
		return nil
	}
	if err := s.orchestrator.Clear(ctx, sessionID); err != nil {
		return err
	}
	s.sessions.RecordClear(sessionID)
	s.metrics.ObserveSessionEvent("cleared", s.sessions.ActiveCount())
	return nil
}

// classifyError maps a turn failure to an HTTP status, a short code and a
// message with credentials removed.
func (s *Server) classifyError(err error) (status int, code string, message string) {
	message = policy.RedactSecrets(err.Error())
	s.logger.Error("request failed", "err", message)

	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		if perr.Retryable {
			return http.StatusServiceUnavailable, "provider_unavailable", message
		}
		return http.StatusBadGateway, "provider_error", message
	}

	var turnErr *chat.TurnError
	if errors.As(err, &turnErr) {
		switch turnErr.Op {
		case chat.OpComplete:
			if errors.Is(err, context.DeadlineExceeded) {
				return http.StatusServiceUnavailable, "provider_timeout", message
			}
			return http.StatusBadGateway, "provider_error", message
		case chat.OpReadHistory, chat.OpAppendHistory, chat.OpClear:
			return http.StatusServiceUnavailable, "history_unavailable", message
		case chat.OpUpsertMemory:
			return http.StatusInternalServerError, "memory_write_failed", message
		}
	}
	return http.StatusInternalServerError, "internal", message
}
