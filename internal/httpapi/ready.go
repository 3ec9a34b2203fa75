package httpapi

import (
	"fmt"
	"net/http"
	"strings"
)

type readyCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type readyResponse struct {
	Status         string       `json:"status"`
	LLMProvider    string       `json:"llm_provider"`
	HistoryMode    string       `json:"history_mode"`
	HistoryEnabled bool         `json:"history_enabled"`
	MemoryCount    int          `json:"memory_count"`
	ActiveSessions int          `json:"active_sessions"`
	Checks         []readyCheck `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "chat backend not configured")
		return
	}

	provider := s.orchestrator.ProviderName()
	mode := s.orchestrator.HistoryMode()
	count := s.orchestrator.MemoryCount()

	checks := make([]readyCheck, 0, 3)
	if provider == "mock" {
		checks = append(checks, readyCheck{
			ID:     "llm",
			Status: "warn",
			Label:  "Language model",
			Detail: "mock replies",
			Fix:    "Set OPENAI_API_KEY or LLM_HTTP_URL to use a real model.",
		})
	} else {
		checks = append(checks, readyCheck{
			ID:     "llm",
			Status: "ok",
			Label:  "Language model",
			Detail: fmt.Sprintf("%s (%s)", provider, s.cfg.Model),
		})
	}

	switch mode {
	case "disabled":
		checks = append(checks, readyCheck{
			ID:     "history",
			Status: "warn",
			Label:  "Short-term history",
			Detail: "disabled",
			Fix:    "Set REDIS_URL to keep per-session transcripts.",
		})
	case "in-memory":
		checks = append(checks, readyCheck{
			ID:     "history",
			Status: "warn",
			Label:  "Short-term history",
			Detail: "in-memory only",
			Fix:    "Use a redis:// or postgres:// REDIS_URL to survive restarts.",
		})
	default:
		checks = append(checks, readyCheck{
			ID:     "history",
			Status: "ok",
			Label:  "Short-term history",
			Detail: mode,
		})
	}

	if count < 0 {
		checks = append(checks, readyCheck{
			ID:     "memory",
			Status: "warn",
			Label:  "Long-term memory",
			Detail: "not configured",
		})
	} else {
		detail := fmt.Sprintf("%d records", count)
		if dir := strings.TrimSpace(s.cfg.ChromaDir); dir != "" {
			detail += " in " + dir
		}
		checks = append(checks, readyCheck{
			ID:     "memory",
			Status: "ok",
			Label:  "Long-term memory",
			Detail: detail,
		})
	}

	respondJSON(w, http.StatusOK, readyResponse{
		Status:         "ready",
		LLMProvider:    provider,
		HistoryMode:    mode,
		HistoryEnabled: mode != "disabled",
		MemoryCount:    count,
		ActiveSessions: s.sessions.ActiveCount(),
		Checks:         checks,
	})
}
