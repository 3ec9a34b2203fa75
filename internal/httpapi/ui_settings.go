package httpapi

import "net/http"

type uiSettingsResponse struct {
	Model          string `json:"model"`
	TopK           int    `json:"top_k"`
	HistoryWindow  int    `json:"history_window"`
	InjectMemories bool   `json:"inject_memories"`
	SourceLimit    int    `json:"source_text_limit"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		Model:          s.cfg.Model,
		TopK:           s.cfg.TopK,
		HistoryWindow:  s.cfg.HistoryWindow,
		InjectMemories: s.cfg.InjectMemories,
		SourceLimit:    sourceTextLimit,
	})
}
