package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/recall/internal/chat"
	"github.com/ent0n29/recall/internal/config"
	"github.com/ent0n29/recall/internal/history"
	"github.com/ent0n29/recall/internal/httpapi"
	"github.com/ent0n29/recall/internal/logging"
	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/observability"
	"github.com/ent0n29/recall/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *chat.Orchestrator
	Sessions     *session.Manager
	Metrics      *observability.Metrics
	Embeddings   string

	// Cleanup should be called on shutdown to release the stores.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*BuildResult, error) {
	logger = logging.OrDiscard(logger)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	client := newOpenAIClient(cfg)

	embedder, embeddingMode, err := resolveEmbedder(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	provider, err := resolveProvider(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	memoryStore, err := memory.NewChromemStore(memory.ChromemConfig{
		Dir:              cfg.ChromaDir,
		Collection:       cfg.MemoryCollection,
		Compress:         cfg.MemoryCompress,
		ExportPath:       cfg.MemoryExportPath,
		EmbeddingTimeout: cfg.EmbeddingTimeout,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}
	logger.Info("long-term memory ready", "collection", memoryStore.Collection(), "documents", memoryStore.Count())

	historyStore, err := history.NewStore(ctx, cfg.HistoryURL, history.Options{TTL: cfg.HistoryTTL})
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("history store init failed: %w", err)
	}
	if !historyStore.Enabled() {
		logger.Warn("REDIS_URL not set, short-term history is disabled")
	}

	orchestrator := chat.NewOrchestrator(chat.Config{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		LLMTimeout:  cfg.LLMTimeout,
		Assembler: chat.AssemblerConfig{
			TopK:           cfg.TopK,
			HistoryWindow:  cfg.HistoryWindow,
			SystemPrompt:   cfg.SystemPrompt,
			InjectMemories: cfg.InjectMemories,
		},
	}, provider, memoryStore, historyStore, logger, metrics)

	sessions := session.NewManager(cfg.SessionIdleTTL)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.ObserveSessionEvent("expired", sessions.ActiveCount())
		logger.Debug("session idle", "session_id", s.ID, "turns", s.Turns)
	})

	api := httpapi.New(cfg, orchestrator, sessions, metrics, logger)

	logger.Info("chat backend ready",
		"llm", provider.Name(),
		"model", cfg.Model,
		"embeddings", embeddingMode,
		"history", historyStore.Mode(),
		"memories", memoryStore.Count(),
	)

	cleanup := func() error {
		var errs []string
		if err := historyStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := memoryStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Sessions:     sessions,
		Metrics:      metrics,
		Embeddings:   embeddingMode,
		Cleanup:      cleanup,
	}, nil
}
