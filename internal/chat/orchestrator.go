package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/recall/internal/history"
	"github.com/ent0n29/recall/internal/llm"
	"github.com/ent0n29/recall/internal/logging"
	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/observability"
	"github.com/ent0n29/recall/internal/policy"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2

	logPreviewRunes = 80
)

// Config controls a chat turn.
type Config struct {
	Model       string
	Temperature float64
	// LLMTimeout bounds one model call. Zero means no extra deadline.
	LLMTimeout time.Duration
	Assembler  AssemblerConfig
}

// Result is the outcome of a successful turn.
type Result struct {
	Reply    string
	Memories []memory.Retrieved
}

// Orchestrator runs one chat turn end to end: assemble, complete, persist.
//
// Both stores are written once per turn without a shared transaction. If the
// memory upsert fails after history was appended, history keeps the turn.
// Concurrent turns on the same session are not serialized.
type Orchestrator struct {
	cfg       Config
	provider  llm.Provider
	memory    memory.Store
	history   history.Store
	assembler *Assembler
	logger    *log.Logger
	metrics   *observability.Metrics
}

func NewOrchestrator(cfg Config, provider llm.Provider, mem memory.Store, hist history.Store, logger *log.Logger, metrics *observability.Metrics) *Orchestrator {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if hist == nil {
		hist = history.Disabled{}
	}
	logger = logging.OrDiscard(logger)
	return &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		memory:    mem,
		history:   hist,
		assembler: NewAssembler(cfg.Assembler, mem, hist, logger, metrics),
		logger:    logger.With("component", "chat"),
		metrics:   metrics,
	}
}

func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userMessage string) (res Result, err error) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveTurn(time.Since(started), err)
	}()

	assembled, err := o.assembler.Assemble(ctx, sessionID, userMessage)
	if err != nil {
		return Result{}, err
	}

	reply, err := o.complete(ctx, assembled.Messages)
	if err != nil {
		o.logger.Error("model call failed", "session_id", sessionID, "err", err)
		return Result{}, turnError(OpComplete, sessionID, err)
	}

	if err := o.persist(ctx, sessionID, userMessage, reply); err != nil {
		o.logger.Error("persisting turn failed", "session_id", sessionID, "err", err)
		return Result{}, err
	}

	o.logger.Debug("turn complete",
		"session_id", sessionID,
		"message", policy.LogPreview(userMessage, logPreviewRunes),
		"memories", len(assembled.Memories),
		"prompt_messages", len(assembled.Messages),
		"elapsed", time.Since(started),
	)
	return Result{Reply: reply, Memories: assembled.Memories}, nil
}

func (o *Orchestrator) complete(ctx context.Context, msgs []llm.Message) (string, error) {
	callCtx := ctx
	if o.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.LLMTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.provider.Complete(callCtx, llm.Request{
		Model:       o.cfg.Model,
		Messages:    msgs,
		Temperature: o.cfg.Temperature,
	})
	o.metrics.ObserveStage(observability.StageComplete, time.Since(start))
	if err != nil {
		code := "transport"
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			code = perr.Code()
		} else if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		o.metrics.ObserveProviderError(o.provider.Name(), code)
		return "", err
	}
	return resp.Text, nil
}

func (o *Orchestrator) persist(ctx context.Context, sessionID, userMessage, reply string) error {
	start := time.Now()
	defer func() {
		o.metrics.ObserveStage(observability.StagePersist, time.Since(start))
	}()

	for _, turn := range []history.Turn{
		{Role: history.RoleUser, Content: userMessage},
		{Role: history.RoleAssistant, Content: reply},
	} {
		err := o.history.Append(ctx, sessionID, turn)
		o.metrics.ObserveHistoryOp("append", err)
		if err != nil {
			return turnError(OpAppendHistory, sessionID, err)
		}
	}

	if o.memory == nil {
		return nil
	}
	err := o.memory.Upsert(ctx, []memory.Record{
		{Role: string(history.RoleUser), Content: userMessage},
		{Role: string(history.RoleAssistant), Content: reply},
	})
	o.metrics.ObserveMemoryOp("upsert", err)
	if err != nil {
		return turnError(OpUpsertMemory, sessionID, err)
	}
	return nil
}

// Clear drops the short-term history of a session. Long-term memory is kept.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) error {
	err := o.history.Clear(ctx, sessionID)
	o.metrics.ObserveHistoryOp("clear", err)
	if err != nil {
		return turnError(OpClear, sessionID, err)
	}
	return nil
}

// History returns the stored transcript of a session, oldest first.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]history.Turn, error) {
	turns, err := o.history.ReadAll(ctx, sessionID)
	o.metrics.ObserveHistoryOp("read", err)
	if err != nil {
		return nil, turnError(OpReadHistory, sessionID, err)
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	return turns, nil
}

func (o *Orchestrator) ProviderName() string { return o.provider.Name() }

func (o *Orchestrator) HistoryMode() string { return o.history.Mode() }

// MemoryCount reports the number of long-term records, or -1 without a store.
func (o *Orchestrator) MemoryCount() int {
	if o.memory == nil {
		return -1
	}
	return o.memory.Count()
}
