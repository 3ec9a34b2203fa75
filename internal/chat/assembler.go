package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/recall/internal/history"
	"github.com/ent0n29/recall/internal/llm"
	"github.com/ent0n29/recall/internal/logging"
	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/observability"
)

const (
	DefaultTopK          = 4
	DefaultHistoryWindow = 12
	DefaultSystemPrompt  = "You are a helpful assistant with memory."
)

// AssemblerConfig sets how much context goes into one prompt.
type AssemblerConfig struct {
	TopK          int
	HistoryWindow int
	SystemPrompt  string
	// InjectMemories adds retrieved memories to the prompt as a second
	// system message. Off by default: memories are citations only.
	InjectMemories bool
}

func (c AssemblerConfig) withDefaults() AssemblerConfig {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return c
}

// Context is the assembled prompt plus the memories retrieved for it.
type Context struct {
	Messages []llm.Message
	Memories []memory.Retrieved
}

// Assembler builds model input from long-term memory and recent history.
// It only reads from the stores.
type Assembler struct {
	cfg     AssemblerConfig
	memory  memory.Store
	history history.Store
	logger  *log.Logger
	metrics *observability.Metrics
}

func NewAssembler(cfg AssemblerConfig, mem memory.Store, hist history.Store, logger *log.Logger, metrics *observability.Metrics) *Assembler {
	if hist == nil {
		hist = history.Disabled{}
	}
	return &Assembler{
		cfg:     cfg.withDefaults(),
		memory:  mem,
		history: hist,
		logger:  logging.OrDiscard(logger).With("component", "assembler"),
		metrics: metrics,
	}
}

func (a *Assembler) Assemble(ctx context.Context, sessionID, userMessage string) (Context, error) {
	memories := a.retrieve(ctx, userMessage)

	start := time.Now()
	turns, err := a.history.ReadAll(ctx, sessionID)
	a.metrics.ObserveHistoryOp("read", err)
	a.metrics.ObserveStage(observability.StageHistory, time.Since(start))
	if err != nil {
		return Context{}, turnError(OpReadHistory, sessionID, err)
	}
	if len(turns) > a.cfg.HistoryWindow {
		turns = turns[len(turns)-a.cfg.HistoryWindow:]
	}

	msgs := make([]llm.Message, 0, len(turns)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.cfg.SystemPrompt})
	if a.cfg.InjectMemories && len(memories) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: memoryBlock(memories)})
	}
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == history.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userMessage})

	return Context{Messages: msgs, Memories: memories}, nil
}

// retrieve never fails the turn: an unreachable embedding backend yields
// no memories.
func (a *Assembler) retrieve(ctx context.Context, query string) []memory.Retrieved {
	if a.memory == nil {
		return []memory.Retrieved{}
	}
	start := time.Now()
	found, err := a.memory.Search(ctx, query, a.cfg.TopK)
	a.metrics.ObserveMemoryOp("search", err)
	a.metrics.ObserveStage(observability.StageRetrieve, time.Since(start))
	if err != nil {
		a.logger.Warn("memory search failed, continuing without memories", "err", err)
		a.metrics.ObserveIndicator("memory_degraded")
		return []memory.Retrieved{}
	}
	if found == nil {
		return []memory.Retrieved{}
	}
	return found
}

func memoryBlock(memories []memory.Retrieved) string {
	var b strings.Builder
	b.WriteString("Relevant memories from earlier conversations:")
	for i, m := range memories {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Content)
	}
	return b.String()
}
