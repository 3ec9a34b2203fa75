package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ent0n29/recall/internal/logging"
)

const (
	roleMetadataKey     = "role"
	embedderMetadataKey = "embedder"
)

// ErrDimensionMismatch is returned when an embedder produces vectors of a
// different length than the ones already indexed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ChromemConfig configures the chromem-go backed store.
type ChromemConfig struct {
	// Dir is the on-disk location of the database. Empty keeps everything
	// in process memory, which is only meant for tests.
	Dir        string
	Collection string
	Compress   bool
	// ExportPath, when set, receives a full snapshot of the database on Close.
	ExportPath       string
	EmbeddingTimeout time.Duration
}

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db         *chromem.DB
	col        *chromem.Collection
	name       string
	exportPath string
	compress   bool
	logger     *log.Logger
}

// NewChromemStore opens (or creates) the collection described by cfg.
// In persistent mode every document is written to disk before AddDocuments
// returns, so Upsert is durable once it reports success.
//
// An embedder implementing IdentifiedEmbedder gets its own collection,
// suffixed with its identity, so switching embedders never mixes vectors.
func NewChromemStore(cfg ChromemConfig, embedder Embedder, logger *log.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	name := strings.TrimSpace(cfg.Collection)
	if name == "" {
		name = "long_term_memory"
	}

	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(cfg.Dir) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Dir, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	var metadata map[string]string
	if ie, ok := embedder.(IdentifiedEmbedder); ok {
		if id := strings.TrimSpace(ie.Identity()); id != "" {
			name = name + "__" + id
			metadata = map[string]string{embedderMetadataKey: id}
		}
	}

	embed := embeddingFunc(embedder, cfg.EmbeddingTimeout)
	col, err := db.GetOrCreateCollection(name, metadata, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}

	return &ChromemStore{
		db:         db,
		col:        col,
		name:       name,
		exportPath: strings.TrimSpace(cfg.ExportPath),
		compress:   cfg.Compress,
		logger:     logging.OrDiscard(logger).With("component", "memory"),
	}, nil
}

// embeddingFunc adapts e for chromem-go. The first vector fixes the
// dimension; later vectors of another length are rejected instead of being
// indexed next to incompatible ones.
func embeddingFunc(e Embedder, timeout time.Duration) chromem.EmbeddingFunc {
	var dims atomic.Int64
	return func(ctx context.Context, text string) ([]float32, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		n := int64(len(vec))
		if !dims.CompareAndSwap(0, n) && dims.Load() != n {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, n, dims.Load())
		}
		return vec, nil
	}
}

func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:       uuid.NewString(),
			Content:  r.Content,
			Metadata: map[string]string{roleMetadataKey: r.Role},
		})
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	s.logger.Debug("stored memories", "collection", s.name, "count", len(docs), "total", s.col.Count())
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]Retrieved, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	n := min(k, s.col.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]Retrieved, 0, len(results))
	for _, r := range results {
		out = append(out, Retrieved{
			Content: r.Content,
			Role:    r.Metadata[roleMetadataKey],
			Score:   float64(r.Similarity),
		})
	}
	return out, nil
}

// Collection returns the name of the underlying chromem collection.
func (s *ChromemStore) Collection() string {
	return s.name
}

func (s *ChromemStore) Count() int {
	return s.col.Count()
}

// Close exports a snapshot when configured. Documents are already on disk
// in persistent mode, so there is nothing else to flush.
func (s *ChromemStore) Close() error {
	if s.exportPath == "" {
		return nil
	}
	if err := s.db.ExportToFile(s.exportPath, s.compress, ""); err != nil {
		return fmt.Errorf("export memory snapshot: %w", err)
	}
	s.logger.Info("exported memory snapshot", "path", s.exportPath)
	return nil
}
