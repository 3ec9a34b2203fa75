package memory

import "context"

// Record is one unit of long-term memory before it is embedded.
type Record struct {
	Role    string
	Content string
}

// Retrieved is a record returned from a similarity query.
type Retrieved struct {
	Content string  `json:"content"`
	Role    string  `json:"role,omitempty"`
	Score   float64 `json:"score"`
}

// Store is the long-term memory backend.
type Store interface {
	// Upsert adds every record with non-blank content as a new document.
	Upsert(ctx context.Context, records []Record) error
	// Search returns at most k records ordered best match first.
	Search(ctx context.Context, query string, k int) ([]Retrieved, error)
	// Count returns the number of stored records.
	Count() int
	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IdentifiedEmbedder is implemented by embedders that can name the vector
// space they produce. Stores keep one collection per identity so vectors of
// different models or sizes never share an index.
type IdentifiedEmbedder interface {
	Identity() string
}
