package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ent0n29/recall/internal/config"
	"github.com/ent0n29/recall/internal/llm"
	"github.com/ent0n29/recall/internal/memory"
)

// hashEmbeddingDimensions sizes the offline embedder.
const hashEmbeddingDimensions = 384

// newOpenAIClient returns nil when no API key is configured. Retries are
// disabled so a failed call surfaces as a single provider error.
func newOpenAIClient(cfg config.Config) *openai.Client {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

func resolveEmbedder(cfg config.Config, client *openai.Client, logger *log.Logger) (memory.Embedder, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "openai":
		if client == nil {
			return nil, "", fmt.Errorf("EMBEDDING_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		return memory.NewOpenAIEmbedder(*client, cfg.EmbeddingModel), "openai", nil
	case "hash":
		return memory.NewHashEmbedder(hashEmbeddingDimensions), "hash", nil
	case "auto":
		if client != nil {
			return memory.NewOpenAIEmbedder(*client, cfg.EmbeddingModel), "openai", nil
		}
		logger.Warn("no OPENAI_API_KEY, using offline hash embeddings for long-term memory")
		return memory.NewHashEmbedder(hashEmbeddingDimensions), "hash", nil
	default:
		return nil, "", fmt.Errorf("invalid EMBEDDING_PROVIDER: %q (expected auto|openai|hash)", cfg.EmbeddingProvider)
	}
}

func resolveProvider(cfg config.Config, client *openai.Client, logger *log.Logger) (llm.Provider, error) {
	provider, err := llm.NewProvider(llm.Config{
		Mode:    cfg.LLMProvider,
		HTTPURL: cfg.LLMHTTPURL,
		OpenAI:  client,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider init failed: %w", err)
	}
	if provider.Name() == "mock" {
		logger.Warn("mock language model selected, replies are canned and still stored as memories")
	}
	return provider, nil
}
