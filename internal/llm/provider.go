package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// Role values used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the ordered prompt sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Response carries the reply text. Providers fall back to the raw response
// body when it has no recognizable text field.
type Response struct {
	Text string `json:"text"`
}

// Provider is a language-model backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Config controls provider construction.
type Config struct {
	Mode    string
	HTTPURL string
	// OpenAI is used for the openai mode; nil means no API key was configured.
	OpenAI *openai.Client
}

func NewProvider(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoProvider(cfg)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("OPENAI_API_KEY is required for openai mode")
		}
		return NewOpenAIProvider(*cfg.OpenAI), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("LLM_HTTP_URL is required for http mode")
		}
		return NewHTTPProvider(cfg.HTTPURL), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider mode %q", cfg.Mode)
	}
}

// ErrNoProvider is returned by auto mode when neither an OpenAI key nor an
// HTTP endpoint is configured. Mock replies end up in long-term memory, so
// the mock is only used when asked for by name.
var ErrNoProvider = errors.New("no language model configured: set OPENAI_API_KEY, LLM_HTTP_URL or LLM_PROVIDER=mock")

func newAutoProvider(cfg Config) (Provider, error) {
	if cfg.OpenAI != nil {
		return NewOpenAIProvider(*cfg.OpenAI), nil
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPProvider(cfg.HTTPURL), nil
	}
	return nil, ErrNoProvider
}
