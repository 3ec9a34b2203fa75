package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider gives deterministic local replies when no model is configured.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: buildMockReply(req.Messages)}, nil
}

func buildMockReply(msgs []Message) string {
	var last string
	prior := 0
	for i, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		if i == len(msgs)-1 {
			last = strings.TrimSpace(m.Content)
			continue
		}
		prior++
	}
	if last == "" {
		last = "(nothing)"
	}
	if prior == 0 {
		return fmt.Sprintf("I heard you: %s", last)
	}
	return fmt.Sprintf("I heard you: %s\nI also remember %d earlier messages.", last, prior)
}
