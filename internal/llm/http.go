package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider forwards requests to a JSON chat endpoint.
//
// The endpoint receives the Request as JSON and may answer with a JSON object
// (text, reply, output, message, content or an OpenAI style choices array),
// an SSE/NDJSON stream of deltas, or plain text.
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, newProviderError(p.Name(), 0, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, newProviderError(p.Name(), res.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		text, err := consumeStreaming(res.Body)
		if err != nil {
			return Response{}, newProviderError(p.Name(), 0, err)
		}
		return Response{Text: text}, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, newProviderError(p.Name(), 0, fmt.Errorf("read response: %w", err))
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return Response{Text: strings.TrimSpace(string(body))}, nil
	}
	if text, ok := extractText(obj); ok {
		return Response{Text: text}, nil
	}
	return Response{Text: strings.TrimSpace(string(body))}, nil
}

// consumeStreaming joins the text deltas of an SSE or NDJSON body. A stream
// that never carries a recognised text field yields its raw payload lines.
func consumeStreaming(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		out       strings.Builder
		raw       []string
		extracted bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || isSSEField(line) {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}
		raw = append(raw, line)

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			out.WriteString(line)
			extracted = true
			continue
		}
		if delta, ok := extractText(obj); ok {
			out.WriteString(delta)
			extracted = true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	if !extracted {
		return strings.Join(raw, "\n"), nil
	}
	return out.String(), nil
}

// isSSEField reports SSE framing lines that carry no payload.
func isSSEField(line string) bool {
	for _, p := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// extractText looks for the reply in the shapes we know about.
func extractText(obj map[string]any) (string, bool) {
	for _, k := range []string{"text", "reply", "delta", "output", "content", "message"} {
		switch v := obj[k].(type) {
		case string:
			return v, true
		case map[string]any:
			for _, inner := range []string{"content", "text"} {
				if s, ok := v[inner].(string); ok {
					return s, true
				}
			}
		}
	}
	if choices, ok := obj["choices"].([]any); ok && len(choices) > 0 {
		if first, ok := choices[0].(map[string]any); ok {
			for _, k := range []string{"message", "delta"} {
				if m, ok := first[k].(map[string]any); ok {
					if s, ok := m["content"].(string); ok {
						return s, true
					}
				}
			}
		}
	}
	return "", false
}
