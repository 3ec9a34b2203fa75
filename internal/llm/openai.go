package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
)

// OpenAIProvider calls the OpenAI chat completions API.
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(client openai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    convertMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Response{}, newProviderError(p.Name(), apiErr.StatusCode, err)
		}
		return Response{}, newProviderError(p.Name(), 0, err)
	}

	return Response{Text: replyText(resp)}, nil
}

// replyText returns the first choice's content, or the raw completion JSON
// when the response has no content field.
func replyText(resp *openai.ChatCompletion) string {
	if resp == nil {
		return ""
	}
	if len(resp.Choices) == 0 || !resp.Choices[0].Message.JSON.Content.Valid() {
		return resp.RawJSON()
	}
	return resp.Choices[0].Message.Content
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
