package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeChat       MessageType = "chat"
	TypeClear      MessageType = "clear"
	TypeChatReply  MessageType = "chat_reply"
	TypeCleared    MessageType = "cleared"
	TypeErrorEvent MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ChatRequest is both the POST /api/chat body and the websocket chat frame.
type ChatRequest struct {
	Type      MessageType `json:"type,omitempty"`
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
}

type ClearRequest struct {
	Type      MessageType `json:"type,omitempty"`
	SessionID string      `json:"session_id"`
}

// Source is one retrieved memory cited alongside a reply.
type Source struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

type ChatReply struct {
	Type      MessageType `json:"type,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Reply     string      `json:"reply"`
	Sources   []Source    `json:"sources"`
}

type Cleared struct {
	Type      MessageType `json:"type,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	OK        bool        `json:"ok"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// SourceTextLimit bounds the memory excerpt returned per source, in characters.
const SourceTextLimit = 240

// NewSource builds the citation for the retrieved memory at the given
// 1-based position. The id is positional, not a stable record id.
func NewSource(position int, score float64, text string) Source {
	return Source{
		DocID: fmt.Sprintf("memory_%d", position),
		Score: score,
		Text:  truncateRunes(text, SourceTextLimit),
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// ParseClientMessage decodes a websocket frame into ChatRequest or ClearRequest.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChat:
		var msg ChatRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, errors.New("invalid chat: session_id is required")
		}
		return msg, nil
	case TypeClear:
		var msg ClearRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
