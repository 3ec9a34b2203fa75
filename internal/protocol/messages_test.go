package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"chat","session_id":"s1","message":"hello"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chat, ok := msg.(ChatRequest)
	if !ok {
		t.Fatalf("message type = %T, want ChatRequest", msg)
	}
	if chat.SessionID != "s1" || chat.Message != "hello" {
		t.Fatalf("unexpected chat request: %+v", chat)
	}
}

func TestParseClientMessageChatAllowsEmptyMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"chat","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if chat := msg.(ChatRequest); chat.Message != "" {
		t.Fatalf("Message = %q, want empty", chat.Message)
	}
}

func TestParseClientMessageClear(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"clear","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	cr, ok := msg.(ClearRequest)
	if !ok {
		t.Fatalf("message type = %T, want ClearRequest", msg)
	}
	if cr.SessionID != "s1" {
		t.Fatalf("SessionID = %q, want s1", cr.SessionID)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsChatWithoutSession(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"chat","message":"hi"}`)); err == nil {
		t.Fatalf("ParseClientMessage() expected error for chat without session_id")
	}
}

func TestParseClientMessageAcceptsClearWithoutSession(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"clear","session_id":"  "}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(ClearRequest); !ok {
		t.Fatalf("ParseClientMessage() = %T, want ClearRequest", msg)
	}
}

func TestParseClientMessageRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestNewSourceTruncatesByCharacter(t *testing.T) {
	long := strings.Repeat("ü", SourceTextLimit+10)
	src := NewSource(2, 0.5, long)
	if src.DocID != "memory_2" {
		t.Fatalf("DocID = %q, want memory_2", src.DocID)
	}
	if n := utf8.RuneCountInString(src.Text); n != SourceTextLimit {
		t.Fatalf("Text length = %d runes, want %d", n, SourceTextLimit)
	}
	if !utf8.ValidString(src.Text) {
		t.Fatalf("Text is not valid utf-8")
	}

	short := NewSource(1, 0.9, "hi")
	if short.Text != "hi" {
		t.Fatalf("Text = %q, want unchanged", short.Text)
	}
}

func TestChatReplyEncodesEmptySources(t *testing.T) {
	b, err := json.Marshal(ChatReply{Reply: "ok", Sources: []Source{}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"reply":"ok","sources":[]}` {
		t.Fatalf("Marshal() = %s", b)
	}
}
