package history

import (
	"context"
	"strings"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps stored role strings back to a Role. Anything that is not
// "assistant" is treated as a user turn.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAssistant)) {
		return RoleAssistant
	}
	return RoleUser
}

// Turn is one utterance in a session transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store keeps an ordered, per-session log of turns.
//
// Append adds to the tail, ReadAll returns the whole log oldest first and
// Clear drops it. Clear on an unknown session is not an error.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	ReadAll(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
	// Enabled reports whether short-term memory is backed by a real store.
	Enabled() bool
	// Mode names the backend for health reporting.
	Mode() string
	Close() error
}
