package policy

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxSessionIDLen = 128
	MaxMessageRunes = 32000
)

var (
	ErrMissingSessionID = errors.New("session_id is required")
	ErrInvalidSessionID = errors.New("session_id is invalid")
	ErrMessageTooLong   = errors.New("message is too long")
)

// CheckSessionID rejects identifiers that cannot be used as a store key.
// The value is otherwise opaque.
func CheckSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrMissingSessionID
	}
	if len(sessionID) > MaxSessionIDLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidSessionID, MaxSessionIDLen)
	}
	for _, r := range sessionID {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidSessionID)
		}
	}
	return nil
}

// CheckMessage bounds the size of a user message. Empty messages are allowed.
func CheckMessage(message string) error {
	if n := utf8.RuneCountInString(message); n > MaxMessageRunes {
		return fmt.Errorf("%w: %d characters, limit %d", ErrMessageTooLong, n, MaxMessageRunes)
	}
	return nil
}
