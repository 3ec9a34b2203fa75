package chat

import "fmt"

// Turn failure operations.
const (
	OpReadHistory   = "read_history"
	OpComplete      = "complete"
	OpAppendHistory = "append_history"
	OpUpsertMemory  = "upsert_memory"
	OpClear         = "clear"
)

// TurnError reports which step of a turn failed and for which session.
type TurnError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("chat %s (session %q): %v", e.Op, e.SessionID, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

func turnError(op, sessionID string, err error) error {
	return &TurnError{Op: op, SessionID: sessionID, Err: err}
}
