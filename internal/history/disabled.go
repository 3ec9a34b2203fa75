package history

import "context"

// Disabled is the store used when no history backend is configured.
// Writes are dropped and reads are always empty.
type Disabled struct{}

func (Disabled) Append(context.Context, string, Turn) error { return nil }

func (Disabled) ReadAll(context.Context, string) ([]Turn, error) { return nil, nil }

func (Disabled) Clear(context.Context, string) error { return nil }

func (Disabled) Enabled() bool { return false }

func (Disabled) Mode() string { return "disabled" }

func (Disabled) Close() error { return nil }
