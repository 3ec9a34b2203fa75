package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/recall/internal/reliability"
)

// ProviderError is returned when the upstream model call fails.
type ProviderError struct {
	Provider string
	// Status is the upstream HTTP status, zero for transport failures.
	Status    int
	Retryable bool
	Err       error
}

func newProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Status:    status,
		Retryable: status == 0 || reliability.IsRetryableHTTPStatus(status),
		Err:       err,
	}
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Code is a short label for metrics.
func (e *ProviderError) Code() string {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "timeout"
	case e.Status > 0:
		return fmt.Sprintf("http_%d", e.Status)
	default:
		return "transport"
	}
}
