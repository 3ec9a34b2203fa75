package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var ErrUnsupportedURL = errors.New("unsupported history store url")

// Options tune backend behaviour that is not part of the connection string.
type Options struct {
	// TTL expires idle Redis sessions; zero keeps them forever.
	TTL time.Duration
}

// NewStore picks a backend from the url scheme. An empty url disables
// short-term memory.
func NewStore(ctx context.Context, rawURL string, opts Options) (Store, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Disabled{}, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse history url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return NewRedisStore(ctx, rawURL, opts.TTL)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, rawURL)
	case "memory":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
}
