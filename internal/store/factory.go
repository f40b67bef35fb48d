package store

import (
	"context"
	"strings"
	"time"
)

// Options selects and tunes the durable store.
type Options struct {
	DatabaseURL string
	Path        string
	Timeout     time.Duration
}

// NewStore picks Postgres for postgres:// URLs, the in-process store for
// memory://, and SQLite at Path otherwise.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	url := strings.TrimSpace(opts.DatabaseURL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresStore(ctx, url, opts.Timeout)
	case url == "memory://":
		return NewMemoryStore(), nil
	default:
		return NewSQLiteStore(ctx, opts.Path, opts.Timeout)
	}
}
