package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability for usecases (scheduler bookkeeping
// such as last-cycle markers). Adapters may be backed by SQLite or other
// stores.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
