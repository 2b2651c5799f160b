package cache

import (
	"context"
)

// Cache is a TTL cache for API responses. The generic type T is the cached
// value type.
type Cache[T any] interface {
	// Get retrieves a value. Returns the value, whether it was found, and any
	// error.
	Get(ctx context.Context, key string) (T, bool, error)

	// Set stores a value.
	Set(ctx context.Context, key string, value T) error

	// Invalidate removes a value.
	Invalidate(ctx context.Context, key string) error
}
