// Package credential manages the client's access/refresh token pair: durable
// persistence, the in-memory override cache, and the cookie mirror used to
// detect divergent client state.
package credential

import (
	"context"
	"time"
)

// Storage keys for the credential pair. These match the names used by the
// backend's cookie middleware, so the mirror and the durable store always
// refer to the same logical values.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Mirror cookie lifetimes, matching the expiry the backend sets on its own
// copies of the pair.
const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Pair is the current access/refresh token pair. At most one pair is valid at
// any time; writing a new pair replaces the old one wholesale.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both halves of the pair are present.
func (p Pair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Store is durable key-value persistence for the credential pair. Writes may
// propagate asynchronously in some implementations; callers that need
// immediate visibility should go through Resolver, which layers an in-memory
// cache on top.
type Store interface {
	// Get retrieves a value. Returns the value, whether it was found, and any
	// error. An expired entry reads as not found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with the given lifetime. A zero ttl means the value
	// does not expire.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Clear removes a value. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// Mirror is the secondary copy of the pair kept for server-side consumption
// (a cookie pair in practice). The resolver cross-validates durable reads
// against it: a missing or mismatched mirror entry means client state has
// diverged and the stored token must not be used.
type Mirror interface {
	Get(key string) (string, bool)
	Set(key string, value string, ttl time.Duration)
	Clear(key string)
}
