package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Resolver owns token resolution for outbound requests. It layers an
// in-memory cache over the durable store: a freshly written pair is visible
// immediately, even while durable writes are still propagating. Durable reads
// are cross-validated against the mirror, so a cookie cleared independently
// of storage invalidates the stored token rather than producing a request the
// backend will reject for the wrong reason.
type Resolver struct {
	store  Store
	mirror Mirror // nil disables cross-validation

	mu     sync.RWMutex
	cached Pair
	primed bool
}

// NewResolver creates a resolver over the given store. The mirror may be nil
// for deployments without a cookie surface (the CLI, most tests); resolution
// then trusts the durable store alone.
func NewResolver(store Store, mirror Mirror) *Resolver {
	return &Resolver{store: store, mirror: mirror}
}

// AccessToken resolves the access token to attach to a request. An empty
// result with a nil error means the request should proceed unauthenticated.
func (r *Resolver) AccessToken(ctx context.Context) (string, error) {
	r.mu.RLock()
	if r.primed {
		token := r.cached.AccessToken
		r.mu.RUnlock()
		return token, nil
	}
	r.mu.RUnlock()

	token, found, err := r.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	if !found {
		return "", nil
	}

	if r.mirror != nil {
		mirrored, ok := r.mirror.Get(KeyAccessToken)
		if !ok || mirrored != token {
			// divergent client state: do not trust the stored token
			return "", nil
		}
	}

	return token, nil
}

// RefreshToken resolves the refresh token, preferring the in-memory cache.
func (r *Resolver) RefreshToken(ctx context.Context) (string, error) {
	r.mu.RLock()
	if r.primed {
		token := r.cached.RefreshToken
		r.mu.RUnlock()
		return token, nil
	}
	r.mu.RUnlock()

	token, found, err := r.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if !found {
		return "", nil
	}
	return token, nil
}

// SetPair replaces the current pair. The in-memory cache is updated before
// any durable write so concurrent readers never observe the old pair once the
// rotation has been decided.
func (r *Resolver) SetPair(ctx context.Context, p Pair) error {
	if !p.Valid() {
		return errors.New("credential pair is incomplete")
	}

	r.mu.Lock()
	r.cached = p
	r.primed = true
	r.mu.Unlock()

	if err := r.store.Set(ctx, KeyAccessToken, p.AccessToken, AccessTokenTTL); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if err := r.store.Set(ctx, KeyRefreshToken, p.RefreshToken, RefreshTokenTTL); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}

	if r.mirror != nil {
		r.mirror.Set(KeyAccessToken, p.AccessToken, AccessTokenTTL)
		r.mirror.Set(KeyRefreshToken, p.RefreshToken, RefreshTokenTTL)
	}

	return nil
}

// Clear removes the pair from the cache, the store and the mirror. Safe to
// call repeatedly or when already cleared.
func (r *Resolver) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.cached = Pair{}
	r.primed = false
	r.mu.Unlock()

	err := errors.Join(
		r.store.Clear(ctx, KeyAccessToken),
		r.store.Clear(ctx, KeyRefreshToken),
	)

	if r.mirror != nil {
		r.mirror.Clear(KeyAccessToken)
		r.mirror.Clear(KeyRefreshToken)
	}

	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}
