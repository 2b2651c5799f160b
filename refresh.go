package fleetbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fleetbridge/fleetbridge-go/credential"
)

// tokenResponse is the payload returned by the login and refresh endpoints.
type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	User         json.RawMessage `json:"user,omitempty"`
}

// RefreshRejectedError indicates the refresh endpoint answered with a
// non-2xx status: the refresh token is no longer acceptable and retrying is
// pointless.
type RefreshRejectedError struct {
	Status int
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("refresh rejected with status %d", e.Status)
}

// refresh runs the single-flight refresh protocol. The first caller becomes
// the leader and performs the token exchange; callers arriving while the
// exchange is in flight enqueue as waiters and share the leader's outcome.
// Returns the new access token and true on success; on failure the leader has
// already forced a logout and every caller receives false.
func (c *Coordinator) refresh(ctx context.Context) (string, bool) {
	return c.runRefresh(ctx, c.exchange)
}

// runRefresh is the protocol skeleton; fn performs the leader's exchange.
// The in-flight flag is cleared and the waiter queue drained (in enqueue
// order) in a single critical section after fn settles, so followers always
// observe the final outcome, never an intermediate state.
func (c *Coordinator) runRefresh(ctx context.Context, fn func(context.Context) (string, error)) (string, bool) {
	c.mu.Lock()
	if c.refreshing {
		w := make(chan string, 1)
		c.waiters = append(c.waiters, w)
		c.mu.Unlock()

		select {
		case token := <-w:
			return token, token != ""
		case <-ctx.Done():
			// the waiter channel is buffered: the leader's eventual send
			// cannot block on an abandoned follower
			return "", false
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	// The exchange is shared by every waiter, so it must not die with the
	// leader's own request context.
	token, err := fn(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("credential refresh failed")
		for _, w := range waiters {
			w <- ""
		}
		c.forceLogout()
		return "", false
	}

	c.log.Debug().Int("waiters", len(waiters)).Msg("credential refresh complete")
	for _, w := range waiters {
		w <- token
	}
	return token, true
}

// exchange performs one refresh call against the refresh endpoint and stores
// the rotated pair. A missing refresh token, a transport error and a non-2xx
// response are all the same failure as far as the protocol is concerned.
func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	refreshToken, err := c.creds.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", errors.New("no refresh token available")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.transport.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RefreshRejectedError{Status: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding refresh response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return "", errors.New("refresh response missing token pair")
	}

	pair := credential.Pair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if err := c.creds.SetPair(ctx, pair); err != nil {
		// the in-memory cache holds the new pair regardless; a durable write
		// failure costs persistence, not correctness
		c.log.Warn().Err(err).Msg("persisting refreshed credentials failed")
	}

	return tr.AccessToken, nil
}

// Login authenticates with email and password against the configured login
// endpoint and stores the issued credential pair. The login endpoint is
// excluded from the refresh protocol, so its own failures surface directly.
func (c *Coordinator) Login(ctx context.Context, email, password string) error {
	if c.loginURL == "" {
		return errors.New("no login endpoint configured")
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.transport.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return errors.New("login response missing token pair")
	}

	pair := credential.Pair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if err := c.creds.SetPair(ctx, pair); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}

	c.log.Info().Msg("login successful")
	return nil
}
