package fleetbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fleetbridge/fleetbridge-go/credential"
	"github.com/rs/zerolog"
)

// ErrNotAuthenticated is returned by operations that need a live session when
// no credentials are available.
var ErrNotAuthenticated = errors.New("not authenticated: login required")

// Doer issues a single HTTP request. *http.Client satisfies it; tests and
// instrumentation wrap it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Coordinator wraps outbound HTTP calls with bearer-token injection and
// single-flight credential refresh. It is safe for concurrent use; construct
// one per process and inject it wherever requests originate.
type Coordinator struct {
	transport  Doer
	creds      *credential.Resolver
	refreshURL string
	loginURL   string
	excluded   []string
	onLogout   func()
	log        zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTransport sets the underlying HTTP transport. Defaults to
// http.DefaultClient.
func WithTransport(d Doer) Option {
	return func(c *Coordinator) { c.transport = d }
}

// WithLoginURL sets the login endpoint used by Login. Login endpoints are
// always excluded from the refresh protocol.
func WithLoginURL(u string) Option {
	return func(c *Coordinator) { c.loginURL = u }
}

// WithExcludedPrefixes adds URL or path prefixes whose 401 responses never
// trigger a refresh. The refresh and login endpoints are excluded implicitly.
func WithExcludedPrefixes(prefixes ...string) Option {
	return func(c *Coordinator) { c.excluded = append(c.excluded, prefixes...) }
}

// WithLogoutHook sets the callback fired when an unrecoverable refresh
// failure forces a logout. Fired once per failure, not once per waiter.
func WithLogoutHook(fn func()) Option {
	return func(c *Coordinator) { c.onLogout = fn }
}

// WithLogger sets the coordinator's logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New creates a Coordinator that refreshes credentials against refreshURL
// and resolves tokens through creds.
func New(refreshURL string, creds *credential.Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:  http.DefaultClient,
		creds:      creds,
		refreshURL: refreshURL,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues the request with the current bearer token attached. A 401
// response on a non-excluded endpoint triggers the refresh protocol; on
// success the request is retried once with the new token. If the refresh
// fails the original 401 response is returned as-is, after credential state
// has been cleared and the logout hook fired.
//
// Requests with a body must be replayable (http.NewRequest sets GetBody for
// the common in-memory body types); otherwise the 401 is returned without a
// retry.
func (c *Coordinator) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		// a broken credential store is not fatal to the request: proceed
		// unauthenticated and let the backend decide
		c.log.Warn().Err(err).Msg("token resolution failed; sending request unauthenticated")
		token = ""
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || c.excludedURL(req.URL) {
		return resp, nil
	}

	refreshed, ok := c.refresh(ctx)
	if !ok {
		// refresh failed: the caller observes the original 401
		return resp, nil
	}

	retry, err := replayableRequest(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", req.URL.String()).
			Msg("request not replayable after refresh; returning original response")
		return resp, nil
	}

	// the original response is superseded by the retry
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry.Header.Set("Authorization", "Bearer "+refreshed)
	return c.transport.Do(retry)
}

// Logout clears the credential pair from the in-memory cache, the durable
// store and the cookie mirror. Idempotent. The logout hook is not fired: a
// voluntary logout is the application's own doing.
func (c *Coordinator) Logout(ctx context.Context) error {
	return c.creds.Clear(ctx)
}

// forceLogout handles an unrecoverable refresh failure: credential state is
// cleared and the hook fired, exactly once per failure.
func (c *Coordinator) forceLogout() {
	if err := c.creds.Clear(context.Background()); err != nil {
		c.log.Warn().Err(err).Msg("clearing credentials on forced logout failed")
	}
	c.log.Info().Msg("forced logout: credentials cleared")
	if c.onLogout != nil {
		c.onLogout()
	}
}

// excludedURL reports whether 401s from this URL are exempt from the refresh
// protocol. The refresh and login endpoints are always exempt: refreshing in
// response to a failed refresh would loop forever.
func (c *Coordinator) excludedURL(u *url.URL) bool {
	full := u.String()

	if c.refreshURL != "" && strings.HasPrefix(full, c.refreshURL) {
		return true
	}
	if c.loginURL != "" && strings.HasPrefix(full, c.loginURL) {
		return true
	}
	for _, p := range c.excluded {
		if strings.HasPrefix(full, p) || strings.HasPrefix(u.Path, p) {
			return true
		}
	}
	return false
}

// replayableRequest clones the request with a fresh body for the post-refresh
// retry. The original body has already been consumed by the first attempt.
func replayableRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())

	if req.Body == nil || req.Body == http.NoBody {
		retry.Body = nil
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replaying request body: %w", err)
	}
	retry.Body = body
	return retry, nil
}
