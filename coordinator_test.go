package fleetbridge_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fleetbridge "github.com/fleetbridge/fleetbridge-go"
	"github.com/fleetbridge/fleetbridge-go/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func JSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func tokenPayload(access, refresh string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    900,
		"user":          map[string]any{"id": "u-1", "role": "admin"},
	}
}

func newResolver(t *testing.T, pair credential.Pair) *credential.Resolver {
	t.Helper()

	resolver := credential.NewResolver(credential.NewMemoryStore(), nil)
	if pair.Valid() {
		require.NoError(t, resolver.SetPair(context.Background(), pair))
	}
	return resolver
}

// waitFor polls until the condition holds; used by handlers that must not
// resolve before the scenario is fully set up.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Error("condition not reached before deadline")
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// The scenario pinned by the design: caller A receives a 401, caller B's
// request expires during A's refresh, the refresh succeeds. One refresh call,
// both requests retried with the new token.
func TestDo_ConcurrentExpiry_SharesOneRefresh(t *testing.T) {
	const callers = 2

	var refreshCalls, unauthorized, retried atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/trips", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh-access" {
			retried.Add(1)
			JSON(t, w, map[string]any{"items": []any{}})
			return
		}
		unauthorized.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)

		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body.RefreshToken)

		// hold the refresh open until both callers have expired, then allow
		// a moment for the second caller to queue on the in-flight refresh
		waitFor(t, func() bool { return unauthorized.Load() >= callers })
		time.Sleep(100 * time.Millisecond)

		JSON(t, w, tokenPayload("fresh-access", "refresh-2"))
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{AccessToken: "stale-access", RefreshToken: "refresh-1"})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()))

	var wg sync.WaitGroup
	statuses := make(chan int, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, err := http.NewRequest(http.MethodGet, svr.URL+"/api/trips", nil)
			require.NoError(t, err)

			resp, err := co.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(callers), retried.Load())
}

// After a failed refresh the caller observes the original 401, not an error,
// and the logout hook fires once.
func TestDo_RefreshRejected_ReturnsOriginalResponse(t *testing.T) {
	var refreshCalls, retried, logouts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if refreshCalls.Load() > 0 {
			retried.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{AccessToken: "stale-access", RefreshToken: "refresh-1"})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()),
		fleetbridge.WithLogoutHook(func() { logouts.Add(1) }))

	req, err := http.NewRequest(http.MethodGet, svr.URL+"/api/orders", nil)
	require.NoError(t, err)

	resp, err := co.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(0), retried.Load())
	assert.Equal(t, int32(1), logouts.Load())

	// credential state is gone
	token, err := resolver.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

// A 401 from an excluded endpoint never triggers the protocol.
func TestDo_ExcludedEndpoint_NoRefresh(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /api/identity/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		JSON(t, w, tokenPayload("fresh-access", "refresh-2"))
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{AccessToken: "stale-access", RefreshToken: "refresh-1"})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()),
		fleetbridge.WithLoginURL(svr.URL+"/api/auth/login"),
		fleetbridge.WithExcludedPrefixes("/api/identity"))

	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/api/identity/me"},
	} {
		req, err := http.NewRequest(target.method, svr.URL+target.path, nil)
		require.NoError(t, err)

		resp, err := co.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	assert.Equal(t, int32(0), refreshCalls.Load())
}

// The coordinator is reusable: a later expiry starts a brand-new single-flight
// cycle.
func TestDo_SecondExpiry_NewRefreshCycle(t *testing.T) {
	var refreshCalls atomic.Int32
	var validToken atomic.Value
	validToken.Store("access-1")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+validToken.Load().(string) {
			JSON(t, w, map[string]any{"items": []any{}})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := refreshCalls.Add(1)
		access := "access-" + map[int32]string{1: "2", 2: "3"}[n]
		validToken.Store(access)
		JSON(t, w, tokenPayload(access, "refresh-next"))
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{AccessToken: "expired", RefreshToken: "refresh-1"})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()))

	fetch := func() int {
		req, err := http.NewRequest(http.MethodGet, svr.URL+"/api/vehicles", nil)
		require.NoError(t, err)

		resp, err := co.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, fetch())
	assert.Equal(t, int32(1), refreshCalls.Load())

	// invalidate server-side: the next request must start a second cycle
	validToken.Store("access-rotated-away")

	assert.Equal(t, http.StatusOK, fetch())
	assert.Equal(t, int32(2), refreshCalls.Load())
}

// A request body built the ordinary way is replayed on the post-refresh retry.
func TestDo_RetriesRequestBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()

		if r.Header.Get("Authorization") == "Bearer fresh-access" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		JSON(t, w, tokenPayload("fresh-access", "refresh-2"))
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{AccessToken: "stale-access", RefreshToken: "refresh-1"})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()))

	req, err := http.NewRequest(http.MethodPost, svr.URL+"/api/orders",
		strings.NewReader(`{"customer_id":"c-1","quantity":3}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := co.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
}

// With no usable token the request simply goes out unauthenticated.
func TestDo_NoCredentials_SendsUnauthenticated(t *testing.T) {
	var sawAuth atomic.Value
	sawAuth.Store("unset")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/branches", func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		JSON(t, w, map[string]any{"items": []any{}})
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()))

	req, err := http.NewRequest(http.MethodGet, svr.URL+"/api/branches", nil)
	require.NoError(t, err)

	resp, err := co.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", sawAuth.Load())
}

func TestLogin_StoresIssuedPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Email != "ops@example.com" || body.Password != "opensesame" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		JSON(t, w, tokenPayload("access-1", "refresh-1"))
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	resolver := newResolver(t, credential.Pair{})
	co := fleetbridge.New(svr.URL+"/api/auth/refresh", resolver,
		fleetbridge.WithTransport(svr.Client()),
		fleetbridge.WithLoginURL(svr.URL+"/api/auth/login"))

	err := co.Login(context.Background(), "ops@example.com", "wrong")
	assert.ErrorContains(t, err, "status 401")

	err = co.Login(context.Background(), "ops@example.com", "opensesame")
	require.NoError(t, err)

	token, err := resolver.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestLogout_Idempotent(t *testing.T) {
	resolver := newResolver(t, credential.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	co := fleetbridge.New("https://auth.example.com/api/auth/refresh", resolver)

	ctx := context.Background()

	require.NoError(t, co.Logout(ctx))
	require.NoError(t, co.Logout(ctx))

	token, err := resolver.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}
