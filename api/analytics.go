package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/fleetbridge/fleetbridge-go/internal/cache"
)

// Analytics talks to the analytics service backing the trip-status
// dashboards. Summaries change slowly relative to how often dashboards poll,
// so responses are cached with a short TTL.
type Analytics struct {
	client *Client
	cache  cache.Cache[StatusSummary]
}

// NewAnalytics creates an analytics client caching summaries for ttl.
func NewAnalytics(client *Client, ttl time.Duration) (*Analytics, error) {
	c, err := cache.NewMemory[StatusSummary](ttl, 128)
	if err != nil {
		return nil, err
	}
	return &Analytics{client: client, cache: c}, nil
}

// StatusSummary is the trip count per status over a reporting window.
type StatusSummary struct {
	Window string             `json:"window"`
	Counts map[TripStatus]int `json:"counts"`
}

// TripStatusSummary returns the trip-status breakdown for a window such as
// "7d" or "30d". Served from cache when a fresh summary is available.
func (a *Analytics) TripStatusSummary(ctx context.Context, window string) (*StatusSummary, error) {
	key := "trip-status/" + window

	if summary, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		return &summary, nil
	}

	query := url.Values{"window": []string{window}}

	var summary StatusSummary
	if err := a.client.do(ctx, http.MethodGet, "/api/analytics/trip-status", query, nil, &summary); err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, key, summary); err != nil {
		a.client.log.Warn().Err(err).Msg("caching analytics summary failed")
	}
	return &summary, nil
}
