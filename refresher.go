package fleetbridge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fleetbridge/fleetbridge-go/credential"
)

const defaultRefreshMargin = time.Minute

// KeepFresh refreshes the credential pair shortly before the access token
// expires, so interactive requests rarely pay the 401-and-retry round trip.
// Transient exchange failures are retried with exponential backoff within the
// margin; a rejection by the refresh endpoint is not retried and follows the
// usual forced-logout path. The loop survives a logout and resumes once a new
// login occurs. Blocks until ctx is cancelled; run it in its own goroutine.
func (c *Coordinator) KeepFresh(ctx context.Context, margin time.Duration) {
	if margin <= 0 {
		margin = defaultRefreshMargin
	}

	for {
		delay := c.refreshDelay(ctx, margin)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.log.Debug().Msg("credential refresher shutting down")
			return
		}

		token, err := c.creds.AccessToken(ctx)
		if err != nil || token == "" {
			// logged out: poll until a session appears
			continue
		}

		expiry, err := credential.TokenExpiry(token)
		if err != nil {
			c.log.Warn().Err(err).Msg("access token expiry unreadable; skipping proactive refresh")
			continue
		}
		if time.Until(expiry) > margin {
			// someone else already rotated the pair
			continue
		}

		if _, ok := c.runRefresh(ctx, c.retryingExchange(margin)); ok {
			c.log.Debug().Msg("proactive credential refresh complete")
		}
	}
}

// retryingExchange wraps the token exchange with exponential backoff for the
// proactive path. Unlike the reactive protocol, a network blip here should
// not end the session while the current token is still valid; only a
// rejection from the refresh endpoint is terminal.
func (c *Coordinator) retryingExchange(margin time.Duration) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		var token string

		op := func() error {
			t, err := c.exchange(ctx)
			if err != nil {
				var rejected *RefreshRejectedError
				if errors.As(err, &rejected) {
					return backoff.Permanent(err)
				}
				c.log.Debug().Err(err).Msg("proactive refresh attempt failed; backing off")
				return err
			}
			token = t
			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Second
		bo.MaxElapsedTime = margin

		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			return "", err
		}
		return token, nil
	}
}

// refreshDelay computes how long to sleep before the next proactive refresh
// attempt. Without a readable token the loop polls at the margin interval.
func (c *Coordinator) refreshDelay(ctx context.Context, margin time.Duration) time.Duration {
	token, err := c.creds.AccessToken(ctx)
	if err != nil || token == "" {
		return margin
	}

	expiry, err := credential.TokenExpiry(token)
	if err != nil {
		return margin
	}

	delay := time.Until(expiry) - margin
	if delay < 0 {
		return 0
	}
	return delay
}
