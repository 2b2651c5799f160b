package fleetbridge

import (
	"context"

	"github.com/fleetbridge/fleetbridge-go/credential"
	"golang.org/x/oauth2"
)

// TokenSource exposes the coordinator's credentials as an oauth2.TokenSource,
// letting oauth2-aware libraries share the managed session. The source is
// wrapped in oauth2.ReuseTokenSource so a token is only resolved again once
// the previous one expires; resolution falls back to the single-flight
// refresh protocol when no access token is available.
func (c *Coordinator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &coordinatorTokenSource{ctx: ctx, c: c})
}

type coordinatorTokenSource struct {
	ctx context.Context
	c   *Coordinator
}

func (s *coordinatorTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.c.creds.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		refreshed, ok := s.c.refresh(s.ctx)
		if !ok {
			return nil, ErrNotAuthenticated
		}
		token = refreshed
	}

	tok := &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}

	// Opaque tokens get a zero expiry: ReuseTokenSource then treats the token
	// as non-expiring, which matches not knowing any better.
	if expiry, err := credential.TokenExpiry(token); err == nil {
		tok.Expiry = expiry
	}

	return tok, nil
}
