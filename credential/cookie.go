package credential

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// CookieMirror keeps the credential pair mirrored as a cookie pair scoped to
// the application's site URL, matching the copies the backend middleware
// reads. It implements Mirror over a standard cookie jar; the jar can be
// shared with an http.Client so outbound requests to the site carry the same
// cookies the resolver validates against.
type CookieMirror struct {
	jar  http.CookieJar
	site *url.URL
}

// NewCookieMirror creates a mirror scoped to the given site URL. The URL must
// be absolute; cookies are marked Secure when the site uses https.
func NewCookieMirror(site string) (*CookieMirror, error) {
	u, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("parsing site URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("site URL must be absolute: %s", site)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &CookieMirror{jar: jar, site: u}, nil
}

// Jar exposes the underlying jar for sharing with an http.Client.
func (m *CookieMirror) Jar() http.CookieJar {
	return m.jar
}

func (m *CookieMirror) Get(key string) (string, bool) {
	for _, c := range m.jar.Cookies(m.site) {
		if c.Name == key {
			return c.Value, true
		}
	}
	return "", false
}

func (m *CookieMirror) Set(key string, value string, ttl time.Duration) {
	m.jar.SetCookies(m.site, []*http.Cookie{{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		Secure:   m.site.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}})
}

func (m *CookieMirror) Clear(key string) {
	// an expired cookie evicts the live one from the jar
	m.jar.SetCookies(m.site, []*http.Cookie{{
		Name:   key,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}
