package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Auth        AuthConfig
	Services    ServicesConfig
	Credentials CredentialConfig
	HTTP        HTTPConfig
	Observe     ObserveConfig
}

// AuthConfig locates the identity service. Endpoints under it never trigger
// the refresh protocol.
type AuthConfig struct {
	BaseURL     string `env:"AUTH_BASE_URL, required"`
	LoginPath   string `env:"AUTH_LOGIN_PATH, default=/api/auth/login"`
	RefreshPath string `env:"AUTH_REFRESH_PATH, default=/api/auth/refresh"`

	// ExcludedPrefixes lists additional URL or path prefixes exempt from the
	// refresh protocol, comma separated.
	ExcludedPrefixes []string `env:"AUTH_EXCLUDED_PREFIXES"`

	// RefreshMarginSeconds is how far ahead of access-token expiry the
	// proactive refresher runs.
	RefreshMarginSeconds int `env:"AUTH_REFRESH_MARGIN_SECS, default=60"`
}

// LoginURL is the absolute login endpoint.
func (a AuthConfig) LoginURL() string {
	return a.BaseURL + a.LoginPath
}

// RefreshURL is the absolute refresh endpoint.
func (a AuthConfig) RefreshURL() string {
	return a.BaseURL + a.RefreshPath
}

// ServicesConfig holds the base URLs of the logistics backends.
type ServicesConfig struct {
	CompanyURL      string `env:"COMPANY_API_URL, required"`
	TMSURL          string `env:"TMS_API_URL, required"`
	DriverURL       string `env:"DRIVER_API_URL"`
	NotificationURL string `env:"NOTIFICATION_API_URL"`
	AnalyticsURL    string `env:"ANALYTICS_API_URL"`

	// AnalyticsCacheTTLSeconds controls how long dashboard summaries are
	// served from cache.
	AnalyticsCacheTTLSeconds int `env:"ANALYTICS_CACHE_TTL_SECS, default=60"`
}

// CredentialConfig controls where the credential pair is persisted.
type CredentialConfig struct {
	// File is the durable credential store location.
	File string `env:"CREDENTIAL_FILE, default=.fleetbridge/credentials.json"`

	// SiteURL scopes the cookie mirror. Empty disables mirroring (the CLI
	// default: a fresh process has no cookie state to validate against).
	SiteURL string `env:"CREDENTIAL_SITE_URL"`
}

type HTTPConfig struct {
	TimeoutSeconds              int `env:"HTTP_TIMEOUT_SECS, default=30"`
	OutgoingHTTPMaxIdleConns    int `env:"HTTP_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"HTTP_MAX_CONNS_PER_HOST, default=20"`
}

type ObserveConfig struct {
	Enabled                  bool   `env:"OBSERVE_ENABLED, default=false"`
	ServiceName              string `env:"OBSERVE_SERVICE_NAME, default=fleetbridge-client"`
	TraceBatchTimeoutSeconds int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	HTTPTransportEnabled     bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that configured URLs are absolute.
func (c *Config) Validate() error {
	required := map[string]string{
		"AUTH_BASE_URL":   c.Auth.BaseURL,
		"COMPANY_API_URL": c.Services.CompanyURL,
		"TMS_API_URL":     c.Services.TMSURL,
	}
	optional := map[string]string{
		"DRIVER_API_URL":       c.Services.DriverURL,
		"NOTIFICATION_API_URL": c.Services.NotificationURL,
		"ANALYTICS_API_URL":    c.Services.AnalyticsURL,
		"CREDENTIAL_SITE_URL":  c.Credentials.SiteURL,
	}

	for name, value := range optional {
		if value != "" {
			required[name] = value
		}
	}

	for name, value := range required {
		u, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL: %s", name, value)
		}
	}

	return nil
}
