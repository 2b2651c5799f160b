// fleetbridge is a small operations CLI for the logistics backends: log in,
// inspect the session, list trips and show dashboard summaries. It doubles as
// a reference for wiring the coordinator into an application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	fleetbridge "github.com/fleetbridge/fleetbridge-go"
	"github.com/fleetbridge/fleetbridge-go/api"
	"github.com/fleetbridge/fleetbridge-go/credential"
	"github.com/fleetbridge/fleetbridge-go/internal/config"
	"github.com/fleetbridge/fleetbridge-go/internal/observe"
)

func main() {
	// a missing .env is fine; the environment may be configured directly
	_ = godotenv.Load()

	configureLogging()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func configureLogging() {
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fleetbridge <login|logout|whoami|trips|summary>")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry: shutdown failed")
		}
	}()

	co, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	switch cmd := args[0]; cmd {
	case "login":
		return runLogin(ctx, co, args[1:])
	case "logout":
		if err := co.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	case "whoami":
		return runWhoami(ctx, co)
	case "trips":
		return runTrips(ctx, co, cfg, args[1:])
	case "summary":
		return runSummary(ctx, co, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func newCoordinator(cfg config.Config) (*fleetbridge.Coordinator, error) {
	transport := observe.HTTPTransport(configureHTTPTransport(cfg.HTTP), cfg.Observe)
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}

	store := credential.NewFileStore(cfg.Credentials.File)

	// The cookie mirror guards browser-style deployments where a middleware
	// cookie can diverge from storage. A CLI process has no such surface
	// unless a site URL is configured.
	var mirror credential.Mirror
	if cfg.Credentials.SiteURL != "" {
		m, err := credential.NewCookieMirror(cfg.Credentials.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("cookie mirror configuration failed: %w", err)
		}
		mirror = m
	}

	resolver := credential.NewResolver(store, mirror)

	co := fleetbridge.New(cfg.Auth.RefreshURL(), resolver,
		fleetbridge.WithTransport(httpClient),
		fleetbridge.WithLoginURL(cfg.Auth.LoginURL()),
		fleetbridge.WithExcludedPrefixes(cfg.Auth.ExcludedPrefixes...),
		fleetbridge.WithLogger(log.Logger),
		fleetbridge.WithLogoutHook(func() {
			log.Warn().Msg("session expired: run `fleetbridge login` to continue")
		}),
	)

	return co, nil
}

func configureHTTPTransport(cfg config.HTTPConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}

func runLogin(ctx context.Context, co *fleetbridge.Coordinator, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or FLEETBRIDGE_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		*password = os.Getenv("FLEETBRIDGE_PASSWORD")
	}
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password (or FLEETBRIDGE_PASSWORD)")
	}

	if err := co.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func runWhoami(ctx context.Context, co *fleetbridge.Coordinator) error {
	token, err := co.TokenSource(ctx).Token()
	if err != nil {
		return err
	}

	subject, err := credential.TokenSubject(token.AccessToken)
	if err != nil {
		return fmt.Errorf("session token unreadable: %w", err)
	}

	fmt.Printf("logged in as %s", subject)
	if !token.Expiry.IsZero() {
		fmt.Printf(" (session expires %s)", token.Expiry.Local().Format(time.RFC1123))
	}
	fmt.Println()
	return nil
}

func runTrips(ctx context.Context, co *fleetbridge.Coordinator, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("trips", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.NewClient(cfg.Services.TMSURL, co, api.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	trips, err := api.NewTMS(client).ListTrips(ctx, api.ListParams{Page: *page, Limit: *limit})
	if err != nil {
		return err
	}

	for _, trip := range trips.Items {
		fmt.Printf("%s\t%s -> %s\t%s\n", trip.ID, trip.FromBranchID, trip.ToBranchID, trip.Status)
	}
	fmt.Printf("%d of %d trips\n", len(trips.Items), trips.Total)
	return nil
}

func runSummary(ctx context.Context, co *fleetbridge.Coordinator, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	window := fs.String("window", "7d", "reporting window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.Services.AnalyticsURL == "" {
		return errors.New("ANALYTICS_API_URL is not configured")
	}

	client, err := api.NewClient(cfg.Services.AnalyticsURL, co, api.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	analytics, err := api.NewAnalytics(client, time.Duration(cfg.Services.AnalyticsCacheTTLSeconds)*time.Second)
	if err != nil {
		return err
	}

	summary, err := analytics.TripStatusSummary(ctx, *window)
	if err != nil {
		return err
	}

	fmt.Printf("trip status over %s:\n", summary.Window)
	for status, count := range summary.Counts {
		fmt.Printf("  %-12s %d\n", status, count)
	}
	return nil
}
