package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // invites.timezone must resolve on hosts without zoneinfo

	"github.com/aussiebroadwan/tokens/internal/tokens/audit"
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	httpapi "github.com/aussiebroadwan/tokens/internal/tokens/http"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/postgres"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokens/internal/tokens/tasks"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/httpx"
	"github.com/aussiebroadwan/tokens/pkg/jwtx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application holds the tokens service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	runner   *tasks.Runner

	dispatcher *webhook.Dispatcher
	sweeper    *webhook.Sweeper

	inviteService       *service.InviteService
	apiTokenService     *service.APITokenService
	totpService         *service.TOTPService
	authCodeService     *service.AuthCodeService
	housekeepingService *service.HousekeepingService
	housekeepingRunning bool

	server *http.Server
	router *httpapi.Router
}

// New opens the store, applies migrations and wires services and the HTTP
// server. Nothing listens until Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	ctx := context.Background()

	db, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied", slog.String("driver", cfg.Database.Driver))

	if err := app.initServices(ctx); err != nil {
		_ = app.close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "tokens",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
}

// OpenStore connects to the configured driver without migrating.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		st, err := postgres.NewStore(ctx, cfg.DSN, postgres.Pool{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite", "":
		st, err := sqlite.NewStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (app *Application) initServices(ctx context.Context) error {
	cfg := app.cfg

	pepper, err := cryptox.LoadOrCreatePepper(cfg.Secrets.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	sealer, ephemeral, err := cryptox.LoadSealer(cfg.Secrets.MasterKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}
	if ephemeral {
		app.logger.Warn("no master key file configured, TOTP secrets will not survive a restart")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	app.runner = tasks.NewRunner(cfg.Tasks.Workers, cfg.Tasks.QueueSize, app.logger)
	app.runner.Start(ctx)

	app.dispatcher = webhook.NewDispatcher(cfg.Webhook.Config, app.db, app.runner, app.metrics, app.logger)
	app.sweeper = webhook.NewSweeper(app.dispatcher, app.db, cfg.Webhook.SweepBatch, app.logger)
	if cfg.Webhook.URL == "" {
		app.logger.Warn("webhook.url not set, lifecycle events will not be delivered")
	}

	counters := ratelimit.StoreCounters{Store: app.db}
	sink := audit.LogSink{Logger: app.logger}

	app.inviteService = &service.InviteService{
		Store:      app.db,
		Pepper:     pepper,
		Limiter:    ratelimit.New(counters, app.logger, cfg.RateLimit.Invite.Windows()...),
		Audit:      sink,
		Notifier:   app.dispatcher,
		Metrics:    app.metrics,
		Policy:     service.DefaultPolicy(),
		DailyQuota: cfg.Invites.DailyQuota,
		DefaultTTL: cfg.Invites.TTL,
		MaxTTL:     cfg.Invites.MaxTTL,
		Location:   loc,
	}
	app.apiTokenService = &service.APITokenService{
		Store:      app.db,
		Pepper:     pepper,
		Limiter:    ratelimit.New(counters, app.logger, cfg.RateLimit.Auth.Windows()...),
		Audit:      sink,
		Notifier:   app.dispatcher,
		Metrics:    app.metrics,
		DailyQuota: cfg.APITokens.DailyQuota,
		Location:   loc,
	}
	app.totpService = &service.TOTPService{
		Store:  app.db,
		Sealer: sealer,
		Issuer: cfg.TOTP.Issuer,
	}
	app.authCodeService = &service.AuthCodeService{
		Store:       app.db,
		Sender:      webhookCodeSender{notifier: app.dispatcher},
		TTL:         cfg.AuthCodes.TTL,
		MaxAttempts: cfg.AuthCodes.MaxAttempts,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.sweeper,
		app.logger,
		cfg.Housekeeping.Interval,
		cfg.Housekeeping.Retention,
		cfg.Webhook.SweepInterval,
	)

	return nil
}

func (app *Application) initHTTP() error {
	verifier, err := app.sessionVerifier()
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(
		verifier,
		httpx.ClientIP{TrustProxyHeaders: app.cfg.HTTP.TrustProxyHeaders},
		app.registry,
		BuildVersion,
		app.db,
		app.logger,
	)
	router.Reporter = httpapi.LogReporter{}
	router.InviteService = app.inviteService
	router.APITokenService = app.apiTokenService
	router.TOTPService = app.totpService
	router.AuthCodeService = app.authCodeService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// sessionVerifier returns nil, not a typed nil, when no key is configured so
// the authenticator sees an absent verifier.
func (app *Application) sessionVerifier() (jwtx.Verifier, error) {
	sc := app.cfg.Session
	if sc.PublicKeyFile == "" {
		app.logger.Warn("session.public_key_file not set, only API tokens will authenticate")
		return nil, nil
	}

	pub, err := jwtx.LoadEd25519PublicKey(sc.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load session public key: %w", err)
	}

	opts := jwtx.VerifyOptions{Issuer: sc.Issuer, Leeway: sc.Leeway}
	if sc.Audience != "" {
		opts.Audience = []string{sc.Audience}
	}
	return jwtx.NewVerifierEdDSA(pub, opts), nil
}

// Handler exposes the routed HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.housekeepingRunning = true

	app.logger.Info("tokens service starting",
		slog.Int("port", app.cfg.HTTP.Port),
		slog.String("version", BuildVersion),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	if err := app.Shutdown(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Shutdown drains HTTP requests, then background work, then closes the
// store. Queued webhook retries get the same grace period as requests.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tokens service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.HTTP.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slog.String("error", err.Error()))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slog.String("error", err.Error()))
		}
	}

	if app.housekeepingRunning {
		app.housekeepingService.Stop()
		app.housekeepingRunning = false
	}

	if err := app.runner.Stop(ctx); err != nil {
		app.logger.Warn("task runner did not drain", slog.String("error", err.Error()))
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slog.String("error", err.Error()))
		return err
	}

	app.logger.Info("tokens service stopped")
	return nil
}

// Close releases the store and task runner for one-shot commands that never
// called Run.
func (app *Application) Close() error {
	return app.close()
}

func (app *Application) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.HTTP.ShutdownGracePeriod)
	defer cancel()

	if app.runner != nil {
		_ = app.runner.Stop(ctx)
	}
	return app.db.Close()
}

// Housekeeping runs a single retention pass.
func (app *Application) Housekeeping(ctx context.Context) service.CleanupReport {
	return app.housekeepingService.Cleanup(ctx)
}

// RedeliverWebhooks runs a single redelivery sweep over stored events.
func (app *Application) RedeliverWebhooks(ctx context.Context) (webhook.SweepResult, error) {
	return app.sweeper.Sweep(ctx)
}

// webhookCodeSender hands authentication codes to the accounts subsystem,
// which owns email and SMS delivery, through the signed webhook channel.
type webhookCodeSender struct {
	notifier webhook.Notifier
}

func (s webhookCodeSender) SendCode(ctx context.Context, p domain.Principal, code string) error {
	s.notifier.Dispatch(ctx, "auth_code.issued", map[string]any{
		"principal_id": p.ID,
		"code":         code,
	})
	return nil
}
