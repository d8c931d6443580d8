package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"exchange-rates-client/internal/alerting"
	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/auth"
	"exchange-rates-client/internal/config"
	"exchange-rates-client/internal/pipeline"
	"exchange-rates-client/internal/rates"
	"exchange-rates-client/internal/session"
	"exchange-rates-client/internal/storage"
	"exchange-rates-client/internal/transport"
	"exchange-rates-client/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
	Err    io.Writer

	Session *session.Manager
	API     *api.Client
	Auth    *auth.Service
	Rates   *rates.Store

	closers []func() error
}

// NewApp wires the session, request pipeline, API client and stores.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}

	tokens, err := a.openTokenStore(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewManager(ctx, tokens, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.wire(sess, transport.DefaultTransport(), logger)
	return a, nil
}

// wire builds the client stack on top of base. Split out so tests can point
// the stack at an httptest server.
func (a *App) wire(sess *session.Manager, base http.RoundTripper, logger zerolog.Logger) {
	cfg := a.Config
	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	inner := transport.Wrap(base,
		transport.RequestID(),
		transport.UserAgent(userAgent),
		transport.RateLimit(transport.NewLimiter(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)),
		transport.Logger(logger, cfg.API.LogBodies),
	)

	a.Session = sess

	// the CSRF request carries only the bearer token; routing it through the
	// pipeline would wait on its own refresh
	csrfClient := &http.Client{
		Timeout:   cfg.API.RequestTimeout,
		Transport: transport.Wrap(inner, pipeline.Bearer(sess)),
	}

	var redirector pipeline.LoginRedirectorFunc = func(ctx context.Context, path string) {
		if a.Auth != nil {
			a.Auth.RedirectToLogin(ctx, path)
		}
	}

	mainClient := &http.Client{
		Timeout: cfg.API.RequestTimeout,
		Transport: pipeline.New(inner, sess, pipeline.Options{
			CSRFHeader: cfg.API.CSRFHeader,
			Retry:      pipeline.DefaultRetryPolicy(),
			Redirector: redirector,
			Logger:     logger,
		}),
	}

	a.API = api.NewClient(cfg.API.BaseURL, mainClient, csrfClient, logger)
	sess.SetCSRFSource(a.API)

	a.Auth = auth.NewService(a.API, sess, logger)
	a.Auth.OnExpire(func(string) {
		fmt.Fprintln(a.Err, "session expired, run `ratesctl login`")
	})

	a.Rates = rates.NewStore(a.API, cfg.Rates.PageSize, logger)
}

func (a *App) openTokenStore(ctx context.Context) (session.TokenStore, error) {
	if a.Config.Session.Ephemeral {
		a.Logger.Debug().Msg("ephemeral session; token kept in memory")
		return session.NewMemoryTokenStore(), nil
	}

	store, err := session.OpenSQLiteTokenStore(ctx, a.Config.Session.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if a.Config.Database.Migrate {
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newNotifier() alerting.Notifier {
	notifiers := make(map[string]alerting.Notifier)
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers["telegram"] = alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	notifiers["log"] = alerting.NewLogNotifier(a.Logger)
	return alerting.NewRouter(notifiers)
}

// requireAdmin checks the session before an admin-only call.
func (a *App) requireAdmin(ctx context.Context) error {
	_, err := a.Auth.RequireAdmin(ctx)
	return err
}

// Close releases the session store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
