package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ProSocialFlow/internal/config"
	"ProSocialFlow/internal/infrastructure/llm"
	"ProSocialFlow/internal/infrastructure/placeholder"
	"ProSocialFlow/internal/infrastructure/scheduler"
	"ProSocialFlow/internal/infrastructure/storage"
	"ProSocialFlow/internal/infrastructure/telegram"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/metrics"
	"ProSocialFlow/internal/ports"
	"ProSocialFlow/internal/server"
	"ProSocialFlow/internal/usecase"
)

const (
	pingAttempts = 5
	pingDelay    = 500 * time.Millisecond
)

// Options override adapters built from config (tests).
type Options struct {
	Generator ports.Generator
	Store     storage.Backend
	Registry  *storage.Registry
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    storage.Backend
	actions  *usecase.Actions
	sessions *usecase.SessionManager
	sweeper  *usecase.Sweeper
	server   *server.Server
}

// New opens the history store and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := opts.Store
	if store == nil {
		registry := opts.Registry
		if registry == nil {
			registry = storage.DefaultRegistry()
		}
		opened, err := openStore(ctx, registry, cfg.History, pingDelay, baseLogger.With("component", "storage"))
		if err != nil {
			return nil, err
		}
		store = opened
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	gen := opts.Generator
	if gen == nil && cfg.OpenAI.APIKey != "" {
		gen = llm.NewClient(cfg.OpenAI, llm.WithLogger(baseLogger.With("component", "llm")))
	}
	if gen == nil {
		baseLogger.Warn("OPENAI_API_KEY not set; generation requests will fail")
	}

	ideas := usecase.NewIdeaGenerator(gen, store, m, baseLogger.With("component", "ideas"))
	posts := usecase.NewPostGenerator(usecase.PostGeneratorDeps{
		Generator: gen,
		History:   store,
		Metrics:   m,
		Logger:    baseLogger.With("component", "posts"),
	})
	image := usecase.NewImageGenerator(gen,
		placeholder.NewSource(cfg.Image.Host, cfg.Image.Size),
		m,
		baseLogger.With("component", "image"),
		usecase.WithLocation(cfg.Image.Location()),
	)
	history := usecase.NewHistoryService(store, baseLogger.With("component", "history"))

	var notifier ports.Notifier
	if cfg.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	sessions := usecase.NewSessionManager(usecase.SessionServices{
		Ideas:    ideas,
		Posts:    posts,
		Image:    image,
		History:  history,
		Notifier: notifier,
	}, usecase.SessionManagerConfig{
		Categories:  cfg.Categories,
		IdleTimeout: cfg.Sessions.IdleTimeout,
	}, m, baseLogger.With("component", "sessions"))

	actions := usecase.NewActions(ideas, posts, image, history, baseLogger.With("component", "actions"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		actions:  actions,
		sessions: sessions,
		sweeper: usecase.NewSweeper(
			scheduler.NewIntervalScheduler(cfg.Sessions.SweepInterval),
			sessions,
			baseLogger.With("component", "sweeper"),
		),
		server: server.New(cfg.Server, server.Deps{
			Actions:  actions,
			Sessions: sessions,
			Gatherer: reg,
			Logger:   baseLogger.With("component", "http"),
		}),
	}, nil
}

// openStore opens the configured backend and waits for it to answer.
func openStore(ctx context.Context, registry *storage.Registry, cfg config.HistoryConfig, delay time.Duration, log *slog.Logger) (storage.Backend, error) {
	store, err := registry.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s history store: %w", cfg.Backend, err)
	}

	err = retry.Do(
		func() error { return store.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(pingAttempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("history store not ready", "backend", cfg.Backend, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping %s history store: %w", cfg.Backend, err)
	}

	if pg, ok := store.(*storage.PostgresRepository); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure history schema: %w", err)
		}
	}

	log.Info("history store ready", "backend", cfg.Backend)
	return store, nil
}

// Actions exposes the stateless action boundary (CLI).
func (a *Application) Actions() *usecase.Actions {
	return a.actions
}

// Handler returns the HTTP router without listening.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start session sweeper: %w", err)
	}

	runErr := a.server.Run(ctx)

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stopErr := a.sweeper.Stop(stopCtx)

	return errors.Join(runErr, stopErr)
}

// Close releases the history store.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
