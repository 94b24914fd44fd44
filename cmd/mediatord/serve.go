package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mediatord/internal/config"
	"github.com/fyrsmithlabs/mediatord/internal/engine"
	"github.com/fyrsmithlabs/mediatord/internal/escalation"
	"github.com/fyrsmithlabs/mediatord/internal/events"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
	httpapi "github.com/fyrsmithlabs/mediatord/internal/http"
	"github.com/fyrsmithlabs/mediatord/internal/logging"
	"github.com/fyrsmithlabs/mediatord/internal/policy"
	"github.com/fyrsmithlabs/mediatord/internal/profile"
	"github.com/fyrsmithlabs/mediatord/internal/telemetry"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the mediation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
}

// run starts the server and blocks until ctx is cancelled or the server
// fails:
//  1. telemetry, then the logger so it can bridge to OTEL
//  2. generator, stores, assessor, policy engine, publisher
//  3. engine and HTTP server
//  4. graceful shutdown within server.shutdown_timeout
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	if h := tel.Health(); h.Degraded {
		zl.Warn("telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	app, err := newApp(ctx, cfg, zl, tel)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := httpapi.NewServer(app.engine, zl, &httpapi.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		BodyLimit: cfg.Server.BodyLimit,
		RateLimit: cfg.Server.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info(ctx, "starting mediatord",
		zap.String("version", version),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("generation", generation.IsAvailable(app.generator)),
		zap.Bool("events", cfg.Events.URL != ""),
		zap.Bool("telemetry", tel.IsEnabled()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(ctx, "shutdown complete")
	return nil
}

// app holds the wired services and the resources they own.
type app struct {
	engine    *engine.Engine
	generator generation.Generator
	closers   []io.Closer
	logger    *zap.Logger
}

// newApp wires the mediation services from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, tel *telemetry.Telemetry) (*app, error) {
	a := &app{logger: logger}

	gen, err := generation.New(generation.Config{
		Provider:      cfg.Generation.Provider,
		APIKey:        cfg.Generation.APIKey.Value(),
		Model:         cfg.Generation.Model,
		BaseURL:       cfg.Generation.BaseURL,
		Timeout:       cfg.Generation.Timeout.Duration(),
		Temperature:   cfg.Generation.Temperature,
		RatePerMinute: cfg.Generation.RatePerMinute,
		Burst:         cfg.Generation.Burst,
	}, logger.Named("generation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	a.generator = gen

	store, err := openProfileStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)

	profiles, err := profile.NewPersister(store, logger.Named("profile"), profile.WithMaxAttempts(cfg.Store.MaxAttempts))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create profile persister: %w", err)
	}

	assessor, err := escalation.NewAssessor(escalation.NewMemoryStore(), gen, &escalation.Config{
		Increment:    cfg.Escalation.Increment,
		DecayAfter:   cfg.Escalation.DecayAfter.Duration(),
		DecayStep:    cfg.Escalation.DecayStep,
		ResetAmount:  cfg.Escalation.ResetAmount,
		HistoryLimit: cfg.Escalation.HistoryLimit,
	}, logger.Named("escalation"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create escalation assessor: %w", err)
	}

	pol, err := policy.NewEngine(policy.NewMemoryStore(cfg.Policy.DefaultThreshold), gen, &policy.Config{
		DefaultThreshold: cfg.Policy.DefaultThreshold,
		HistoryLimit:     cfg.Policy.HistoryLimit,
		UnhelpfulStep:    cfg.Policy.UnhelpfulStep,
		HelpfulStep:      cfg.Policy.HelpfulStep,
	}, logger.Named("policy"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.URL != "" {
		p, err := events.Connect(cfg.Events.URL, cfg.Events.SubjectPrefix, logger.Named("events"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = p
		a.closers = append(a.closers, p)
		logger.Info("connected to nats", zap.String("url", cfg.Events.URL))
	}

	a.engine, err = engine.New(engine.Deps{
		Assessor:  assessor,
		Policy:    pol,
		Profiles:  profiles,
		Generator: gen,
		Publisher: publisher,
		Logger:    logger.Named("engine"),
	},
		engine.WithRewriteTimeout(cfg.Generation.RewriteTimeout.Duration()),
		engine.WithInstrumentation(tel),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func openProfileStore(ctx context.Context, cfg config.StoreConfig) (profile.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return profile.NewMemoryStore(), nil
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		s, err := profile.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open profile store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}
