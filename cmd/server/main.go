package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/api"
	"github.com/Luis200410/Improve/internal/auth"
	"github.com/Luis200410/Improve/internal/catalog"
	"github.com/Luis200410/Improve/internal/clock"
	"github.com/Luis200410/Improve/internal/config"
	"github.com/Luis200410/Improve/internal/service"
	"github.com/Luis200410/Improve/internal/storage"
	"github.com/Luis200410/Improve/internal/telemetry"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second

	devUserID   = "u1"
	devUserName = "Demo User"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "improve",
		Short:         "Focus sessions, streaks and progression",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newUserCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for SQL backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := storage.NewStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			m, ok := store.(storage.Migrator)
			if !ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no schema to migrate\n", cfg.StorageBackend)
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.StorageBackend)
			return nil
		},
	}
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage API users"}

	var name, token string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user and its bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := storage.NewStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := migrateIfNeeded(ctx, store); err != nil {
				return err
			}

			if token == "" {
				token = uuid.NewString()
			}
			u := &internal.User{ID: uuid.NewString(), Token: token, Name: name}
			if err := store.CreateUser(ctx, u); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) token=%s\n", u.Name, u.ID, u.Token)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&token, "token", "", "bearer token (generated when empty)")
	_ = add.MarkFlagRequired("name")

	user.AddCommand(add)
	return user
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func bootstrap() (*config.Config, *internal.ZapLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrateIfNeeded(ctx context.Context, store storage.Store) error {
	if m, ok := store.(storage.Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warnf("tracing shutdown: %v", err)
		}
	}()

	clk := clock.SystemClock{}
	store, err := storage.NewStore(ctx, cfg, logger, storage.WithClock(clk))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("close storage: %v", err)
		}
	}()
	if err := migrateIfNeeded(ctx, store); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if cfg.Env == "development" && cfg.AuthMode == config.AuthLocal && cfg.DevToken != "" {
		if err := store.CreateUser(ctx, &internal.User{ID: devUserID, Token: cfg.DevToken, Name: devUserName}); err != nil {
			return fmt.Errorf("seed dev user: %w", err)
		}
		logger.Infof("development user %q ready", devUserName)
	}

	provider, err := auth.NewProvider(cfg, store, logger)
	if err != nil {
		return err
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	pomodoro := service.NewPomodoroService(store, service.PomodoroOptions{
		Clock:       clk,
		Location:    cfg.Location(),
		ForestLimit: cfg.ForestRecentLimit,
		Logger:      logger,
	})
	app := api.NewApp(logger, pomodoro, service.NewDashboardService(cat, pomodoro))

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app, auth.AuthMiddleware(provider, logger)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s (storage=%s, auth=%s)", cfg.HTTPAddr, cfg.StorageBackend, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
