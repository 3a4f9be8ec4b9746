package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/taskmanager-auth/internal/auth"
	"github.com/redmonkez12/taskmanager-auth/internal/config"
	"github.com/redmonkez12/taskmanager-auth/internal/email"
	httpServer "github.com/redmonkez12/taskmanager-auth/internal/http"
	"github.com/redmonkez12/taskmanager-auth/internal/httputil"
	"github.com/redmonkez12/taskmanager-auth/internal/logging"
)

// @title           Task Manager Auth API
// @version         1.0
// @description     Registration, login, email verification, password reset and JWT sessions.

// @host      localhost:8000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskmanager-auth",
		Short:         "Authentication API for the task manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	// Allow running without subcommand (default to serve)
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	if err := backend.migrate(ctx); err != nil {
		return fmt.Errorf("failed to prepare store: %w", err)
	}

	tokenIssuer := auth.NewTokenIssuer(cfg.Auth)

	authService := auth.NewService(
		backend.store,
		auth.NewHasher(auth.DefaultHashParams),
		tokenIssuer,
		auth.NewOneTimeTokens(auth.OneTimeTokenTTL),
		email.NewService(cfg.Email, logger),
		logger,
		auth.ServiceOptions{
			ForgotPasswordURL:  cfg.Email.ForgotPasswordRedirectURL,
			RevealUnknownEmail: cfg.Auth.RevealUnknownEmail,
		},
	)

	boundary := httputil.NewBoundary(cfg.Server.IsDevelopment(), func(r *http.Request, status int, err error) {
		l := logging.GetLoggerFromContext(r.Context())
		if status >= http.StatusInternalServerError {
			l.Error("request failed", "status", status, "error", err)
			return
		}
		l.Warn("request rejected", "status", status, "error", err)
	})

	authHandler := auth.NewHandler(
		authService,
		auth.CookieOptions{
			Secure:     cfg.Server.SecureCookies,
			AccessTTL:  cfg.Auth.AccessTokenDuration,
			RefreshTTL: cfg.Auth.RefreshTokenDuration,
		},
		cfg.Email.VerifyEmailURL,
	)
	authMiddleware := auth.NewMiddleware(tokenIssuer, authService, boundary)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, boundary, logger)
	server := httpServer.NewServer(cfg.Server, router, logger)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	if err := backend.migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("migration complete", "store", cfg.Store.Driver)
	return nil
}
