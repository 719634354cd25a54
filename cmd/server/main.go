package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"ghl-sync-bridge/internal/auth"
	"ghl-sync-bridge/internal/config"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/handler"
	"ghl-sync-bridge/internal/middleware"
	"ghl-sync-bridge/internal/obs"
	"ghl-sync-bridge/internal/reconcile"
	"ghl-sync-bridge/internal/store"
)

const (
	serviceName = "ghl-sync-bridge"
	version     = "0.1.0"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:   serviceName,
		Usage:  "Mirror platform appointments and contacts into a local store.",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and webhook receiver.",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the schema to DATABASE_URL and exit.",
				Action: migrate,
			},
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("store ready", "backend", scheme(cfg.DatabaseURL))

	client := ghl.New(ghl.Options{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.APIKey,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	})
	if !cfg.HasCredentials() {
		logger.Warn("GHL_API_KEY not set, write endpoints will answer 500")
	}

	rec := reconcile.New(st, cfg.Location, logger)
	h := handler.New(cfg, client, rec, st, logger)

	limiter := middleware.NewRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst)
	defer limiter.Close()

	opts := handler.RouterOptions{
		JWTSecret: cfg.JWTSecret,
		Limiter:   limiter,
		Logger:    logger,
	}
	if cfg.OTLPEndpoint != "" {
		opts.TraceService = serviceName
	}
	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "api_auth", cfg.JWTSecret != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogLevel)

	st, err := store.Open(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(c.Context); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migration applied", "backend", scheme(cfg.DatabaseURL))
	return nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint an operator bearer token signed with API_JWT_SECRET.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "operator", Usage: "Token subject."},
			&cli.DurationFlag{Name: "ttl", Value: auth.DefaultTTL, Usage: "Token lifetime."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("API_JWT_SECRET is not set")
			}
			tok, err := auth.MakeToken(c.String("subject"), cfg.JWTSecret, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, tok)
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// scheme names the store backend without leaking credentials into logs.
func scheme(dsn string) string {
	if i := strings.Index(dsn, ":"); i > 0 {
		return dsn[:i]
	}
	return dsn
}
