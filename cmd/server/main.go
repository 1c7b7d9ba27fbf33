package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/throwingafit/storefront/internal/analytics"
	"github.com/throwingafit/storefront/internal/auth"
	"github.com/throwingafit/storefront/internal/chatbot"
	"github.com/throwingafit/storefront/internal/config"
	"github.com/throwingafit/storefront/internal/email"
	"github.com/throwingafit/storefront/internal/forms"
	"github.com/throwingafit/storefront/internal/logging"
	"github.com/throwingafit/storefront/internal/media"
	"github.com/throwingafit/storefront/internal/shopping"
	"github.com/throwingafit/storefront/internal/store"
	"github.com/throwingafit/storefront/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	uploader, err := media.NewUploader(ctx, media.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		slog.Error("failed to connect to object storage", "error", err)
		os.Exit(1)
	}

	st := store.New(pool, logger)

	mailer := email.NewClient(email.Config{
		BaseURL:      cfg.Services.RunURL,
		APIKey:       cfg.Services.APIKey,
		ProjectID:    cfg.Services.ProjectID,
		SenderDomain: cfg.Services.SenderDomain,
		Logger:       logger,
	})

	formService := forms.NewService(st, mailer, analytics.Logger{Log: logger},
		cfg.Admin.OwnerEmail, cfg.Services.ProjectID, logger)

	shopClient := shopping.NewClient(shopping.Config{
		BaseURL:   cfg.Services.ShoppingURL,
		ProjectID: cfg.Services.ProjectID,
		Origin:    cfg.Services.Origin,
		Logger:    logger,
	})

	chatClient := chatbot.NewClient(chatbot.Config{
		BaseURL: cfg.Services.RunURL,
		APIKey:  cfg.Services.APIKey,
		Logger:  logger,
	})

	sessions := auth.NewClient(auth.Config{
		BaseURL:    cfg.Services.UsersURL,
		OwnerEmail: cfg.Admin.OwnerEmail,
		Logger:     logger,
	})

	ratePerMinute := cfg.Rate.RequestsPerMinute
	if !cfg.Rate.Enabled {
		// A very high bucket effectively disables limiting without a
		// separate code path.
		ratePerMinute = 1 << 20
	}

	server := web.NewServer(web.Deps{
		Source:         st,
		Exporter:       st,
		Forms:          formService,
		Shopping:       shopClient,
		Chat:           chatClient,
		Media:          uploader,
		Sessions:       sessions,
		MaxUploadBytes: cfg.Upload.MaxFileSize,
		RatePerMinute:  ratePerMinute,
		Logger:         logger,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
