package main

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

	"github.com/Dosada05/league-engine/brackets"
	"github.com/Dosada05/league-engine/config"
	"github.com/Dosada05/league-engine/db"
	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/handlers"
	"github.com/Dosada05/league-engine/metrics"
	"github.com/Dosada05/league-engine/middleware"
	"github.com/Dosada05/league-engine/repositories"
	api "github.com/Dosada05/league-engine/routes"
	"github.com/Dosada05/league-engine/scheduler"
	"github.com/Dosada05/league-engine/services"
	"github.com/Dosada05/league-engine/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(cfg.DatabaseURL, cfg.DatabaseTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return err
	}
	logger.Info("database ready")

	metrics.InitRegistry()

	categoryRepo := repositories.NewPostgresCategoryRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	edgeRepo := repositories.NewPostgresEdgeRepository(dbConn)
	formatRepo := repositories.NewPostgresFormatRepository(dbConn)

	bus := events.NewBus(logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("failed to close event bus", slog.Any("error", err))
		}
	}()

	hub := brackets.NewHub(logger)
	go hub.Run(ctx)

	txManager := services.NewTxManager(dbConn, cfg.LockTimeout, logger)
	progressionService := services.NewProgressionService(services.ProgressionDeps{
		Tx:         txManager,
		Categories: categoryRepo,
		Rounds:     roundRepo,
		Groups:     groupRepo,
		Matches:    matchRepo,
		Teams:      teamRepo,
		Edges:      edgeRepo,
		Formats:    formatRepo,
		Events:     bus,
		Logger:     logger,
	})
	matchService := services.NewMatchService(services.MatchDeps{
		Tx:      txManager,
		Rounds:  roundRepo,
		Matches: matchRepo,
		Teams:   teamRepo,
		Edges:   edgeRepo,
		Events:  bus,
		Logger:  logger,
	})
	bracketService := services.NewBracketService(services.BracketDeps{
		Tx:         txManager,
		Categories: categoryRepo,
		Rounds:     roundRepo,
		Groups:     groupRepo,
		Matches:    matchRepo,
		Teams:      teamRepo,
		Edges:      edgeRepo,
		Formats:    formatRepo,
		Events:     bus,
		Logger:     logger,
		CacheTTL:   cfg.BracketCacheTTL,
	})
	formatService := services.NewFormatService(formatRepo)

	if err := bus.Subscribe(ctx, "websocket", events.ForwardToHub(hub)); err != nil {
		return err
	}
	if err := bus.Subscribe(ctx, "bracket-cache", events.InvalidateOn(bracketService)); err != nil {
		return err
	}
	if cfg.R2.Enabled() {
		store, err := storage.NewR2Store(ctx, storage.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 store: %w", err)
		}
		archiver := storage.NewStandingsArchiver(store, categoryRepo, teamRepo, logger)
		if err := bus.Subscribe(ctx, "standings-archive", archiver.Handler()); err != nil {
			return err
		}
		logger.Info("standings archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	if cfg.SyncCron != "" {
		sched := scheduler.New(categoryRepo, progressionService, logger)
		if err := sched.ScheduleSync(cfg.SyncCron); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Progression: handlers.NewProgressionHandler(progressionService),
		Match:       handlers.NewMatchHandler(matchService),
		Bracket:     handlers.NewBracketHandler(bracketService),
		Format:      handlers.NewFormatHandler(formatService),
		WebSocket:   handlers.NewWebSocketHandler(hub, categoryRepo, cfg.CORSAllowedOrigin, logger),
	}, api.Options{
		Auth:           middleware.NewAuthenticator(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigin,
		Ready: func(r *http.Request) error {
			return dbConn.PingContext(r.Context())
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
