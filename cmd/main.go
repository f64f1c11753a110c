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

	"github.com/go-chi/chi/v5"
	"github.com/leaguecraft/tournament-engine/brackets"
	"github.com/leaguecraft/tournament-engine/cache"
	"github.com/leaguecraft/tournament-engine/config"
	"github.com/leaguecraft/tournament-engine/db"
	"github.com/leaguecraft/tournament-engine/handlers"
	"github.com/leaguecraft/tournament-engine/repositories"
	api "github.com/leaguecraft/tournament-engine/routes"
	"github.com/leaguecraft/tournament-engine/services"
	"github.com/leaguecraft/tournament-engine/storage"
	_ "github.com/lib/pq"
)

// How often the registration-deadline scheduler runs.
const schedulerInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Banner uploads are optional; without R2 credentials the banner
	// endpoint answers 503 and everything else works normally.
	var uploader storage.FileUploader
	if cfg.BannerUploadsEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 credentials not configured, banner uploads disabled")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	entryRepo := repositories.NewPostgresEntryRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	directoryRepo := repositories.NewPostgresDirectoryRepository(dbConn)
	walletRepo := repositories.NewPostgresWalletRepository(dbConn)
	inventoryRepo := repositories.NewPostgresInventoryRepository(dbConn)
	logger.Info("repositories initialized")

	txRunner := db.NewSQLRunner(dbConn)
	engineCache := cache.New()

	registryService := services.NewRegistryService(
		txRunner,
		tournamentRepo,
		entryRepo,
		matchRepo,
		directoryRepo,
		walletRepo,
		engineCache,
		wsHub,
		uploader,
		logger,
	)
	advancerService := services.NewAdvancerService(
		txRunner,
		tournamentRepo,
		entryRepo,
		matchRepo,
		engineCache,
		wsHub,
		logger,
	)
	rewardService := services.NewRewardService(
		txRunner,
		tournamentRepo,
		entryRepo,
		walletRepo,
		inventoryRepo,
		engineCache,
		wsHub,
		logger,
	)
	logger.Info("services initialized")

	// Registration-deadline scheduler: tops up and starts tournaments whose
	// registration window has closed.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("registration scheduler started", slog.Duration("interval", schedulerInterval))

		if err := registryService.CloseDueRegistrations(schedulerCtx); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}
		for {
			select {
			case <-schedulerCtx.Done():
				return
			case <-ticker.C:
				if err := registryService.CloseDueRegistrations(schedulerCtx); err != nil {
					logger.Error("scheduler: periodic run failed", slog.Any("error", err))
				}
			}
		}
	}()

	tournamentHandler := handlers.NewTournamentHandler(registryService, rewardService)
	matchHandler := handlers.NewMatchHandler(advancerService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey, tournamentHandler, matchHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopScheduler()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
