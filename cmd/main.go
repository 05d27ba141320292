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
	_ "github.com/lib/pq"

	"github.com/aasen99/pro11/brackets"
	"github.com/aasen99/pro11/config"
	"github.com/aasen99/pro11/db"
	"github.com/aasen99/pro11/handlers"
	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
	api "github.com/aasen99/pro11/routes"
	"github.com/aasen99/pro11/services"
	"github.com/aasen99/pro11/storage"
)

// How often the background scheduler advances match statuses.
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
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn, cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database schema up to date")

	var uploader storage.FileUploader
	if cfg.R2Enabled() {
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
		logger.Info("R2 storage not configured, logo uploads disabled")
	}

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)

	var emailService *services.EmailService
	if cfg.EmailEnabled() {
		emailService = services.NewEmailService(cfg)
		logger.Info("email service initialized", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Info("SMTP not configured, confirmation mails disabled")
	}

	authService := services.NewAuthService(cfg.AdminPasswordHash, cfg.JWTSecretKey)
	matchService := services.NewMatchService(matchRepo, wsHub, logger)
	teamService := services.NewTeamService(dbConn, teamRepo, tournamentRepo, matchRepo, emailService, uploader, logger)
	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, teamRepo, matchRepo, wsHub, logger)
	logger.Info("services initialized")

	// Background scheduler: flips scheduled matches live once their time and
	// round gate allow it, and nudges overlong live matches on.
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("match status scheduler started", slog.Duration("interval", schedulerInterval))

		for {
			advanceOngoingTournaments(tournamentService, matchService, logger)
			<-ticker.C
		}
	}()

	authHandler := handlers.NewAuthHandler(authService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	teamHandler := handlers.NewTeamHandler(teamService)
	matchHandler := handlers.NewMatchHandler(matchService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		cfg.CORSOrigins,
		authHandler,
		tournamentHandler,
		teamHandler,
		matchHandler,
		webSocketHandler,
	)
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
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

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

func advanceOngoingTournaments(tournaments services.TournamentService, matches services.MatchService, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerInterval)
	defer cancel()

	status := models.TournamentOngoing
	list, err := tournaments.List(ctx, &status)
	if err != nil {
		logger.Error("scheduler: failed to list ongoing tournaments", slog.Any("error", err))
		return
	}
	for _, t := range list {
		if err := matches.AdvanceMatchStatuses(ctx, t.ID); err != nil {
			logger.Error("scheduler: failed to advance match statuses",
				slog.Int("tournament_id", t.ID), slog.Any("error", err))
		}
	}
}
