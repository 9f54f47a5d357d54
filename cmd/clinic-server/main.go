package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentalos/dentalos/internal/config"
	"github.com/dentalos/dentalos/internal/domain/consultation"
	"github.com/dentalos/dentalos/internal/domain/imaging"
	"github.com/dentalos/dentalos/internal/domain/imaging/source"
	"github.com/dentalos/dentalos/internal/domain/patient"
	"github.com/dentalos/dentalos/internal/platform/auth"
	"github.com/dentalos/dentalos/internal/platform/db"
	"github.com/dentalos/dentalos/internal/platform/filestore"
	"github.com/dentalos/dentalos/internal/platform/middleware"
	"github.com/dentalos/dentalos/internal/platform/notification"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic API server with X-ray study ingestion",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.EnsureSchema(ctx, pool); err != nil {
				return fmt.Errorf("schema migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("clinic-server", version)
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	logger.Info().Msg("connected to database")

	// File storage for assigned X-ray images
	store, err := filestore.NewDiskStore(cfg.XrayStorageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open xray storage")
	}

	// Operator notifications
	notifier := notification.New(logger, notification.LogSink{Logger: logger})
	defer notifier.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.APIKeyHeader},
	}))

	// Staff API: JWT in production, permissive dev identity locally.
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Domain services
	patientSvc := patient.NewService(patient.NewRepo(pool))
	consultationSvc := consultation.NewService(consultation.NewRepo(pool))

	queue := imaging.NewQueue()
	matcher := imaging.NewMatcher(patientSvc)
	resolver := imaging.NewResolver(consultationSvc)
	assigner := imaging.NewAssigner(store, consultationSvc, logger)
	imagingSvc := imaging.NewService(queue, matcher, resolver, assigner, patientSvc, notifier, logger)

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)

	imagingHandler := imaging.NewHandler(imagingSvc)
	imagingHandler.RegisterRoutes(apiV1)

	// Device push API, authorized by per-device keys.
	if len(cfg.DeviceAPIKeys) > 0 {
		deviceGroup := e.Group("/api/v1/device", auth.APIKeyMiddleware(cfg.DeviceAPIKeys))
		imagingHandler.RegisterDeviceRoutes(deviceGroup)
	}

	// Stored image files are served from the same prefix the file store
	// bakes into assignment URLs.
	e.Static("/files", cfg.XrayStorageDir)

	// DB health check endpoint
	e.GET("/health/db", db.HealthHandler(pool))

	// Directory watchers
	watchCtx, stopWatchers := context.WithCancel(context.Background())
	defer stopWatchers()
	var watchers sync.WaitGroup
	if err := startWatchers(watchCtx, &watchers, cfg, imagingSvc, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to start study sources")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopWatchers()
	watchers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// startWatchers launches one scanner goroutine per configured vendor share.
func startWatchers(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, svc *imaging.Service, logger zerolog.Logger) error {
	dirs, err := cfg.ParseWatchDirs()
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		logger.Info().Msg("no watch directories configured")
		return nil
	}

	runner := source.NewRunner(svc, cfg.XrayScanInterval, logger)
	for _, dir := range dirs {
		adapter, err := source.ForVendor(dir.Vendor, dir.Path)
		if err != nil {
			return err
		}
		trigger := source.Watch(ctx, dir.Path, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx, adapter, trigger)
		}()
	}
	return nil
}
