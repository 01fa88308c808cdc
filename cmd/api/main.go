package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/cache"
	"github.com/kodepos-id/kodepos_api/internal/config"
	"github.com/kodepos-id/kodepos_api/internal/database"
	"github.com/kodepos-id/kodepos_api/internal/handler"
	"github.com/kodepos-id/kodepos_api/internal/middleware"
	"github.com/kodepos-id/kodepos_api/internal/repository"
	"github.com/kodepos-id/kodepos_api/internal/service"
	"github.com/kodepos-id/kodepos_api/internal/worker"
)

// main is the application entrypoint for the Kodepos API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting kodepos api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis (optional hot tier; the table cache alone is
	// sufficient when no Redis host is configured)
	var redisClient *cache.RedisClient
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis connection failed - continuing with table cache only")
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info().Msg("redis connected successfully")
		}
	}

	// 4. Initialize repositories
	postalRepo := repository.NewPostalRepository(db)
	importRepo := repository.NewImportRepository(db)
	cacheRepo := repository.NewCacheRepository(db)

	// 5. Initialize caching
	resultCache := cache.NewResultCache(cacheRepo, redisClient)

	// 6. Initialize services
	validator := service.NewRecordValidator(postalRepo)
	transformer := service.NewRecordTransformer()
	inserter := service.NewBatchInserter(postalRepo, importRepo, cfg.Import.BatchDelay)

	archiveSvc, err := service.NewArchiveService(&cfg.S3)
	if err != nil {
		log.Warn().Err(err).Msg("archive service initialization failed - upload archival disabled")
		archiveSvc = nil
	}

	importSvc := service.NewImportService(importRepo, validator, transformer, inserter, archiveSvc, cfg.Import)
	geoSvc := service.NewGeoService(postalRepo)
	querySvc := service.NewQueryService(postalRepo, geoSvc, resultCache)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(db, postalRepo),
		Postal: handler.NewPostalHandler(querySvc),
		Import: handler.NewImportHandler(importSvc, cfg.Import),
	}

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	go worker.NewCachePurgeWorker(cacheRepo, cfg.Worker.CachePurgeInterval).Start(ctx)
	go worker.NewStatsPurgeWorker(importRepo, cfg.Worker.StatsPurgeInterval, cfg.Worker.StatsRetention).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health *handler.HealthHandler
	Postal *handler.PostalHandler
	Import *handler.ImportHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers) {
	// Legacy routes keep the original kodepos wire shape.
	router.GET("/search", handlers.Postal.SearchLegacy)
	router.GET("/detect", handlers.Postal.DetectLegacy)
	router.GET("/nearby", handlers.Postal.NearbyLegacy)

	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Versioned read routes with the standard envelope.
	postal := router.Group("/v1/postal-codes")
	{
		postal.GET("/search", handlers.Postal.Search)
		postal.GET("/detect", handlers.Postal.Detect)
		postal.GET("/nearby", handlers.Postal.Nearby)
	}

	// Bulk import routes.
	imports := router.Group("/v1/import")
	{
		imports.POST("", handlers.Import.CreateImport)
		imports.GET("", handlers.Import.ListImports)
		imports.GET("/:id", handlers.Import.GetImport)
		imports.GET("/:id/errors", handlers.Import.GetImportErrors)
		imports.DELETE("/:id", handlers.Import.CancelImport)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
