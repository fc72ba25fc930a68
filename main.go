package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-reports/pkg/cache"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/database"
	"github.com/ekaya-inc/ekaya-reports/pkg/handlers"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/middleware"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
	"github.com/ekaya-inc/ekaya-reports/pkg/retry"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("datasource_type", cfg.Datasource.Type),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Bool("strict_identifiers", cfg.Reports.StrictIdentifiers),
	)

	ctx := context.Background()

	connectRetry := retry.StartupConfig()
	connectRetry.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Connection attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	db, err := retry.DoWithResult(ctx, connectRetry, func() (*database.DB, error) {
		return database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if cfg.Reports.RunMigrations {
		if err := migrate(cfg, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	rdb, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		// Options are recomputed on every request without Redis.
		logger.Warn("Redis unavailable, option caching disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	if !datasource.IsRegistered(cfg.Datasource.Type) {
		logger.Fatal("Datasource type not available",
			zap.String("type", cfg.Datasource.Type),
			zap.Any("registered", datasource.RegisteredAdapters()))
	}
	ds, err := retry.DoWithResult(ctx, connectRetry, func() (datasource.Datasource, error) {
		return datasource.Open(ctx, cfg.Datasource.Type, cfg.Datasource.AsMap(), logger)
	})
	if err != nil {
		logger.Fatal("Failed to open report datasource", zap.String("error", logging.SanitizeError(err)))
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Warn("Failed to close report datasource", zap.Error(err))
		}
	}()

	// Repositories
	templateRepo := repositories.NewReportTemplateRepository(db, logger)

	// Services
	optionCache := cache.NewOptionCache(rdb, cfg.Reports.OptionCacheTTL, logger)
	templateService := services.NewReportTemplateService(templateRepo, ds, optionCache, cfg.Reports.StrictIdentifiers, logger)
	reportService := services.NewReportService(templateRepo, ds, cfg.Reports.StrictIdentifiers, logger)
	analyzer := services.NewSchemaAnalyzer(ds, logger)

	if cfg.Reports.SeedFile != "" {
		seeder := services.NewTemplateSeeder(templateRepo, templateService, logger)
		created, err := seeder.SeedFile(ctx, cfg.Reports.SeedFile)
		if err != nil {
			logger.Fatal("Failed to seed report templates", zap.Error(err))
		}
		logger.Info("Seeded report templates", zap.Int("created", created))
	}

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, ds, logger).RegisterRoutes(mux)
	handlers.NewTemplatesHandler(templateService, logger).RegisterRoutes(mux)
	handlers.NewReportsHandler(reportService, templateService, analyzer, logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      middleware.RequestLogger(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("Starting ekaya-reports", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

// migrate applies the embedded engine migrations over a short-lived database/sql handle.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, logger)
}
