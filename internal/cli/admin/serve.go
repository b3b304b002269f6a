package admin

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

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docextract/internal/api/handlers"
	"github.com/cloo-solutions/docextract/internal/api/middleware"
	"github.com/cloo-solutions/docextract/internal/cli"
	"github.com/cloo-solutions/docextract/internal/config"
	"github.com/cloo-solutions/docextract/internal/database"
	"github.com/cloo-solutions/docextract/internal/jobs"
	"github.com/cloo-solutions/docextract/internal/repository"
	"github.com/cloo-solutions/docextract/internal/server"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/cloo-solutions/docextract/internal/storage"
	"github.com/cloo-solutions/docextract/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and extraction worker",
		Long: `Start the docextract API server on the specified port.

With DOCEXTRACT_DATABASE_URL set, runs and entities are persisted and the
asynchronous job worker runs alongside the API. With DOCEXTRACT_S3_* set, jobs can
reference uploaded documents and results are stored in the bucket.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from DOCEXTRACT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger, closer, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if cfg.HasSentry() {
		// 10% sampling in production, everything in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	docs, err := cli.NewDocumentService(cfg, cli.PipelineOptions{}, logger)
	if err != nil {
		return err
	}

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Client, err = cli.NewS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Info("object storage ready", "bucket", s3Client.Bucket())
	}

	routerCfg := server.RouterConfig{
		APIKeys:           middleware.NewStaticKeys(cfg.APIKeys),
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Logger:            logger,
		ExtractionHandler: handlers.NewExtractionHandler(docs),
		RunHandler:        handlers.NewRunHandler(docs),
	}

	var worker *jobs.Worker
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
			if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		docs.WithPersistence(
			repository.NewTxRunner(pool),
			repository.NewRunRepository(pool),
			repository.NewEntityRepository(pool),
		)
		jobRepo := repository.NewJobRepository(pool)

		// nil interfaces, not typed nil pointers, when storage is off
		var (
			jobStorage  service.StorageClientInterface
			workerStore jobs.ObjectStore
		)
		if s3Client != nil {
			jobStorage = s3Client
			workerStore = s3Client
		}

		routerCfg.JobHandler = handlers.NewJobHandler(service.NewJobService(jobRepo, docs, jobStorage))

		processor := jobs.NewExtractionWorker(jobRepo, docs, workerStore, cfg.WorkerBatchSize, logger)
		worker = jobs.NewWorker(processor, cfg.WorkerPollInterval, logger)
		go worker.Start(ctx)
	} else {
		logger.Warn("DOCEXTRACT_DATABASE_URL not set: runs are not persisted and job endpoints are disabled")
	}

	if len(cfg.APIKeys) == 0 {
		logger.Warn("DOCEXTRACT_API_KEYS not set: API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// MigrateCmd applies or rolls back database migrations
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := migrationConfig()
			if err != nil {
				return err
			}
			return database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, logger, err := migrationConfig()
			if err != nil {
				return err
			}
			return database.MigrateDown(cfg.DatabaseURL, cfg.MigrationsPath, steps, logger)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func migrationConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("%w: DOCEXTRACT_DATABASE_URL is required", config.ErrInvalidConfig)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return cfg, logger, nil
}
