package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jeffmuturi45/EVENTIFY/internal/di"
	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository/migrations"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/config"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/database"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/kafka"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/redis"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		migrate     bool
		noWorkers   bool
		showVersion bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "path to a .env or config file")
	pflag.BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	pflag.BoolVar(&noWorkers, "no-workers", false, "serve HTTP only, without the expiry and payment poll workers")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadWithPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if showVersion {
		fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := "info"
	if cfg.App.Debug {
		level = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if err := dto.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	if migrate {
		if err := applyMigrations(cfg); err != nil {
			return err
		}
	}

	db, err := database.NewPostgres(ctx, database.FromConfig(&cfg.Database, cfg.OTel.Enabled))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, redis.FromConfig(&cfg.Redis, cfg.OTel.Enabled))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	containerCfg := &di.ContainerConfig{Config: cfg, DB: db, Redis: redisClient}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:        cfg.Kafka.Brokers,
			ClientID:       cfg.Kafka.ClientID,
			ProduceTimeout: 10 * time.Second,
			RecordRetries:  5,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		defer producer.Close()
		containerCfg.Publisher = producer
	}

	container := di.NewContainer(containerCfg)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      container.Router(cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
			zap.Bool("mpesa_sandbox", cfg.MPesa.IsSandbox()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if !noWorkers {
		g.Go(func() error { return container.ExpiryWorker.Start(gctx) })
		g.Go(func() error { return container.PaymentPollWorker.Start(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func applyMigrations(cfg *config.Config) error {
	migrator, err := database.NewMigrator(migrations.FS, migrations.Dir, cfg.Database.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Get().Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
