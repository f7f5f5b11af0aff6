package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/patient-records/internal/config"
	"github.com/jwalitptl/patient-records/internal/handler/health"
	"github.com/jwalitptl/patient-records/internal/handler/prometheus"
	"github.com/jwalitptl/patient-records/internal/repository/sqlstore"
	"github.com/jwalitptl/patient-records/pkg/logger"
	"github.com/jwalitptl/patient-records/pkg/messaging"
	"github.com/jwalitptl/patient-records/pkg/messaging/redis"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/worker"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "patients-worker",
		Short:         "Relay patient change events from the outbox to Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yml")

	listen := rootCmd.Flags().String("listen", ":8081", "address for health and metrics endpoints")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWorker(configFile, *listen)
	}

	rootCmd.AddCommand(tailCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Format: cfg.Format,
	})
	l.SetGlobal()
	return l
}

func brokerConfig(cfg config.RedisConfig) redis.Config {
	return redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func runWorker(configFile, listen string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg.Log)
	m := metrics.NewMetrics("patients")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	patientRepo := sqlstore.NewPatientRepository(db, m)
	if err := patientRepo.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	outboxRepo := sqlstore.NewOutboxRepository(db)

	broker, err := redis.NewRedisBroker(ctx, brokerConfig(cfg.Redis), log.Zerolog())
	if err != nil {
		return err
	}
	defer broker.Close()

	publisher := messaging.NewChannelPublisher(broker, cfg.Redis.Channel)

	processor, err := worker.NewOutboxProcessor(outboxRepo, publisher, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	if err != nil {
		return err
	}

	retention, err := worker.NewRetentionWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log, m)
	if err != nil {
		return err
	}

	// Health and metrics endpoints
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(patientRepo).WithCheck("broker", broker).RegisterRoutes(engine)
	if cfg.Metrics.Enabled {
		prometheus.New(m.Registry).RegisterRoutes(engine, cfg.Metrics.Path)
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health server failed")
			stop()
		}
	}()

	log.Info("Worker started",
		"channel", publisher.Channel(),
		"listen", listen,
		"database", cfg.Database.Driver)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		retention.Start(ctx)
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server shutdown failed")
	}

	wg.Wait()
	return nil
}

// tailCmd prints events as they arrive on the channel
func tailCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print patient change events published on the Redis channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := newLogger(cfg.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker, err := redis.NewRedisBroker(ctx, brokerConfig(cfg.Redis), log.Zerolog())
			if err != nil {
				return err
			}
			defer broker.Close()

			messages, err := broker.Subscribe(ctx, cfg.Redis.Channel)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for data := range messages {
				msg, err := messaging.Decode(data)
				if err != nil {
					log.Warn("Skipping undecodable message", "error", err.Error())
					continue
				}
				fmt.Fprintf(out, "%s %s %s\n", msg.OccurredAt.Format(time.RFC3339), msg.Type, msg.Payload)
			}
			return nil
		},
	}
}
