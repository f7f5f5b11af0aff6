package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/patient-records/internal/config"
	authhandler "github.com/jwalitptl/patient-records/internal/handler/auth"
	"github.com/jwalitptl/patient-records/internal/handler/health"
	patienthandler "github.com/jwalitptl/patient-records/internal/handler/patient"
	"github.com/jwalitptl/patient-records/internal/middleware"
	"github.com/jwalitptl/patient-records/internal/repository"
	"github.com/jwalitptl/patient-records/internal/repository/sqlstore"
	"github.com/jwalitptl/patient-records/internal/router"
	authservice "github.com/jwalitptl/patient-records/internal/service/auth"
	patientservice "github.com/jwalitptl/patient-records/internal/service/patient"
	"github.com/jwalitptl/patient-records/pkg/auth"
	"github.com/jwalitptl/patient-records/pkg/logger"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/security"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "patients-api",
		Short:         "Patient records HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(migrateCmd(&configFile))
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configFile)
		},
	}
}

func migrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the patients and outbox tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := newLogger(cfg.Log)

			db, err := sqlstore.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := sqlstore.NewPatientRepository(db, nil).Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info("Schema is up to date", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for an auth.users entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := security.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default 10)")
	return cmd
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Format: cfg.Format,
	})
	l.SetGlobal()
	return l
}

func runServer(configFile string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg.Log)
	m := metrics.NewMetrics("patients")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlstore.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	patientRepo := sqlstore.NewPatientRepository(db, m)
	if err := patientRepo.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Info("Connected to database",
		"driver", cfg.Database.Driver,
		"path", cfg.Database.Path)

	var outboxRepo repository.OutboxRepository
	if cfg.Events.Enabled {
		outboxRepo = sqlstore.NewOutboxRepository(db)
		log.Info("Patient change events enabled", "channel", cfg.Redis.Channel)
	}

	// Initialize services
	hasher := security.NewBcryptHasher(0)
	jwtSvc := auth.NewJWTService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	authSvc := authservice.NewService(cfg.Auth.Users, hasher, jwtSvc, cfg.Auth.TokenTTL)
	patientSvc := patientservice.NewService(patientRepo, outboxRepo, log)

	authMW := middleware.NewAuthMiddleware(authSvc, cfg.Auth.Enabled)
	if !authMW.Enabled() {
		log.Warn("Authentication is disabled; every patient route is open")
	}

	routerCfg := router.RouterConfig{
		Mode:         cfg.Server.Mode,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORSOrigins:  cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = &middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
			TTL:   cfg.RateLimit.TTL,
		}
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	r, err := router.NewRouter(
		routerCfg,
		m,
		authMW,
		patienthandler.NewHandler(patientSvc),
		authhandler.NewHandler(authSvc),
		health.NewHandler(patientRepo),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Wait for interrupt signal to gracefully shutdown the server
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
