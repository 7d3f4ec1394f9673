package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snertp/labsched/internal/config"
	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/capacity"
	"github.com/snertp/labsched/internal/domain/planning"
	"github.com/snertp/labsched/internal/domain/prediction"
	"github.com/snertp/labsched/internal/domain/reschedule"
	"github.com/snertp/labsched/internal/domain/sample"
	"github.com/snertp/labsched/internal/platform/db"
	"github.com/snertp/labsched/internal/platform/middleware"
	"github.com/snertp/labsched/internal/platform/notification"
	"github.com/snertp/labsched/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labsched-server",
		Short: "Laboratory test scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Use Atlas CLI for migration rollback: atlas schema apply --dir migrations/")
			return nil
		},
	})

	return cmd
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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	tele := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		Environment: cfg.Env,
	})
	telemetry.SetDefault(tele)
	defer tele.Shutdown(ctx)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(tele.TracingMiddleware())
	e.Use(tele.MetricsMiddleware())

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	// Optimization runs may legitimately take the full solver budget.
	apiV1.Use(middleware.RequestTimeout(15*time.Second, "/api/v1/plannings"))

	// Repositories
	sampleRepo := sample.NewSampleRepoPG(pool)
	testRepo := sample.NewTestRepoPG(pool)
	ruleRepo := calendar.NewRuleRepoPG(pool)
	capacityRepo := capacity.NewEntryRepoPG(pool)
	planningRepo := planning.NewRepoPG(pool)
	deferredRepo := reschedule.NewTaskRepoPG(pool)

	// Notifications (delivery is a collaborator concern; the in-process
	// senders just record and log).
	templates := notification.NewTemplateEngine()
	notifier := notification.NewNotificationManager(&notification.MockEmailSender{}, &notification.MockSMSSender{}, templates)

	// Services
	calendarSvc := calendar.NewService(ruleRepo)
	capacitySvc := capacity.NewService(capacityRepo, testRepo)
	sampleSvc := sample.NewService(sampleRepo, testRepo, capacitySvc)
	predictionSvc := prediction.NewService(sampleRepo, capacitySvc, calendarSvc)
	planningSvc := planning.NewService(planningRepo, testRepo, sampleRepo, calendarSvc, pool).
		WithTuning(planning.Tuning{
			SolveBudget:    time.Duration(cfg.SolverTimeBudgetSeconds) * time.Second,
			MaxHorizonDays: cfg.HorizonMaxDays,
			SectionLimits: map[string]int{
				sample.SectionRoute:     cfg.SectionCapacityRoute,
				sample.SectionMecanique: cfg.SectionCapacityMecanique,
			},
		}).
		WithNotifier(notifier, cfg.NotifyRecipient)
	rescheduleSvc := reschedule.NewService(deferredRepo, sampleRepo, testRepo).
		WithNotifier(notifier, cfg.NotifyRecipient)

	// Handlers
	sample.NewHandler(sampleSvc).RegisterRoutes(apiV1)
	calendar.NewHandler(calendarSvc).RegisterRoutes(apiV1)
	capacity.NewHandler(capacitySvc).RegisterRoutes(apiV1)
	prediction.NewHandler(predictionSvc).RegisterRoutes(apiV1)
	planning.NewHandler(planningSvc).RegisterRoutes(apiV1)
	reschedule.NewHandler(rescheduleSvc).RegisterRoutes(apiV1)
	notification.NewNotificationHandler(notifier).RegisterRoutes(apiV1)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", func(c echo.Context) error {
		status := db.CheckHealth(c.Request().Context(), pool)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, status)
	})
	e.GET("/metrics", tele.PrometheusHandler())

	// State gauges refresh in the background.
	gaugeCtx, stopGauges := context.WithCancel(ctx)
	defer stopGauges()
	go refreshGauges(gaugeCtx, tele.Gauges(), pool, planningRepo, sampleRepo)

	// Graceful shutdown
	addr := ":" + cfg.Port
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// refreshGauges keeps the state gauges current: pool connections,
// active plannings, pending samples.
func refreshGauges(ctx context.Context, gauges *telemetry.SchedulerGauges, pool *pgxpool.Pool, plannings planning.Repository, samples sample.SampleRepository) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stat := pool.Stat()
		gauges.SetDBPoolActive(int64(stat.TotalConns() - stat.IdleConns()))
		gauges.SetDBPoolIdle(int64(stat.IdleConns()))

		if n, err := plannings.CountActive(ctx); err == nil {
			gauges.SetActivePlannings(int64(n))
		}
		if depths, err := samples.QueueDepths(ctx); err == nil {
			total := 0
			for _, n := range depths {
				total += n
			}
			gauges.SetPendingSamples(int64(total))
		}
	}
}
