package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courseloop/enrollment-gateway/internal/config"
	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/gateway/hostedpay"
	"github.com/courseloop/enrollment-gateway/internal/gateway/intentpay"
	"github.com/courseloop/enrollment-gateway/internal/rest"
	"github.com/courseloop/enrollment-gateway/internal/services"
	"github.com/courseloop/enrollment-gateway/internal/storage/cache"
	"github.com/courseloop/enrollment-gateway/internal/storage/postgres"
	"github.com/courseloop/enrollment-gateway/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting enrollment gateway",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"validation_policy", cfg.Reconciler.ValidationPolicy,
	)

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	paymentRepo := postgres.NewPaymentRepository(pool)
	enrollmentRepo := postgres.NewEnrollmentRepository(pool)
	courseRepo := postgres.NewCourseRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)

	// The dedup cache is a fast path only; without Redis the service
	// runs on the conditional updates alone.
	var dedup services.DedupCache
	if cfg.Redis.Addr != "" {
		redisDedup, err := cache.NewDedup(cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisDedup.Close()
		dedup = redisDedup
	}

	registry := gateway.NewRegistry()
	if cfg.IntentGateway.BaseURL != "" {
		intentClient, err := intentpay.New(cfg.IntentGateway)
		if err != nil {
			logger.Error("failed to build intent gateway client", "error", err)
			os.Exit(1)
		}
		registry.Register(domain.MethodIntent, intentClient)
	}
	if cfg.RedirectGateway.BaseURL != "" {
		redirectClient, err := hostedpay.New(cfg.RedirectGateway)
		if err != nil {
			logger.Error("failed to build redirect gateway client", "error", err)
			os.Exit(1)
		}
		registry.Register(domain.MethodRedirect, redirectClient)
	}

	reconciler := services.NewReconciler(
		paymentRepo, enrollmentRepo, courseRepo, eventRepo, dedup, registry,
		services.ValidationPolicy(cfg.Reconciler.ValidationPolicy),
		cfg.Reconciler.ToleranceCents,
		logger,
	)
	checkoutService := services.NewCheckoutService(paymentRepo, enrollmentRepo, courseRepo, registry, logger)
	cancelService := services.NewCancelService(paymentRepo, enrollmentRepo, courseRepo, logger)
	refundService := services.NewRefundService(paymentRepo, enrollmentRepo, courseRepo, registry, logger)
	queryService := services.NewQueryService(paymentRepo, enrollmentRepo)

	h := rest.NewHandler(
		checkoutService,
		cancelService,
		refundService,
		reconciler,
		queryService,
		gateway.NewWebhookValidator(cfg.Webhook.Secret),
		rest.HeaderIdentityPolicy{},
		pool,
		cfg.Primary.PublicBaseURL,
		cfg.Primary.ClientStatusURL,
		logger,
	)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := rest.Recovery(logger)(mux)
	handler = rest.Logging(logger)(handler)
	handler = rest.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweeper := worker.NewSweeper(
		paymentRepo,
		reconciler,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.MinAge,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go sweeper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
