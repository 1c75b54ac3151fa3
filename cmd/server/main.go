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

	"github.com/BerylCAtieno/churn-risk-agent/internal/a2a"
	"github.com/BerylCAtieno/churn-risk-agent/internal/advisor"
	"github.com/BerylCAtieno/churn-risk-agent/internal/api"
	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/BerylCAtieno/churn-risk-agent/internal/config"
	"github.com/BerylCAtieno/churn-risk-agent/internal/logging"
	"github.com/BerylCAtieno/churn-risk-agent/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
)

const serviceName = "churn-risk-agent"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred exporter shutdowns always flush.
func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("read .env: %w", err)
	}

	cfg, err := config.ConfigFromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.JSONLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := telemetry.InitMetrics(ctx, serviceName, cfg.MetricsEndpoint)
	defer flush(logger, "metrics", shutdownMetrics)
	shutdownTracing := telemetry.InitTracing(ctx, serviceName, cfg.TracesEndpoint)
	defer flush(logger, "tracing", shutdownTracing)

	instruments, err := telemetry.NewInstruments(otel.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("create metric instruments: %w", err)
	}

	// Artifacts load eagerly; the service never starts without them.
	analyzer, err := churn.Open(cfg, instruments, logger)
	if err != nil {
		return fmt.Errorf("load churn artifacts: %w", err)
	}

	var retention a2a.Advisor
	if cfg.AdvisorEnabled() {
		geminiClient, err := advisor.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer geminiClient.Close()
		retention = geminiClient
		logger.Info("retention advisor enabled", "model", cfg.GeminiModel)
	}

	a2aHandler := a2a.NewA2AHandler(analyzer, retention, logger)
	apiHandler := api.NewHandler(analyzer, logger)

	if !logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), a2a.RequestLoggingMiddleware(logger))

	// Endpoints
	router.GET("/.well-known/agent.json", a2aHandler.ServeAgentCard)
	router.POST("/a2a/churn", a2aHandler.HandleChurn)
	apiHandler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	logger.Info("Churn Risk Agent starting", "port", cfg.Port)
	logger.Info("Agent card available", "url", "http://localhost:"+cfg.Port+"/.well-known/agent.json")
	logger.Info("A2A endpoint available", "url", "http://localhost:"+cfg.Port+"/a2a/churn")

	serveErr := make(chan error, 1)
	go func() {
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
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func flush(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn(name+" shutdown failed", "error", err)
	}
}
