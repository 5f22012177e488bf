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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/counsel-room/cmd/mainconfig"
	"github.com/wolfman30/counsel-room/internal/api/router"
	"github.com/wolfman30/counsel-room/internal/app/bootstrap"
	appconfig "github.com/wolfman30/counsel-room/internal/config"
	"github.com/wolfman30/counsel-room/internal/conversation"
	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/internal/webchat"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting counsel-room API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	bedrockAPI, err := mainconfig.LoadBedrockRuntime(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	handler, cleanup, err := buildHandler(ctx, cfg, bedrockAPI, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Generation can take up to a minute, so the write timeout leaves headroom.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		cleanup()
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers counseling and runtime collectors on reg and returns
// the /metrics handler.
func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.CounselMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCounselMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), m
}

// buildHandler wires every dependency behind the HTTP router. cleanup closes
// provider and store connections.
func buildHandler(ctx context.Context, cfg *appconfig.Config, bedrockAPI conversation.BedrockConverseAPI, logger *logging.Logger, reg *prometheus.Registry) (http.Handler, func(), error) {
	metricsHandler, counselMetrics := setupMetrics(reg)

	classifier, err := bootstrap.BuildRiskClassifier(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	llm, err := bootstrap.BuildLLM(ctx, cfg, bedrockAPI, logger, counselMetrics)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		_ = llm.Close()
		return nil, nil, err
	}

	svc, err := bootstrap.BuildConversationService(cfg, llm, store, classifier, logger, counselMetrics)
	if err != nil {
		_ = llm.Close()
		_ = closeStore()
		return nil, nil, err
	}

	handler := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(svc, classifier, logger),
		WebChat:             webchat.NewHandler(svc, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
	})

	var once bool
	cleanup := func() {
		if once {
			return
		}
		once = true
		if err := llm.Close(); err != nil {
			logger.Warn("failed to close llm client", "error", err)
		}
		if err := closeStore(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}
	return handler, cleanup, nil
}
