// Triad engine server — accepts user messages over HTTP, orchestrates
// PLAN/ACT/JUDGE task slices, and streams results over WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/triad-ai/triad/pkg/agent"
	"github.com/triad-ai/triad/pkg/api"
	"github.com/triad-ai/triad/pkg/cleanup"
	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/events"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/observability"
	"github.com/triad-ai/triad/pkg/orchestrator"
	"github.com/triad-ai/triad/pkg/session"
	"github.com/triad-ai/triad/pkg/telemetry"
	"github.com/triad-ai/triad/pkg/tools"
	"github.com/triad-ai/triad/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	ctx := context.Background()

	// 1. Configuration (loads .env from the config dir, then triad.yaml)
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting triad",
		"version", version.Full(),
		"host", cfg.Host,
		"port", cfg.Port,
		"config_dir", *configDir)

	// 2. Telemetry sink
	var sink telemetry.Sink = telemetry.NopSink{}
	if cfg.TelemetryFile != "" {
		fileSink, err := telemetry.NewFileSink(cfg.TelemetryFile, logger)
		if err != nil {
			logger.Error("Failed to open telemetry sink", "path", cfg.TelemetryFile, "error", err)
			os.Exit(1)
		}
		defer fileSink.Close()
		sink = fileSink
		logger.Info("Telemetry sink opened", "path", cfg.TelemetryFile)
	}

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.New(registry)

	// 4. LLM client and tool registry
	client := llm.NewOpenAIClient(cfg, logger)
	defer client.Close()

	reg := tools.NewBuiltinRegistry(cfg, sink, logger, tools.BuiltinOptions{})
	logger.Info("Tool registry initialized", "tools", reg.Names())

	// 5. Orchestration pipeline
	orch := orchestrator.New(
		agent.NewPlanner(client, cfg, reg, sink, logger),
		agent.NewExecutor(client, cfg, reg, sink, logger, nil),
		agent.NewJudge(client, cfg, sink, logger),
		cfg, sink, logger,
	)

	// 6. Sessions, event bus, engine facade
	bus := events.NewBus(logger)
	mgr := session.NewManager(sink, logger, nil)
	svc := session.NewService(mgr, orch, client, cfg, bus, metrics, logger, nil)

	// 7. Retention sweeper
	sweeper := cleanup.NewService(mgr, metrics, logger, cleanup.DefaultInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 8. HTTP server
	httpServer := api.NewServer(svc, bus, cfg, registry, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting requests, let running slices
	// finish against their own execution deadline.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.MaxExecutionTime+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}
