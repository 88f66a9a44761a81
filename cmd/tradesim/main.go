package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokemon-trade-client/internal/config"
	"pokemon-trade-client/internal/simulator"
	"pokemon-trade-client/internal/telemetry"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting trade device simulator", "version", "1.0.0")

	ctx := context.Background()
	otelTelemetry := telemetry.InitMetrics(ctx, "tradesim", cfg.MetricsExporter)

	httpTelemetry, err := telemetry.NewHTTPTelemetry(otelTelemetry.Meter())
	if err != nil {
		slog.Error("Failed to initialize HTTP telemetry", "error", err)
		return
	}

	outcome, err := simulator.ParseOutcome(cfg.SimOutcome)
	if err != nil {
		slog.Error("Invalid SIM_OUTCOME", "error", err)
		return
	}

	sim := simulator.New(simulator.Options{
		APIKeys:   cfg.APIKeyList(),
		Outcome:   outcome,
		Telemetry: httpTelemetry,
		Logger:    slog.Default(),
		RateLimit: cfg.RateLimit,
	})
	defer sim.Close()

	slog.Info("Starting HTTP server",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"outcome", outcome,
		"auth", len(cfg.APIKeyList()) > 0,
		"rate_limit_per_minute", cfg.RateLimit)

	slog.Debug("Available endpoints",
		"api_endpoints", []string{
			"GET /api/pokemon",
			"GET /api/pokemon/{storageIndex}",
			"POST /api/trade/select",
			"POST /api/trade/start",
			"GET /api/trade/status",
		},
		"sim_endpoints", []string{
			"PUT /api/sim/outcome",
			"POST /api/sim/reset",
		},
		"system_endpoints", []string{
			"GET /health",
		})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	otelTelemetry.Shutdown(shutdownCtx)
	slog.Info("Telemetry shutdown completed")

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
