package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

const (
	// ExporterScraper serves Prometheus metrics on MetricsAddr
	ExporterScraper = "scraper"
	// ExporterNone disables metric export; instruments become no-ops
	ExporterNone = "none"

	MetricsAddr = ":9080"
)

// Telemetry owns the meter provider and, for the scraper exporter, the /metrics server
type Telemetry struct {
	server   *http.Server
	Provider *metric.MeterProvider
	meter    api.Meter
}

var (
	once     sync.Once
	instance *Telemetry
)

// InitMetrics installs the global meter provider once per process. exporter selects between
// the Prometheus scraper, no export at all, and OTLP over gRPC (the default, configured through
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT).
func InitMetrics(ctx context.Context, meterName, exporter string) *Telemetry {
	once.Do(func() {
		t := &Telemetry{}
		switch exporter {
		case ExporterScraper:
			slog.Info("Starting metrics with scraper exporter")
			t.initScrapeMetrics(meterName)
		case ExporterNone:
			slog.Info("Metrics export disabled")
			t.meter = otel.Meter(meterName)
		default:
			slog.Info("Starting metrics with grpc exporter")
			t.initGRPCMetrics(ctx, meterName)
		}
		instance = t
	})
	return instance
}

// Meter returns the meter instruments should be created from
func (t *Telemetry) Meter() api.Meter {
	if t == nil || t.meter == nil {
		return otel.Meter("pokemon-trade-client")
	}
	return t.meter
}

// Shutdown flushes pending metrics and stops the scraper server
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t == nil {
		return
	}
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		} else {
			slog.Info("Shutting down metrics server")
		}
	}
	if t.Provider != nil {
		if err := t.Provider.Shutdown(ctx); err != nil {
			slog.Warn("Meter provider shutdown failed", "error", err)
		}
	}
}

func (t *Telemetry) initGRPCMetrics(ctx context.Context, meterName string) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		slog.Error("Creating GRPC exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
}

func (t *Telemetry) initScrapeMetrics(meterName string) {
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error("Creating scrape exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:              MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Serving metrics", "addr", MetricsAddr+"/metrics")
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server exited", "error", err)
		}
	}()
}
