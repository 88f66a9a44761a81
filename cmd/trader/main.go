package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokemon-trade-client/internal/client"
	"pokemon-trade-client/internal/config"
	"pokemon-trade-client/internal/inventory"
	"pokemon-trade-client/internal/models"
	"pokemon-trade-client/internal/polling"
	"pokemon-trade-client/internal/selection"
	"pokemon-trade-client/internal/telemetry"
	"pokemon-trade-client/internal/trade"
)

func main() {
	once := flag.Int("trade", -1, "trade the Pokémon at this storage index, wait for the outcome and exit")
	flag.Parse()
	os.Exit(run(*once))
}

func run(once int) int {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelTelemetry := telemetry.InitMetrics(ctx, "trader", cfg.MetricsExporter)
	tradeTelemetry, err := telemetry.NewTradeTelemetry(otelTelemetry.Meter())
	if err != nil {
		slog.Error("Failed to initialize trade telemetry", "error", err)
		return 1
	}

	api := client.NewTradeClient(cfg.TradeAPIURL, cfg.TradeAPIKey)
	api.SetRequestTimeout(cfg.RequestTimeout)
	api.SetRateLimit(cfg.RequestsPerSecond)

	store := inventory.NewStore(api, slog.Default())
	details := inventory.NewDetailFetcher(api, cfg.DetailCacheTTL)
	defer details.Close()
	store.OnRefresh(func([]models.InventoryItem) { details.Invalidate() })

	sel := selection.NewController(details, slog.Default())
	trades := trade.NewController(api, store, sel, polling.NewScheduler(slog.Default()), trade.Options{
		PollInterval:    cfg.PollInterval,
		MaxPollErrors:   cfg.MaxPollErrors,
		PollBackoffMax:  cfg.PollBackoffMax,
		AutoAcknowledge: cfg.AutoAcknowledge,
		Telemetry:       tradeTelemetry,
		Logger:          slog.Default(),
	})
	sel.SetSessionGuard(trades)

	p := &printer{out: bufio.NewWriter(os.Stdout)}
	trades.Subscribe(p.handle)

	if err := store.Refresh(ctx); err != nil {
		slog.Warn("Initial inventory load failed", "error", err)
	}

	app := &app{
		store:     store,
		selection: sel,
		trades:    trades,
		out:       p,
	}

	code := 0
	if once >= 0 {
		code = app.tradeOnce(ctx, once)
	} else {
		app.repl(ctx, os.Stdin)
	}

	trades.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	otelTelemetry.Shutdown(shutdownCtx)
	return code
}

// tradeOnce runs a single session for index and returns the process exit code
func (a *app) tradeOnce(ctx context.Context, index int) int {
	done := make(chan trade.Event, 1)
	a.trades.Subscribe(func(ev trade.Event) {
		if ev.Type == trade.EventOutcome {
			select {
			case done <- ev:
			default:
			}
		}
	})

	if _, err := a.selection.SetTradeTarget(index); err != nil {
		a.out.printf("cannot select %d: %v\n", index, err)
		return 2
	}
	if err := a.trades.Initiate(ctx); err != nil {
		a.out.printf("trade not started: %s\n", client.Message(err))
		return 1
	}

	var code int
	select {
	case ev := <-done:
		if ev.Phase != trade.PhaseComplete {
			code = 1
		}
	case <-ctx.Done():
		a.out.printf("interrupted\n")
		code = 130
	}
	return code
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-trade index]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without -trade an interactive prompt is started; type 'help' for commands.")
		flag.PrintDefaults()
	}
}
