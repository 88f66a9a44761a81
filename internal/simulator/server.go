package simulator

import (
	"log/slog"
	"net/http"
	"time"

	"pokemon-trade-client/internal/telemetry"

	"github.com/gorilla/mux"
)

// Options configures a Simulator
type Options struct {
	APIKeys   []string
	Outcome   Outcome
	Partner   *Pokemon
	Telemetry *telemetry.HTTPTelemetry
	Logger    *slog.Logger

	// RateLimit caps /api requests per client and minute; zero disables it
	RateLimit int
}

// Simulator is an in-memory trade device seeded with the demo box
type Simulator struct {
	Box     *Box
	Engine  *Engine
	Limiter *RateLimiter
	router  *mux.Router
}

// New builds a simulator and its router
func New(opts Options) *Simulator {
	box := NewBox(BoxCapacity)
	for _, p := range DemoPokemon() {
		if _, err := box.Put(p); err != nil {
			slog.Error("Failed to seed box", "error", err)
		}
	}

	partner := DefaultPartner()
	if opts.Partner != nil {
		partner = *opts.Partner
	}
	engine := NewEngine(box, partner, opts.Logger)
	if opts.Outcome != "" {
		engine.SetOutcome(opts.Outcome)
	}

	s := &Simulator{Box: box, Engine: engine}
	if opts.RateLimit > 0 {
		s.Limiter = NewRateLimiter(opts.RateLimit, time.Minute)
	}
	s.router = newRouter(NewHandler(box, engine), s.Limiter, opts)
	return s
}

// Close releases the rate limiter, if any
func (s *Simulator) Close() {
	if s.Limiter != nil {
		s.Limiter.Stop()
	}
}

// Handler returns the HTTP handler serving /api and /health
func (s *Simulator) Handler() http.Handler {
	return s.router
}

func newRouter(h *Handler, limiter *RateLimiter, opts Options) *mux.Router {
	r := mux.NewRouter()
	if opts.Telemetry != nil {
		r.Use(opts.Telemetry.Middleware)
	}

	api := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware)
	}
	api.Use(APIKeyAuth(opts.APIKeys))

	api.HandleFunc("/pokemon", h.ListPokemon).Methods(http.MethodGet)
	api.HandleFunc("/pokemon/{storageIndex}", h.GetPokemon).Methods(http.MethodGet)
	api.HandleFunc("/trade/select", h.SelectPokemon).Methods(http.MethodPost)
	api.HandleFunc("/trade/start", h.StartTrade).Methods(http.MethodPost)
	api.HandleFunc("/trade/status", h.TradeStatus).Methods(http.MethodGet)

	api.HandleFunc("/sim/outcome", h.SetOutcome).Methods(http.MethodPut)
	api.HandleFunc("/sim/reset", h.Reset).Methods(http.MethodPost)

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}
