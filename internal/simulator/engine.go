package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pokemon-trade-client/internal/models"

	"github.com/google/uuid"
)

// Outcome scripts how the next simulated trade ends
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeIdleReset swaps the Pokémon but reports IDLE with the session's trade id,
	// the way the device does when the link drops back to idle after an exchange.
	OutcomeIdleReset Outcome = "idle_reset"
)

// ParseOutcome validates an outcome name
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeComplete, OutcomeFailed, OutcomeCancelled, OutcomeIdleReset:
		return o, nil
	default:
		return "", fmt.Errorf("unknown trade outcome %q", s)
	}
}

var (
	ErrTradeInProgress = errors.New("a trade is already in progress")
	ErrNothingSelected = errors.New("no pokemon selected for trade")
)

// progression is reported one step per status request before the outcome
var progression = []struct {
	code    models.StatusCode
	message string
}{
	{models.StatusStarted, "Trade session started"},
	{"CONNECTING", "Waiting for link cable connection"},
	{"EXCHANGING_DATA", "Exchanging party data"},
	{"AWAITING_CONFIRMATION", "Waiting for trade confirmation"},
}

type tradeSession struct {
	id      string
	offered int
	step    int
}

// Engine is the simulated trade state of the device
type Engine struct {
	box    *Box
	logger *slog.Logger

	mu       sync.Mutex
	selected *int
	session  *tradeSession
	outcome  Outcome
	partner  Pokemon
}

// NewEngine creates an idle engine trading against box
func NewEngine(box *Box, partner Pokemon, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		box:     box,
		logger:  logger,
		outcome: OutcomeComplete,
		partner: partner,
	}
}

// SetOutcome scripts the result of the current or next trade
func (e *Engine) SetOutcome(o Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcome = o
	e.logger.Info("Trade outcome scripted", "outcome", o)
}

// Outcome returns the scripted outcome
func (e *Engine) Outcome() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Select marks the Pokémon at index as the one to offer
func (e *Engine) Select(index int) (*models.SelectedPokemonInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil, ErrTradeInProgress
	}
	p, err := e.box.Peek(index)
	if err != nil {
		return nil, err
	}

	idx := index
	e.selected = &idx
	e.logger.Info("Pokemon selected for trade", "storage_index", index, "nickname", p.Nickname)

	return &models.SelectedPokemonInfo{
		StorageIndex: index,
		Nickname:     p.Nickname,
		SpeciesID:    p.Data.SpeciesID,
	}, nil
}

// Start opens a trade session for the selected Pokémon
func (e *Engine) Start() (*models.StartResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil, ErrTradeInProgress
	}
	if e.selected == nil {
		return nil, ErrNothingSelected
	}
	if _, err := e.box.Peek(*e.selected); err != nil {
		e.selected = nil
		return nil, fmt.Errorf("%w: %v", ErrNothingSelected, err)
	}

	e.session = &tradeSession{id: uuid.NewString(), offered: *e.selected}
	e.logger.Info("Trade session started", "trade_id", e.session.id, "storage_index", e.session.offered)

	return &models.StartResponse{
		StatusCode: models.StatusStarted,
		Status:     "trade_initiated",
		Message:    "Device is now attempting to connect for trading. Monitor status via /api/trade/status.",
	}, nil
}

// Status reports the session state and advances it by one step. The terminal status is
// reported once; after that the engine is idle again.
func (e *Engine) Status() models.StatusResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		none := -1
		return models.StatusResponse{
			StatusCode:    models.StatusIdle,
			StatusMessage: "No active trade",
			OfferedIndex:  &none,
			TradeID:       models.NullTradeID,
		}
	}

	s := e.session
	offered := s.offered
	if s.step < len(progression) {
		step := progression[s.step]
		s.step++
		return models.StatusResponse{
			StatusCode:    step.code,
			StatusMessage: step.message,
			OfferedIndex:  &offered,
			TradeID:       s.id,
		}
	}

	resp := e.finishLocked(s)
	e.session = nil
	e.selected = nil
	return resp
}

// Reset abandons any session and selection
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	e.selected = nil
}

func (e *Engine) finishLocked(s *tradeSession) models.StatusResponse {
	offered := s.offered
	resp := models.StatusResponse{OfferedIndex: &offered, TradeID: s.id}

	switch e.outcome {
	case OutcomeFailed:
		resp.StatusCode = models.StatusTradeFailed
		resp.StatusMessage = "Link cable error during exchange"
	case OutcomeCancelled:
		resp.StatusCode = models.StatusTradeCancelled
		resp.StatusMessage = "Trade cancelled by partner"
	default:
		received, err := e.swapLocked(s.offered)
		if err != nil {
			e.logger.Error("Trade swap failed", "trade_id", s.id, "error", err)
			resp.StatusCode = models.StatusTradeFailed
			resp.StatusMessage = err.Error()
			break
		}
		resp.ReceivedSummary = received
		if e.outcome == OutcomeIdleReset {
			resp.StatusCode = models.StatusIdle
			resp.StatusMessage = "Link idle after trade"
		} else {
			resp.StatusCode = models.StatusTradeComplete
			resp.StatusMessage = "Trade complete"
		}
	}

	e.logger.Info("Trade session finished",
		"trade_id", s.id,
		"status_code", resp.StatusCode)
	return resp
}

// swapLocked replaces the offered Pokémon with the partner's
func (e *Engine) swapLocked(offered int) (*models.ReceivedSummary, error) {
	if _, err := e.box.Remove(offered); err != nil {
		return nil, fmt.Errorf("offered pokemon missing: %w", err)
	}
	idx, err := e.box.Put(e.partner)
	if err != nil {
		return nil, fmt.Errorf("failed to store received pokemon: %w", err)
	}
	return &models.ReceivedSummary{
		SpeciesID:       e.partner.Data.SpeciesID,
		Nickname:        e.partner.Nickname,
		Level:           e.partner.Data.Level,
		NewStorageIndex: &idx,
	}, nil
}
