package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"pokemon-trade-client/internal/models"
)

// Change is the result of a trade-target toggle
type Change int

const (
	Deselected Change = iota
	Selected
)

func (c Change) String() string {
	if c == Selected {
		return "selected"
	}
	return "deselected"
}

// SessionGuard reports whether a trade session is committed server-side
type SessionGuard interface {
	InProgress() bool
}

// DetailLoader loads the detail view for a storage index
type DetailLoader interface {
	Fetch(ctx context.Context, storageIndex int) (*models.PokemonDetail, error)
}

// Controller owns the user's selection: at most one trade target and one detail target
type Controller struct {
	details DetailLoader
	logger  *slog.Logger

	mu           sync.Mutex
	guard        SessionGuard
	tradeTarget  *int
	detailTarget *int
}

// NewController creates an empty selection. details may be nil when no detail view is used.
func NewController(details DetailLoader, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{details: details, logger: logger}
}

// SetSessionGuard installs the check that blocks trade-target changes during a session
func (c *Controller) SetSessionGuard(guard SessionGuard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guard = guard
}

// SetTradeTarget toggles the trade target: choosing the current target clears it, any other
// index replaces it.
func (c *Controller) SetTradeTarget(storageIndex int) (Change, error) {
	if storageIndex < 0 {
		return Deselected, fmt.Errorf("invalid storage index %d", storageIndex)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guard != nil && c.guard.InProgress() {
		return Deselected, models.ErrSessionInProgress
	}

	if c.tradeTarget != nil && *c.tradeTarget == storageIndex {
		c.tradeTarget = nil
		c.logger.Debug("Trade target cleared", "storage_index", storageIndex)
		return Deselected, nil
	}

	idx := storageIndex
	c.tradeTarget = &idx
	c.logger.Debug("Trade target selected", "storage_index", storageIndex)
	return Selected, nil
}

// ClearTradeTarget removes the trade target, if any
func (c *Controller) ClearTradeTarget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guard != nil && c.guard.InProgress() {
		return models.ErrSessionInProgress
	}
	c.tradeTarget = nil
	return nil
}

// SetDetailTarget replaces the detail target and loads its detail. A response that arrives
// after a newer SetDetailTarget is discarded by the loader.
func (c *Controller) SetDetailTarget(ctx context.Context, storageIndex int) (*models.PokemonDetail, error) {
	c.mu.Lock()
	idx := storageIndex
	c.detailTarget = &idx
	c.mu.Unlock()

	if c.details == nil {
		return nil, nil
	}
	return c.details.Fetch(ctx, storageIndex)
}

// TradeTarget returns the current trade target
func (c *Controller) TradeTarget() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tradeTarget == nil {
		return 0, false
	}
	return *c.tradeTarget, true
}

// DetailTarget returns the current detail target
func (c *Controller) DetailTarget() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detailTarget == nil {
		return 0, false
	}
	return *c.detailTarget, true
}
