package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pokemon-trade-client/internal/models"
)

// Lister fetches the full inventory list from the trade service
type Lister interface {
	ListPokemon(ctx context.Context) ([]models.InventoryItem, error)
}

// RefreshHook is called with the new snapshot after every successful refresh
type RefreshHook func(items []models.InventoryItem)

// Store holds the last fetched inventory snapshot
type Store struct {
	lister Lister
	logger *slog.Logger

	refreshMu sync.Mutex

	mu          sync.RWMutex
	items       []models.InventoryItem
	byIndex     map[int]models.InventoryItem
	lastRefresh time.Time
	hooks       []RefreshHook
}

// NewStore creates an empty store backed by lister
func NewStore(lister Lister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		lister:  lister,
		logger:  logger,
		byIndex: make(map[int]models.InventoryItem),
	}
}

// OnRefresh registers a hook run after each successful refresh
func (s *Store) OnRefresh(hook RefreshHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Refresh replaces the held snapshot with a fresh list query. On error the previous
// snapshot is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	startTime := time.Now()
	items, err := s.lister.ListPokemon(ctx)
	if err != nil {
		s.logger.Error("Failed to refresh inventory", "error", err)
		return fmt.Errorf("failed to refresh inventory: %w", err)
	}

	byIndex := make(map[int]models.InventoryItem, len(items))
	for _, item := range items {
		if _, dup := byIndex[item.StorageIndex]; dup {
			s.logger.Warn("Duplicate storage index in inventory list, keeping last",
				"storage_index", item.StorageIndex)
		}
		byIndex[item.StorageIndex] = item
	}

	snapshot := make([]models.InventoryItem, len(items))
	copy(snapshot, items)

	s.mu.Lock()
	s.items = snapshot
	s.byIndex = byIndex
	s.lastRefresh = time.Now()
	hooks := make([]RefreshHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	s.logger.Debug("Inventory refreshed",
		"count", len(snapshot),
		"duration", time.Since(startTime))

	for _, hook := range hooks {
		hook(s.Items())
	}
	return nil
}

// Items returns a copy of the current snapshot in server order
func (s *Store) Items() []models.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.InventoryItem, len(s.items))
	copy(items, s.items)
	return items
}

// Lookup finds an item by storage index in the current snapshot
func (s *Store) Lookup(storageIndex int) (models.InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.byIndex[storageIndex]
	return item, ok
}

// Count returns the number of items in the current snapshot
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// LastRefresh returns the time of the last successful refresh, zero if none
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}
