package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pokemon-trade-client/internal/cache"
	"pokemon-trade-client/internal/models"
)

// ErrStaleDetail is returned when a newer Fetch started before this one's response arrived
var ErrStaleDetail = errors.New("detail superseded by a newer request")

// DetailClient fetches one Pokémon's full record
type DetailClient interface {
	GetPokemon(ctx context.Context, storageIndex int) (*models.PokemonDetail, error)
}

// DetailFetcher retrieves details for the current detail target. Only the most recently
// started fetch may apply its result.
type DetailFetcher struct {
	client DetailClient
	cache  *cache.TTLCache[int, models.PokemonDetail]

	mu         sync.Mutex
	generation uint64
	epoch      uint64
	current    *models.PokemonDetail
}

// NewDetailFetcher creates a fetcher that serves repeated lookups from cache for up to ttl
func NewDetailFetcher(client DetailClient, ttl time.Duration) *DetailFetcher {
	return &DetailFetcher{
		client: client,
		cache:  cache.NewTTLCache[int, models.PokemonDetail](ttl, 0),
	}
}

// Fetch loads the detail for storageIndex. It returns ErrStaleDetail, and leaves Current
// untouched, when another Fetch began while this one was waiting on the network.
func (f *DetailFetcher) Fetch(ctx context.Context, storageIndex int) (*models.PokemonDetail, error) {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	epoch := f.epoch
	f.mu.Unlock()

	detail, ok := f.cache.Get(storageIndex)
	if !ok {
		fetched, err := f.client.GetPokemon(ctx, storageIndex)
		if err != nil {
			if f.isStale(gen) {
				return nil, ErrStaleDetail
			}
			return nil, fmt.Errorf("failed to fetch pokemon %d: %w", storageIndex, err)
		}
		detail = *fetched
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		return nil, ErrStaleDetail
	}

	// A detail read before an Invalidate is shown but never cached
	if epoch == f.epoch {
		f.cache.Set(storageIndex, detail)
	}
	applied := detail
	f.current = &applied

	result := detail
	return &result, nil
}

// Current returns the last applied detail
func (f *DetailFetcher) Current() (*models.PokemonDetail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil, false
	}
	detail := *f.current
	return &detail, true
}

// Invalidate drops all cached details, including any a fetch already in flight would store.
// Storage indexes may be reassigned by a refresh.
func (f *DetailFetcher) Invalidate() {
	f.mu.Lock()
	f.epoch++
	f.mu.Unlock()
	f.cache.Clear()
}

// Close releases the cache
func (f *DetailFetcher) Close() {
	f.cache.Stop()
}

func (f *DetailFetcher) isStale(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen != f.generation
}
