package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pokemon-trade-client/internal/client"
	"pokemon-trade-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu    sync.Mutex
	items []models.InventoryItem
	err   error
	calls int
}

func (f *fakeLister) ListPokemon(ctx context.Context) ([]models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func TestStore_RefreshReplacesSnapshot(t *testing.T) {
	lister := &fakeLister{items: []models.InventoryItem{
		{StorageIndex: 0, SpeciesID: 25, Nickname: "PIKA_ESP32", Level: 50},
		{StorageIndex: 1, SpeciesID: 1, Nickname: "BULBA", Level: 5},
	}}
	store := NewStore(lister, nil)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 2, store.Count())
	assert.False(t, store.LastRefresh().IsZero())

	item, ok := store.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "BULBA", item.Nickname)

	lister.items = []models.InventoryItem{{StorageIndex: 4, SpeciesID: 7, Level: 12}}
	require.NoError(t, store.Refresh(context.Background()))

	_, ok = store.Lookup(1)
	assert.False(t, ok, "old entries are gone after refresh")
	item, ok = store.Lookup(4)
	require.True(t, ok)
	assert.Equal(t, "SPECIES_7", item.DisplayName())
}

func TestStore_RefreshErrorKeepsSnapshot(t *testing.T) {
	lister := &fakeLister{items: []models.InventoryItem{{StorageIndex: 0, SpeciesID: 25}}}
	store := NewStore(lister, nil)
	require.NoError(t, store.Refresh(context.Background()))

	lister.err = &client.TransportError{Op: "list pokemon", Err: errors.New("connection refused")}
	err := store.Refresh(context.Background())

	var terr *client.TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, store.Count())
}

func TestStore_HooksRunAfterRefresh(t *testing.T) {
	lister := &fakeLister{items: []models.InventoryItem{{StorageIndex: 2}}}
	store := NewStore(lister, nil)

	var got []models.InventoryItem
	store.OnRefresh(func(items []models.InventoryItem) { got = items })

	require.NoError(t, store.Refresh(context.Background()))
	assert.Len(t, got, 1)
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	lister := &fakeLister{items: []models.InventoryItem{{StorageIndex: 0, Nickname: "A"}}}
	store := NewStore(lister, nil)
	require.NoError(t, store.Refresh(context.Background()))

	items := store.Items()
	items[0].Nickname = "changed"
	assert.Equal(t, "A", store.Items()[0].Nickname)
}

// gatedDetailClient blocks each request until the test releases it
type gatedDetailClient struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
	calls   int
	err     error
}

func newGatedDetailClient() *gatedDetailClient {
	return &gatedDetailClient{gates: make(map[int]chan struct{}), started: make(chan int, 8)}
}

func (g *gatedDetailClient) gate(index int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.gates[index]; !ok {
		g.gates[index] = make(chan struct{})
	}
	return g.gates[index]
}

func (g *gatedDetailClient) GetPokemon(ctx context.Context, storageIndex int) (*models.PokemonDetail, error) {
	g.mu.Lock()
	g.calls++
	err := g.err
	g.mu.Unlock()

	gate := g.gate(storageIndex)
	g.started <- storageIndex
	<-gate
	if err != nil {
		return nil, err
	}
	return &models.PokemonDetail{StorageIndex: storageIndex, Data: models.PokemonData{SpeciesID: 100 + storageIndex}}, nil
}

func TestDetailFetcher_DiscardsStaleResponse(t *testing.T) {
	dc := newGatedDetailClient()
	fetcher := NewDetailFetcher(dc, time.Minute)
	defer fetcher.Close()

	type result struct {
		detail *models.PokemonDetail
		err    error
	}
	slow := make(chan result, 1)

	go func() {
		d, err := fetcher.Fetch(context.Background(), 1)
		slow <- result{d, err}
	}()
	require.Equal(t, 1, <-dc.started)

	fast := make(chan result, 1)
	go func() {
		d, err := fetcher.Fetch(context.Background(), 2)
		fast <- result{d, err}
	}()
	require.Equal(t, 2, <-dc.started)

	// The later selection answers first
	close(dc.gate(2))
	r := <-fast
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.detail.StorageIndex)

	close(dc.gate(1))
	r = <-slow
	assert.ErrorIs(t, r.err, ErrStaleDetail)

	current, ok := fetcher.Current()
	require.True(t, ok)
	assert.Equal(t, 2, current.StorageIndex, "slow earlier response must not overwrite the view")
}

func TestDetailFetcher_CachesUntilInvalidated(t *testing.T) {
	dc := newGatedDetailClient()
	close(dc.gate(3))
	fetcher := NewDetailFetcher(dc, time.Minute)
	defer fetcher.Close()

	_, err := fetcher.Fetch(context.Background(), 3)
	require.NoError(t, err)
	<-dc.started

	d, err := fetcher.Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 103, d.Data.SpeciesID)
	assert.Equal(t, 1, dc.calls, "second fetch served from cache")

	fetcher.Invalidate()
	_, err = fetcher.Fetch(context.Background(), 3)
	require.NoError(t, err)
	<-dc.started
	assert.Equal(t, 2, dc.calls)
}

func TestDetailFetcher_InvalidateDuringFetch(t *testing.T) {
	dc := newGatedDetailClient()
	fetcher := NewDetailFetcher(dc, time.Minute)
	defer fetcher.Close()

	type result struct {
		detail *models.PokemonDetail
		err    error
	}
	inflight := make(chan result, 1)
	go func() {
		d, err := fetcher.Fetch(context.Background(), 4)
		inflight <- result{d, err}
	}()
	require.Equal(t, 4, <-dc.started)

	fetcher.Invalidate()
	close(dc.gate(4))

	r := <-inflight
	require.NoError(t, r.err)
	assert.Equal(t, 4, r.detail.StorageIndex, "the caller still gets its answer")

	_, err := fetcher.Fetch(context.Background(), 4)
	require.NoError(t, err)
	<-dc.started

	dc.mu.Lock()
	calls := dc.calls
	dc.mu.Unlock()
	assert.Equal(t, 2, calls, "a detail read before the refresh is not served from cache")
}

func TestDetailFetcher_NotFound(t *testing.T) {
	dc := newGatedDetailClient()
	dc.err = &client.ProtocolError{Op: "get pokemon", StatusCode: 404, Message: "Pokemon not found"}
	close(dc.gate(9))
	fetcher := NewDetailFetcher(dc, time.Minute)
	defer fetcher.Close()

	_, err := fetcher.Fetch(context.Background(), 9)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, ok := fetcher.Current()
	assert.False(t, ok)
}
