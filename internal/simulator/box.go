package simulator

import (
	"errors"
	"fmt"
	"sync"

	"pokemon-trade-client/internal/models"
)

// BoxCapacity is the number of storage slots of one PC box
const BoxCapacity = 20

var (
	ErrInvalidIndex = errors.New("invalid storage index")
	ErrSlotEmpty    = errors.New("pokemon not found")
	ErrBoxFull      = errors.New("storage box is full")
)

// Pokemon is one stored record
type Pokemon struct {
	Nickname string
	OTName   string
	Data     models.PokemonData
}

// Box is a fixed-size in-memory storage box. Empty slots are nil.
type Box struct {
	mu    sync.RWMutex
	slots []*Pokemon
}

// NewBox creates an empty box with capacity slots
func NewBox(capacity int) *Box {
	if capacity <= 0 {
		capacity = BoxCapacity
	}
	return &Box{slots: make([]*Pokemon, capacity)}
}

// Capacity returns the number of slots
func (b *Box) Capacity() int {
	return len(b.slots)
}

// List returns the occupied slots in index order. Unnamed Pokémon are listed as SPECIES_<id>.
func (b *Box) List() []models.InventoryItem {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := make([]models.InventoryItem, 0, len(b.slots))
	for i, p := range b.slots {
		if p == nil {
			continue
		}
		item := models.InventoryItem{
			StorageIndex: i,
			SpeciesID:    p.Data.SpeciesID,
			Nickname:     p.Nickname,
			Level:        p.Data.Level,
		}
		item.Nickname = item.DisplayName()
		items = append(items, item)
	}
	return items
}

// Get returns the full record at index
func (b *Box) Get(index int) (models.PokemonDetail, error) {
	p, err := b.Peek(index)
	if err != nil {
		return models.PokemonDetail{}, err
	}
	return models.PokemonDetail{
		StorageIndex: index,
		Nickname:     p.Nickname,
		OTName:       p.OTName,
		Data:         p.Data,
	}, nil
}

// Peek returns a copy of the Pokémon at index
func (b *Box) Peek(index int) (Pokemon, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkIndex(index); err != nil {
		return Pokemon{}, err
	}
	if b.slots[index] == nil {
		return Pokemon{}, fmt.Errorf("slot %d: %w", index, ErrSlotEmpty)
	}
	return *b.slots[index], nil
}

// Put stores p in the first free slot and returns its index
func (b *Box) Put(p Pokemon) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, slot := range b.slots {
		if slot == nil {
			stored := p
			b.slots[i] = &stored
			return i, nil
		}
	}
	return -1, ErrBoxFull
}

// Remove empties the slot at index and returns what it held
func (b *Box) Remove(index int) (Pokemon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkIndex(index); err != nil {
		return Pokemon{}, err
	}
	p := b.slots[index]
	if p == nil {
		return Pokemon{}, fmt.Errorf("slot %d: %w", index, ErrSlotEmpty)
	}
	b.slots[index] = nil
	return *p, nil
}

func (b *Box) checkIndex(index int) error {
	if index < 0 || index >= len(b.slots) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return nil
}

// DemoPokemon is the box content the device firmware seeds for testing
func DemoPokemon() []Pokemon {
	return []Pokemon{
		{
			Nickname: "PIKA_ESP32",
			OTName:   "ESP_MASTER",
			Data: models.PokemonData{
				SpeciesID: 25, Level: 50, LevelBox: 50,
				CurrentHP: 120, MaxHP: 120,
				Attack: 55, Defense: 40, Speed: 90, Special: 50,
				Type1: 23, Type2: 23,
				Move1ID: 84, Move2ID: 45, Move3ID: 86, Move4ID: 98,
				Move1PP: 30, Move2PP: 40, Move3PP: 20, Move4PP: 30,
				OriginalTrainerID: 12345,
				IVData:            0xAAAA,
			},
		},
		{
			Nickname: "BULBA",
			OTName:   "ASH",
			Data: models.PokemonData{
				SpeciesID: 1, Level: 5, LevelBox: 5,
				CurrentHP: 25, MaxHP: 25,
				Attack: 10, Defense: 11, Speed: 9, Special: 12,
				Type1: 22, Type2: 3,
				Move1ID: 33, Move2ID: 45,
				Move1PP: 35, Move2PP: 40,
				OriginalTrainerID: 54321,
				IVData:            0x5555,
			},
		},
	}
}

// DefaultPartner is the Pokémon the simulated partner offers in return
func DefaultPartner() Pokemon {
	return Pokemon{
		Nickname: "REX",
		OTName:   "BLUE",
		Data: models.PokemonData{
			SpeciesID: 5, Level: 10, LevelBox: 10,
			CurrentHP: 34, MaxHP: 34,
			Attack: 21, Defense: 19, Speed: 24, Special: 20,
			Type1: 20, Type2: 20,
			Move1ID: 10, Move2ID: 45, Move3ID: 52,
			Move1PP: 35, Move2PP: 40, Move3PP: 25,
			OriginalTrainerID: 777,
			Experience:        [3]int{0, 3, 232},
			IVData:            0x9C3A,
		},
	}
}
