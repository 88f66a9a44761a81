package models

import "fmt"

// ErrorResponse represents the error body returned by the trade service
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// InventoryItem is one entry of GET /pokemon
type InventoryItem struct {
	StorageIndex int    `json:"storage_index"`
	SpeciesID    int    `json:"species_id"`
	Nickname     string `json:"nickname,omitempty"`
	Level        int    `json:"level"`
}

// DisplayName falls back to the species placeholder the firmware uses for unnamed Pokémon
func (i InventoryItem) DisplayName() string {
	if i.Nickname != "" {
		return i.Nickname
	}
	return fmt.Sprintf("SPECIES_%d", i.SpeciesID)
}

// PokemonDetail is the response of GET /pokemon/{storageIndex}
type PokemonDetail struct {
	StorageIndex int         `json:"storage_index"`
	Nickname     string      `json:"nickname,omitempty"`
	OTName       string      `json:"ot_name,omitempty"`
	Data         PokemonData `json:"pokemon_data"`
}

// PokemonData holds the raw party structure fields used for detail display
type PokemonData struct {
	SpeciesID           int    `json:"species_id"`
	Level               int    `json:"level"`
	LevelBox            int    `json:"level_box,omitempty"`
	CurrentHP           int    `json:"current_hp"`
	MaxHP               int    `json:"max_hp"`
	Attack              int    `json:"attack"`
	Defense             int    `json:"defense"`
	Speed               int    `json:"speed"`
	Special             int    `json:"special"`
	StatusCondition     int    `json:"status_condition"`
	Type1               int    `json:"type1"`
	Type2               int    `json:"type2"`
	CatchRateOrHeldItem int    `json:"catch_rate_or_held_item,omitempty"`
	Move1ID             int    `json:"move1_id"`
	Move2ID             int    `json:"move2_id"`
	Move3ID             int    `json:"move3_id"`
	Move4ID             int    `json:"move4_id"`
	Move1PP             int    `json:"move1_pp"`
	Move2PP             int    `json:"move2_pp"`
	Move3PP             int    `json:"move3_pp"`
	Move4PP             int    `json:"move4_pp"`
	OriginalTrainerID   int    `json:"original_trainer_id"`
	Experience          [3]int `json:"experience"`
	HPEV                int    `json:"hp_ev,omitempty"`
	AttackEV            int    `json:"attack_ev,omitempty"`
	DefenseEV           int    `json:"defense_ev,omitempty"`
	SpeedEV             int    `json:"speed_ev,omitempty"`
	SpecialEV           int    `json:"special_ev,omitempty"`
	IVData              int    `json:"iv_data"`
}

// Moves returns the four move ids in slot order
func (d PokemonData) Moves() [4]int {
	return [4]int{d.Move1ID, d.Move2ID, d.Move3ID, d.Move4ID}
}

// PP returns the remaining PP for the four move slots
func (d PokemonData) PP() [4]int {
	return [4]int{d.Move1PP, d.Move2PP, d.Move3PP, d.Move4PP}
}

// SelectRequest is the body of POST /trade/select
type SelectRequest struct {
	StorageIndex int `json:"storage_index"`
}

// SelectedPokemonInfo echoes the Pokémon the service accepted for the next trade
type SelectedPokemonInfo struct {
	StorageIndex int    `json:"storage_index"`
	Nickname     string `json:"nickname"`
	SpeciesID    int    `json:"species_id"`
}

// SelectResponse is the success body of POST /trade/select
type SelectResponse struct {
	Status   string               `json:"status,omitempty"`
	Message  string               `json:"message"`
	Selected *SelectedPokemonInfo `json:"selected_pokemon_info,omitempty"`
}

// StartResponse is the body of POST /trade/start
type StartResponse struct {
	StatusCode StatusCode `json:"status_code,omitempty"`
	Status     string     `json:"status,omitempty"`
	Message    string     `json:"message"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}
