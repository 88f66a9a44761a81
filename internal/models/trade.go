package models

import "strings"

// StatusCode is the server-reported trade state
type StatusCode string

const (
	StatusIdle           StatusCode = "IDLE"
	StatusStarted        StatusCode = "STARTED"
	StatusTradeComplete  StatusCode = "TRADE_COMPLETE"
	StatusTradeFailed    StatusCode = "TRADE_FAILED"
	StatusTradeCancelled StatusCode = "TRADE_CANCELLED"

	// StatusError is never sent by the service; it marks a poll that could not be completed.
	StatusError StatusCode = "ERROR"
)

// NullTradeID is the literal the service sends in place of a trade id when no session exists
const NullTradeID = "null"

// ReceivedSummary describes the partner's Pokémon. NewStorageIndex is only set once the
// received Pokémon has been stored.
type ReceivedSummary struct {
	SpeciesID       int    `json:"species_id"`
	Nickname        string `json:"nickname,omitempty"`
	Level           int    `json:"level"`
	NewStorageIndex *int   `json:"new_storage_index,omitempty"`
}

// StatusResponse is the raw body of GET /trade/status
type StatusResponse struct {
	StatusCode      StatusCode       `json:"status_code"`
	StatusMessage   string           `json:"status_message"`
	OfferedIndex    *int             `json:"offered_pokemon_index,omitempty"`
	ReceivedSummary *ReceivedSummary `json:"received_pokemon_summary,omitempty"`
	TradeID         string           `json:"trade_id"`
}

// StatusSnapshot is one poll result with the wire sentinels removed
type StatusSnapshot struct {
	StatusCode    StatusCode
	StatusMessage string
	OfferedIndex  *int
	Received      *ReceivedSummary
	TradeID       *string
}

// Snapshot converts the wire form. A trade id of "null" (or empty) and an offered index of -1 both mean absent.
func (r StatusResponse) Snapshot() StatusSnapshot {
	snap := StatusSnapshot{
		StatusCode:    r.StatusCode,
		StatusMessage: r.StatusMessage,
		Received:      r.ReceivedSummary,
	}
	if r.OfferedIndex != nil && *r.OfferedIndex >= 0 {
		idx := *r.OfferedIndex
		snap.OfferedIndex = &idx
	}
	if id := strings.TrimSpace(r.TradeID); id != "" && id != NullTradeID {
		snap.TradeID = &id
	}
	return snap
}

// HasSession reports whether the snapshot refers to a server-side session
func (s StatusSnapshot) HasSession() bool {
	return s.TradeID != nil
}

// IsTerminal reports whether the snapshot ends the current session. An IDLE snapshot only
// counts when it carries a trade id; without one it is a heartbeat.
func (s StatusSnapshot) IsTerminal() bool {
	switch s.StatusCode {
	case StatusTradeComplete, StatusTradeFailed, StatusTradeCancelled:
		return true
	case StatusIdle:
		return s.HasSession()
	default:
		return false
	}
}
