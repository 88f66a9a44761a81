package trade

import (
	"time"

	"pokemon-trade-client/internal/models"
)

// EventType identifies what an Event reports
type EventType int

const (
	// EventPhaseChanged carries Previous and Phase
	EventPhaseChanged EventType = iota
	// EventStatus carries the latest status code and message. StatusCode is ERROR for a failed poll.
	EventStatus
	// EventAttemptFailed reports a select or start failure; Stage and Err are set
	EventAttemptFailed
	// EventOutcome reports the terminal phase of a session
	EventOutcome
	// EventItemReceived follows a COMPLETE outcome when the received Pokémon was stored
	EventItemReceived
)

func (t EventType) String() string {
	switch t {
	case EventPhaseChanged:
		return "phase_changed"
	case EventStatus:
		return "status"
	case EventAttemptFailed:
		return "attempt_failed"
	case EventOutcome:
		return "outcome"
	case EventItemReceived:
		return "item_received"
	default:
		return "unknown"
	}
}

// Event is a plain notification for presentation layers
type Event struct {
	Type      EventType
	SessionID string
	Time      time.Time

	Phase    Phase
	Previous Phase
	Stage    Stage

	StatusCode   models.StatusCode
	Message      string
	OfferedIndex *int
	Received     *models.ReceivedSummary
	Err          error
}

// Listener receives events in the order the controller produced them. Listeners run on a
// dedicated goroutine and may call back into the controller, except Close.
type Listener func(Event)
