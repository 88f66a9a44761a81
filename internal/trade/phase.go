package trade

import (
	"time"

	"pokemon-trade-client/internal/models"
)

// Phase is the stage of the trade state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseStarting
	PhasePolling
	PhaseComplete
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSelecting:
		return "SELECTING"
	case PhaseStarting:
		return "STARTING"
	case PhasePolling:
		return "POLLING"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseFailed:
		return "FAILED"
	case PhaseCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the phase ends a session
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// IsActive reports whether a session is committed and not yet finished
func (p Phase) IsActive() bool {
	return p == PhaseSelecting || p == PhaseStarting || p == PhasePolling
}

// outcomeFor maps a terminal snapshot to its phase. An IDLE snapshot that still names a
// session means the service reset after the exchange; it counts as complete only when the
// received Pokémon was stored.
func outcomeFor(snap *models.StatusSnapshot) Phase {
	switch snap.StatusCode {
	case models.StatusTradeComplete:
		return PhaseComplete
	case models.StatusTradeFailed:
		return PhaseFailed
	case models.StatusTradeCancelled:
		return PhaseCancelled
	default:
		if snap.Received != nil && snap.Received.NewStorageIndex != nil {
			return PhaseComplete
		}
		return PhaseCancelled
	}
}

// Session is the controller's view of one trade. Pointer fields are shared with snapshots
// and must be treated as read-only.
type Session struct {
	ID          string
	Generation  uint64
	Phase       Phase
	TargetIndex int

	TradeID      *string
	OfferedIndex *int
	Received     *models.ReceivedSummary

	LastStatus    models.StatusCode
	LastMessage   string
	FailureReason string

	ConsecutivePollErrors int

	StartedAt time.Time
	EndedAt   time.Time

	outcomeReported bool
}
