package trade

import (
	"errors"
	"fmt"
)

// Stage names the initiation call that failed
type Stage string

const (
	StageSelect Stage = "select"
	StageStart  Stage = "start"
)

var (
	// ErrPollingAbandoned is the failure reason once consecutive poll errors reach the limit
	ErrPollingAbandoned = errors.New("status polling abandoned")

	// ErrPollingCancelled is the failure reason when the context given to Initiate ends while polling
	ErrPollingCancelled = errors.New("status polling cancelled")

	// ErrClosed is returned by operations on a closed controller
	ErrClosed = errors.New("trade controller closed")
)

// AttemptError is returned by Initiate when select or start fails. The session is already
// back in IDLE when it is returned.
type AttemptError struct {
	Stage Stage
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("trade %s failed: %v", e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}
