package models

import "errors"

var (
	// ErrSessionInProgress is returned when a trade session is between initiate and its terminal status
	ErrSessionInProgress = errors.New("trade session in progress")

	// ErrNoTargetSelected is returned when a trade is initiated without a selected Pokémon
	ErrNoTargetSelected = errors.New("no pokemon selected for trade")

	// ErrOutcomePending is returned when the last session's outcome has not been acknowledged yet
	ErrOutcomePending = errors.New("previous trade outcome not acknowledged")
)
