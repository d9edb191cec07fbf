package duel

import (
	"errors"
)

// Every command surfaces one of these at the controller boundary; none of
// them is fatal to the process.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrMatchNotFound covers both "no such code" and "not joinable
	// anymore" so a guesser cannot probe which matches exist.
	ErrMatchNotFound      = errors.New("no joinable match for that code")
	ErrSelfJoinForbidden  = errors.New("cannot join your own match")
	ErrNotParticipant     = errors.New("not a participant of this match")
	ErrNoActiveMatch      = errors.New("no active match")
	ErrInvalidMeasurement = errors.New("reaction time must be a positive number of milliseconds")
	ErrRoomCodeTaken      = errors.New("room code already in use")
	ErrStoreUnavailable   = errors.New("game store unavailable")
)
