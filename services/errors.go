package services

import "errors"

// Sentinel errors shared across services and the HTTP error mapper.
var (
	// Not-found.
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrParticipantNotFound = errors.New("participant not found")

	// State conflicts: the operation is invalid for the current lifecycle
	// state. Never retried automatically.
	ErrRegistrationClosed  = errors.New("tournament registration is closed")
	ErrAlreadyStarted      = errors.New("tournament has already started")
	ErrAlreadyResolved     = errors.New("match is already resolved")
	ErrAlreadyDistributed  = errors.New("rewards have already been distributed")
	ErrNotCompleted        = errors.New("tournament is not completed")
	ErrTournamentCompleted = errors.New("tournament is completed and immutable")
	ErrTournamentMismatch  = errors.New("match does not belong to this tournament")

	// Capacity / validation: caller-correctable.
	ErrTournamentFull           = errors.New("tournament registration is full")
	ErrAlreadyRegistered        = errors.New("participant is already registered for this tournament")
	ErrInsufficientFunds        = errors.New("insufficient funds for entry fee")
	ErrNotEnoughEntries         = errors.New("not enough entries to generate a bracket")
	ErrSeedTaken                = errors.New("seed is already taken in this tournament")
	ErrWinnerNotInMatch         = errors.New("winner is not a participant of this match")
	ErrMatchNotReady            = errors.New("match participants are not yet decided")
	ErrTournamentNameRequired   = errors.New("tournament name is required")
	ErrTournamentInvalidFormat  = errors.New("invalid tournament format")
	ErrTournamentInvalidWindow  = errors.New("registration close must be after registration open")
	ErrTournamentInvalidCap     = errors.New("invalid capacity bounds: minimum must be at least 2 and maximum at least the minimum")
	ErrTournamentInvalidFee     = errors.New("entry fee must not be negative")

	// Operational.
	ErrBannerUploadsDisabled = errors.New("banner uploads are not configured")
)
