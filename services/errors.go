package services

import "errors"

// Shared service-level errors, mapped to HTTP statuses in the handlers.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Validation and business rules.
	ErrValidationFailed        = errors.New("validation failed")
	ErrTeamNameRequired        = errors.New("team name is required")
	ErrCaptainEmailRequired    = errors.New("captain email is required")
	ErrTournamentNameRequired  = errors.New("tournament name is required")
	ErrRegistrationNotOpen     = errors.New("tournament registration is not open")
	ErrTournamentFull          = errors.New("tournament registration is full")
	ErrNotEnoughTeams          = errors.New("at least 4 approved and checked-in teams are required to generate the group stage")
	ErrGroupStageIncomplete    = errors.New("all group matches must be completed before seeding the knockout stage")
	ErrKnockoutAlreadySeeded   = errors.New("knockout stage has already been seeded")
	ErrKnockoutRoundIncomplete = errors.New("current knockout round is not completed")
	ErrInvalidStatusTransition = errors.New("invalid tournament status transition")

	// Reconciliation protocol.
	ErrResultAlreadySubmitted = errors.New("this side has already submitted a result")
	ErrOpponentNotSubmitted   = errors.New("the opposing team has not submitted a result yet")
	ErrMatchAlreadyCompleted  = errors.New("match result is already finalized")
	ErrMatchNotInPlay         = errors.New("match is not open for result submission")

	// Conflicts.
	ErrTeamNameConflict       = errors.New("team name is already taken in this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Auth.
	ErrAuthInvalidCredentials = errors.New("invalid admin password")
	ErrForbiddenOperation     = errors.New("operation not allowed")

	// ErrSchemaOutOfDate wraps a database error caused by a missing column,
	// pointing the administrator at the pending migrations.
	ErrSchemaOutOfDate = errors.New("database schema is out of date: run the pending migrations")
)
