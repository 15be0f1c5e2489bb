package errors

import "errors"

// Shared application errors.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned for invalid input to a mutating operation.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for state conflicts, e.g. an attempt to start
	// a competition that is still a draft.
	ErrConflict = errors.New("resource state conflict")

	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission for an action.
	ErrForbidden = errors.New("forbidden")
)

// Admission errors raised by the competition lifecycle. These are caller
// mistakes, never background failures, and are raised before any state change.
var (
	// ErrAlreadyJoined is returned when a user already holds a participant
	// record for the competition.
	ErrAlreadyJoined = errors.New("user has already joined this competition")

	// ErrAlreadyMember is returned when a user is already on the team roster.
	ErrAlreadyMember = errors.New("user is already a member of this team")

	// ErrCompetitionFull is returned once the participant limit is reached.
	ErrCompetitionFull = errors.New("competition has reached its participant limit")
)
