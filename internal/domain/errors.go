package domain

import "errors"

var (
	// ErrNotAuthenticated means no viewer identity was supplied.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStorageUnavailable wraps any failed read or write of a collaborator.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidTransition is returned by a study session for an out-of-order action.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrUnknownVisibility marks a stored visibility value that is treated as private.
	ErrUnknownVisibility = errors.New("unknown visibility")

	ErrNotFound        = errors.New("not found")
	ErrInvalidQuality  = errors.New("invalid quality")
	ErrSelfFriendship  = errors.New("cannot befriend yourself")
	ErrEmptySession    = errors.New("no cards to study")
	ErrInvalidArgument = errors.New("invalid argument")
)
