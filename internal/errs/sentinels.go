// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels. Every error returned by the engine wraps exactly one of these.
var (
	// ErrNotFound indicates the referenced item, request, loan or user does not exist
	// (or must not be revealed to the caller).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the actor lacks the role required for the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates a malformed argument (bad level, bad date range, empty field).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the write collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyTerminal indicates an attempt to mutate a resolved request or loan.
	ErrAlreadyTerminal = errors.New("already terminal")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

// Specific errors. Each wraps one taxonomy sentinel so callers may match either.
var (
	ErrInvalidLevel      = fmt.Errorf("trust level must be within 1..5: %w", ErrInvalidInput)
	ErrSelfTrust         = fmt.Errorf("cannot trust yourself: %w", ErrInvalidInput)
	ErrInvalidRange      = fmt.Errorf("start must be before end: %w", ErrInvalidInput)
	ErrDuplicatePending  = fmt.Errorf("a pending request already exists: %w", ErrConflict)
	ErrItemAlreadyOnLoan = fmt.Errorf("item already on loan: %w", ErrConflict)
	ErrAlreadyReturned   = fmt.Errorf("loan already returned: %w", ErrAlreadyTerminal)
	ErrItemNotVisible    = fmt.Errorf("item not visible: %w", ErrNotFound)
)
