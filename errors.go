package authcore

import (
	"errors"
	"fmt"
)

// Category sentinels. Every error returned by the Engine wraps exactly one of
// these, so callers classify with errors.Is and map categories to transport
// status codes without string matching.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidToken = errors.New("invalid token")
)

// Named conditions. Each wraps its category sentinel, so both
// errors.Is(err, ErrEmailTaken) and errors.Is(err, ErrConflict) hold.
var (
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken      = fmt.Errorf("%w: display name already in use", ErrConflict)
	ErrAlreadyVerified    = fmt.Errorf("%w: account already verified", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrAccountUnverified  = fmt.Errorf("%w: account not verified", ErrUnauthorized)
	ErrAccountDisabled    = fmt.Errorf("%w: account deactivated", ErrUnauthorized)
	ErrPasswordMismatch   = fmt.Errorf("%w: password confirmation does not match", ErrValidation)
	ErrTokenExpired       = fmt.Errorf("%w: token", ErrExpired)
	ErrTokenUsed          = fmt.Errorf("%w: token", ErrAlreadyUsed)
	ErrTokenUnknown       = fmt.Errorf("%w: token", ErrNotFound)
	ErrStoreUnavailable   = errors.New("backing store unavailable")
)
