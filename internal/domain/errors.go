package domain

import "errors"

// Ledger errors. Callers dispatch on the error value with errors.Is,
// never on message text.
var (
	// Authorization errors
	ErrUnauthorized = errors.New("caller is not the ledger owner")

	// Validation errors
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")
	ErrInvalidEventID  = errors.New("invalid event id")
	ErrInvalidName     = errors.New("event name must not be empty")
	ErrInvalidAccount  = errors.New("invalid account identity")

	// Reservation errors
	ErrAlreadyReserved = errors.New("account already reserved this event")
	ErrEventFull       = errors.New("event is full")

	// Bootstrap errors
	ErrOwnerAlreadySet = errors.New("ledger owner already initialized")
	ErrOwnerNotSet     = errors.New("ledger owner not initialized")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrInvalidEventID)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidAccount)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyReserved) ||
		errors.Is(err, ErrEventFull)
}

// IsAuthorizationError checks if the error is an authorization error
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
