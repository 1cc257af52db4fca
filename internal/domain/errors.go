package domain

import "errors"

// Failure taxonomy shared by all services. Handlers map these to HTTP
// statuses; everything else bubbles up as 500.
var (
	ErrNotFound          = errors.New("Not found")
	ErrWrongState        = errors.New("Operation not allowed in current state")
	ErrInvalidCode       = errors.New("Invalid code")
	ErrForbidden         = errors.New("Forbidden")
	ErrInvalidAmount     = errors.New("Amount must be a positive number")
	ErrInsufficientFunds = errors.New("Insufficient balance")
	ErrDuplicatePurchase = errors.New("Listing already sold")
)
