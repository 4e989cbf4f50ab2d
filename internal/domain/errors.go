package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrOrderNotFound = errors.New("order not found")

	ErrEmailExists      = errors.New("email already exists")
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	ErrOrderCancelled   = errors.New("order is cancelled")

	ErrInvalidEmail      = errors.New("invalid email format")
	ErrInvalidProduct    = errors.New("product name is empty")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("price cannot be negative")
	ErrInvalidAmount     = errors.New("amount is not a valid number")
	ErrCurrencyMismatch  = errors.New("currency differs from the rest of the order")
	ErrInvalidTransition = errors.New("invalid status transition")
)
