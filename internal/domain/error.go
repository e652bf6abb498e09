package domain

import (
	"errors"
	"fmt"
)

var (
	// Categories. Every error the engine returns matches exactly one of these with errors.Is.
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("entity not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGateway            = errors.New("payment gateway error")
	ErrCodeSpaceExhausted = errors.New("access code space exhausted")
	ErrStorage            = errors.New("storage error")

	ErrUnknownPackage    = fmt.Errorf("%w: unknown package", ErrValidation)
	ErrInvalidPlan       = fmt.Errorf("%w: invalid plan", ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be between 1 and 100", ErrValidation)
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", ErrValidation)
	ErrAlreadyExists     = fmt.Errorf("%w: entity already exists", ErrConflict)
	ErrAlreadyUsed       = fmt.Errorf("%w: access code already used", ErrConflict)
	ErrNotPending        = fmt.Errorf("%w: access code is not pending activation", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrConflict)

	// ErrInvalidExecContext is returned by repositories handed a tx handle they cannot use.
	ErrInvalidExecContext = fmt.Errorf("%w: invalid execution context", ErrStorage)
)

// Stable machine-readable codes, most specific first.
var codes = []struct {
	err  error
	code string
}{
	{ErrUnknownPackage, "UNKNOWN_PACKAGE"},
	{ErrInvalidPlan, "INVALID_PLAN"},
	{ErrInvalidQuantity, "INVALID_QUANTITY"},
	{ErrAlreadyUsed, "ALREADY_USED"},
	{ErrNotPending, "NOT_PENDING"},
	{ErrAlreadyExists, "ALREADY_EXISTS"},
	{ErrInvalidTransition, "INVALID_TRANSITION"},
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrConflict, "CONFLICT"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrGatewayUnavailable, "GATEWAY_UNAVAILABLE"},
	{ErrGateway, "GATEWAY_ERROR"},
	{ErrCodeSpaceExhausted, "CODE_SPACE_EXHAUSTED"},
	{ErrStorage, "STORAGE_ERROR"},
}

// Code maps err to its stable code. Unknown errors are INTERNAL.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// Storage wraps a driver error so it matches ErrStorage while keeping the cause for logs.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
