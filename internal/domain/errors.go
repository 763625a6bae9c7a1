package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrInvalidTransition signals an attempt to move a wager through an illegal
// status change.
func ErrInvalidTransition(from, to WagerStatus) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("wager status cannot move from %s to %s", from, to),
		Status:  409,
	}
}

// ErrInsufficientTreasury signals the paying account cannot cover a payout.
// The wager stays won and the payout is deferred, so this is operator-facing.
func ErrInsufficientTreasury(currency Currency, needMinor, haveMinor int64) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_TREASURY",
		Message: fmt.Sprintf("treasury holds %d %s minor units, payout needs %d", haveMinor, currency, needMinor),
		Status:  503,
	}
}
