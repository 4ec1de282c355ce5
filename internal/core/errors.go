package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the coarse error class surfaced to clients. The values mirror
// the RPC-style codes the mobile client already understands.
type ErrorCode string

const (
	CodeFailedPrecondition ErrorCode = "failed-precondition"
	CodeInternal           ErrorCode = "internal"
	CodeUnavailable        ErrorCode = "unavailable"
	CodeUnauthenticated    ErrorCode = "unauthenticated"
)

// Machine-readable reasons carried in error details so clients can decide
// between retrying and showing a terminal message.
const (
	ReasonPlayAPIPermission         = "PLAY_API_PERMISSION"
	ReasonPurchaseNotFoundOrExpired = "PURCHASE_NOT_FOUND_OR_EXPIRED"
	ReasonPlayTemporaryFailure      = "PLAY_TEMPORARY_FAILURE"
	ReasonPurchaseValidationFailed  = "PURCHASE_VALIDATION_FAILED"
	ReasonPurchaseNotPurchased      = "PURCHASE_STATE_NOT_PURCHASED"
	ReasonTrialAlreadyUsed          = "TRIAL_ALREADY_USED"
	ReasonCredentialsMissing        = "CREDENTIALS_MISSING"
	ReasonCredentialsInvalid        = "CREDENTIALS_INVALID"
)

// Error is the structured error every failure is normalized to before it
// crosses the service boundary. StatusCode is the upstream HTTP status when
// one was observed, zero otherwise.
type Error struct {
	Code       ErrorCode
	Reason     string
	Message    string
	Retryable  bool
	StatusCode int
	cause      error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a non-retryable structured error.
func NewError(code ErrorCode, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// WrapError attaches a cause so callers can still errors.Is/As through it.
func WrapError(code ErrorCode, reason, message string, cause error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, cause: cause}
}

// AsError extracts a structured error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
