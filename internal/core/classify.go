package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/shamar-morrison/showseek-backend/internal/billing"
)

// Message fragments the Play API uses for purchases that are gone for good.
var notFoundFragments = []string{
	"not found",
	"was not found",
	"expired",
	"no longer exists",
}

// Message fragments that indicate a temporary upstream fault.
var transientFragments = []string{
	"network",
	"timeout",
	"timed out",
	"rate limit",
	"temporarily unavailable",
	"backend error",
}

// ClassifyBillingError maps a raw failure from the Play API into the
// structured error taxonomy. It is total: every input yields a usable
// classification, with unrecognized failures collapsing to an internal error.
// Errors that are already structured pass through unchanged.
func ClassifyBillingError(err error) *Error {
	if err == nil {
		return nil
	}
	if structured, ok := AsError(err); ok {
		return structured
	}

	// Credential-resolver failures are configuration problems, not Play faults.
	if errors.Is(err, billing.ErrCredentialsMissing) {
		return WrapError(CodeFailedPrecondition, ReasonCredentialsMissing, "billing credentials are not configured", err)
	}
	if errors.Is(err, billing.ErrCredentialsInvalid) {
		return WrapError(CodeFailedPrecondition, ReasonCredentialsInvalid, "billing credentials are invalid", err)
	}

	statusCode := httpStatusOf(err)
	msg := strings.ToLower(err.Error())

	switch {
	case statusCode == 401 || statusCode == 403:
		e := WrapError(CodeFailedPrecondition, ReasonPlayAPIPermission, "play api rejected the service account", err)
		e.StatusCode = statusCode
		return e

	case statusCode == 404 || statusCode == 410 || containsAny(msg, notFoundFragments):
		e := WrapError(CodeFailedPrecondition, ReasonPurchaseNotFoundOrExpired, "purchase not found or expired", err)
		e.StatusCode = statusCode
		return e

	case statusCode == 429 || statusCode >= 500,
		isTransportError(err),
		containsAny(msg, transientFragments):
		e := WrapError(CodeUnavailable, ReasonPlayTemporaryFailure, "play api temporarily unavailable", err)
		e.Retryable = true
		e.StatusCode = statusCode
		return e

	default:
		e := WrapError(CodeInternal, ReasonPurchaseValidationFailed, "purchase validation failed", err)
		e.StatusCode = statusCode
		return e
	}
}

// IsAlreadyAcknowledged reports whether err is the race where a concurrent
// call acknowledged the same purchase first. Used only around acknowledgment;
// the caller treats it as success.
func IsAlreadyAcknowledged(err error) bool {
	if err == nil {
		return false
	}
	if httpStatusOf(err) == 409 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already acknowledged")
}

// SanitizeError renders err for logging without the request/response wiring a
// googleapi error drags along (headers, auth tokens, raw bodies).
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Sprintf("googleapi: HTTP %d: %s", gerr.Code, gerr.Message)
	}
	s := err.Error()
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

func httpStatusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
