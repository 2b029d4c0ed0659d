package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the terminal failure shape for an authorization attempt. Code is
// stable across releases; clients key retry behavior off it.
type APIError struct {
	Status  int                    `json:"-"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithDetail returns a copy carrying an extra detail field, leaving the
// package-level sentinel untouched.
func (e *APIError) WithDetail(key string, value interface{}) *APIError {
	detail := make(map[string]interface{}, len(e.Detail)+1)
	for k, v := range e.Detail {
		detail[k] = v
	}
	detail[key] = value
	return &APIError{
		Status:  e.Status,
		Code:    e.Code,
		Message: e.Message,
		Detail:  detail,
	}
}

var (
	ErrRateLimitExceeded      = NewAPIError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Request rate limit exceeded")
	ErrUnauthorized           = NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Unknown, inactive or locked operator key")
	ErrInvalidSignature       = NewAPIError(http.StatusUnauthorized, "INVALID_SIGNATURE", "Request signature verification failed")
	ErrTimestampExpired       = NewAPIError(http.StatusBadRequest, "TIMESTAMP_EXPIRED", "Request timestamp outside the allowed window")
	ErrMalformedRequest       = NewAPIError(http.StatusBadRequest, "MALFORMED_REQUEST", "Request body is not valid JSON")
	ErrInvalidSessionIdentity = NewAPIError(http.StatusBadRequest, "INVALID_SESSION_IDENTITY", "Malformed session request identity")
	ErrAppNotAuthorized       = NewAPIError(http.StatusForbidden, "APP_NOT_AUTHORIZED", "Operator is not entitled to the requested app")
	ErrPlayerCountOutOfRange  = NewAPIError(http.StatusBadRequest, "PLAYER_COUNT_OUT_OF_RANGE", "Requested player count outside the app's allowed range")
	ErrInsufficientBalance    = NewAPIError(http.StatusPaymentRequired, "INSUFFICIENT_BALANCE", "Prepaid balance too low for the requested session")
	ErrInternal               = NewAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error, safe to retry with the same session identity")
)

// AsAPIError maps any error to the taxonomy. Unexpected errors collapse to
// INTERNAL_ERROR so storage failures never leak internals to callers.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
