package errors

// Remote-service helpers for mapping HTTP responses to project ErrorCode and retry semantics

import (
	"context"
	stderrs "errors"
	"net"
	"net/http"
)

// FromHTTPStatus maps a non-2xx status from a remote API to an ErrorCode
func FromHTTPStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests
	case status == http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrorCodeForbidden
	case status == http.StatusNotFound:
		return ErrorCodeNotFound
	case status == http.StatusConflict:
		return ErrorCodeConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrorCodeValidation
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return ErrorCodeUnavailable
	case status >= 500:
		return ErrorCodeUpstream
	default:
		return ErrorCodeUnknown
	}
}

// IsRetryableStatus reports whether a remote status is worth retrying
func IsRetryableStatus(status int) bool {
	switch FromHTTPStatus(status) {
	case ErrorCodeTooManyRequests, ErrorCodeUnavailable:
		return true
	}
	return false
}

// IsRetryable reports whether err is transient
// context cancellation is never retryable; network timeouts are
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeTooManyRequests, ErrorCodeUnavailable:
		return true
	}
	var ne net.Error
	if stderrs.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
