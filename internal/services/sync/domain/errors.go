package domain

import (
	"errors"
	"fmt"

	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
)

// ConfigError lists missing or malformed configuration; the run never starts
type ConfigError = config.Error

// ErrFailedRecords is returned by a run that finished with record errors when failing is enabled
var ErrFailedRecords = perr.New(perr.ErrorCodeUpstream, "sync: one or more records failed")

// UpstreamQueryError means a change feed page could not be fetched; it aborts the run
type UpstreamQueryError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamQueryError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream query failed: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream query failed: %v", e.Err)
}

func (e *UpstreamQueryError) Unwrap() error { return e.Err }

// Code maps the failure to a platform code
func (e *UpstreamQueryError) Code() perr.ErrorCode { return statusCode(e.Status, e.Err) }

// SchemaFetchError means the destination schema could not be read
type SchemaFetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *SchemaFetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("schema fetch failed: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("schema fetch failed: %v", e.Err)
}

func (e *SchemaFetchError) Unwrap() error { return e.Err }

// Code maps the failure to a platform code
func (e *SchemaFetchError) Code() perr.ErrorCode { return statusCode(e.Status, e.Err) }

// SchemaMutationError means appending an option to a property failed
type SchemaMutationError struct {
	Property string
	Option   string
	Status   int
	Body     string
	Err      error
}

func (e *SchemaMutationError) Error() string {
	return fmt.Sprintf("schema mutation failed adding %q to %q: %v", e.Option, e.Property, e.Err)
}

func (e *SchemaMutationError) Unwrap() error { return e.Err }

// Code maps the failure to a platform code
func (e *SchemaMutationError) Code() perr.ErrorCode { return statusCode(e.Status, e.Err) }

// UpsertError means a lookup, create or patch failed for a reason other than a retried rate limit
type UpsertError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *UpsertError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.Endpoint, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// Code maps the failure to a platform code
func (e *UpsertError) Code() perr.ErrorCode { return statusCode(e.Status, e.Err) }

// IsFatal reports whether err must terminate the run rather than a single record
func IsFatal(err error) bool {
	var uq *UpstreamQueryError
	var ce *ConfigError
	return errors.As(err, &uq) || errors.As(err, &ce)
}

// StatusOf extracts the HTTP status and body tail carried by an adapter error, if any
func StatusOf(err error) (int, string) {
	var se interface {
		HTTPStatus() int
		ResponseBody() string
	}
	if errors.As(err, &se) {
		return se.HTTPStatus(), se.ResponseBody()
	}
	return 0, ""
}

func statusCode(status int, inner error) perr.ErrorCode {
	if status > 0 {
		if c := perr.FromHTTPStatus(status); c != perr.ErrorCodeUnknown {
			return c
		}
		return perr.ErrorCodeUpstream
	}
	if c := perr.CodeOf(inner); c != perr.ErrorCodeUnknown {
		return c
	}
	return perr.ErrorCodeUpstream
}
