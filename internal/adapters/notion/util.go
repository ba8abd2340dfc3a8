package notion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
)

// StatusError wraps non-2xx HTTP responses from Notion
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

// Error interface
func (e *StatusError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// ResponseBody returns the diagnostic body tail
func (e *StatusError) ResponseBody() string { return e.Body }

// statusError reads a small tail of the body for diagnostics and closes it
func statusError(resp *http.Response, method, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	_ = resp.Body.Close()
	b := strings.TrimSpace(string(body))
	return &StatusError{
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Body:   b,
		Err:    perr.Newf(perr.FromHTTPStatus(resp.StatusCode), "notion %s %s status %d: %s", method, path, resp.StatusCode, b),
	}
}

// retryAfter parses Retry-After as delta seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func pathf(format string, a ...any) string { return fmt.Sprintf(format, a...) }
