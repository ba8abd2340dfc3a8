// Package linear provides a small Linear GraphQL client for the change feed
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
)

const (
	baseURLDefault = "https://api.linear.app/graphql"
	defaultTimeout = 30 * time.Second
	defaultUA      = "linear-notion-sync"
)

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Client posts GraphQL documents to Linear. Failures are surfaced, never retried
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("linear"),
		now:  time.Now,
	}
}

// StatusError wraps non-2xx responses and GraphQL level errors from Linear
type StatusError struct {
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

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Query executes one GraphQL document and decodes the data member into out
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "linear encode query")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "linear new request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	// personal API keys go in Authorization as-is, no scheme
	req.Header.Set("Authorization", c.opts.APIKey)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "linear do failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("linear close body failed")
		}
	}()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Msg("linear http response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		b := strings.TrimSpace(string(body))
		return &StatusError{
			Status: resp.StatusCode,
			Body:   b,
			Err:    perr.Newf(perr.FromHTTPStatus(resp.StatusCode), "linear status %d: %s", resp.StatusCode, b),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "linear read body")
	}
	var env gqlResponse
	if err := json.Unmarshal(b, &env); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "linear decode response")
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		joined := strings.Join(msgs, "; ")
		return &StatusError{
			Status: resp.StatusCode,
			Body:   joined,
			Err:    perr.Newf(perr.ErrorCodeUpstream, "linear graphql errors: %s", joined),
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "linear decode data")
	}
	return nil
}
