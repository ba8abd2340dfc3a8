// Package notion provides a rate-limit aware Notion REST client for the sync engine
package notion

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

	"golang.org/x/oauth2"
)

const (
	baseURLDefault   = "https://api.notion.com/v1"
	versionDefault   = "2022-06-28"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "linear-notion-sync"
	defaultMaxRetry  = 5
	defaultRetryBase = 400 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	Version   string
	UserAgent string
	Timeout   time.Duration

	// Retry config for rate limited and transient responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a minimal Notion REST client with bounded retry on 429 and gateway errors
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a new Client with sane defaults. The token rides on an oauth2
// static token source so every request carries a bearer Authorization header
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Version == "" {
		o.Version = versionDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.Token, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), src)
	hc.Timeout = o.Timeout

	return &Client{
		http:  hc,
		opts:  o,
		log:   *logger.Named("notion"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Do sends one logical request, retrying rate limits and gateway errors with bounded backoff.
// in is JSON encoded when non-nil; out is decoded from a 2xx body when non-nil
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "notion encode %s %s", method, path)
		}
		payload = b
	}

	url := c.opts.BaseURL + path
	replayable := method != http.MethodPost || isQuery(path)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "notion new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Notion-Version", c.opts.Version)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// a create may have landed before the connection dropped; never replay it
			if !replayable || !c.shouldRetry(attempts) {
				return perr.Wrapf(err, perr.ErrorCodeUnavailable, "notion %s %s failed", method, path)
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("notion transport error retrying")
			if serr := c.sleep(ctx, back); serr != nil {
				return serr
			}
			attempts++
			continue
		}

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("notion http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return decodeBody(resp, out, method, path)
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header, c.now())
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			wait = min(wait, maxBackoff)
			if !c.shouldRetry(attempts) {
				return statusError(resp, method, path)
			}
			_ = drainAndClose(resp.Body)
			c.log.Warn().Dur("sleep", wait).Int("attempt", attempts).Str("path", path).Msg("notion rate limited backing off")
			if serr := c.sleep(ctx, wait); serr != nil {
				return serr
			}
			attempts++
			continue
		case perr.IsRetryableStatus(resp.StatusCode):
			// a gateway error can follow a create that was stored; only a 429 proves nothing was written
			if !replayable || !c.shouldRetry(attempts) {
				return statusError(resp, method, path)
			}
			back := c.backoff(attempts)
			_ = drainAndClose(resp.Body)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Int("status", resp.StatusCode).Msg("notion transient error retrying")
			if serr := c.sleep(ctx, back); serr != nil {
				return serr
			}
			attempts++
			continue
		default:
			return statusError(resp, method, path)
		}
	}
}

// backoff doubles RetryBase per attempt up to maxBackoff without overflowing
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

// isQuery reports whether a POST is a read-only database query
func isQuery(path string) bool { return strings.HasSuffix(path, "/query") }

func decodeBody(resp *http.Response, out any, method, path string) error {
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "notion read %s %s", method, path)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "notion decode %s %s", method, path)
	}
	return nil
}
