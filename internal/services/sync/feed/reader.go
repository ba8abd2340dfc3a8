// Package feed pages through the upstream change feed one issue at a time
package feed

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// DefaultPageSize is the page size requested when none is configured
const DefaultPageSize = 50

// Query selects the slice of the feed one run reads
type Query struct {
	Since    time.Time
	Label    string
	PageSize int
}

// Reader is a lazy, finite, non-restartable cursor over changed issues.
// Next returns io.EOF once the source reports no further pages
type Reader struct {
	src domain.IssueSource
	q   Query

	buf    []domain.Issue
	cursor string
	done   bool
	err    error

	pages   int
	yielded int
}

var _ domain.FeedReader = (*Reader)(nil)

// NewReader builds a reader; nothing is fetched until the first Next
func NewReader(src domain.IssueSource, q Query) *Reader {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return &Reader{src: src, q: q}
}

// Next returns the next issue, io.EOF at the end, or an *domain.UpstreamQueryError.
// After any error the reader is spent and keeps returning that error
func (r *Reader) Next(ctx context.Context) (domain.Issue, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return domain.Issue{}, r.err
		}
		if r.done {
			return domain.Issue{}, io.EOF
		}
		if err := r.fetch(ctx); err != nil {
			r.err = err
			return domain.Issue{}, err
		}
	}
	is := r.buf[0]
	r.buf = r.buf[1:]
	r.yielded++
	return is, nil
}

func (r *Reader) fetch(ctx context.Context) error {
	page, err := r.src.IssuesPage(ctx, domain.PageRequest{
		Since: r.q.Since,
		Label: r.q.Label,
		First: r.q.PageSize,
		After: r.cursor,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var uq *domain.UpstreamQueryError
		if errors.As(err, &uq) {
			return err
		}
		return &domain.UpstreamQueryError{Err: err}
	}
	r.pages++
	r.buf = page.Issues

	logger.C(ctx).Debug().
		Int("page", r.pages).
		Int("issues", len(page.Issues)).
		Bool("has_next", page.HasNext).
		Msg("feed page fetched")

	switch {
	case !page.HasNext:
		r.done = true
	case page.EndCursor == "" || page.EndCursor == r.cursor:
		// a cursor that does not advance would loop forever
		logger.C(ctx).Warn().Str("cursor", page.EndCursor).Msg("feed cursor did not advance; stopping")
		r.done = true
	default:
		r.cursor = page.EndCursor
	}
	return nil
}

// Stats reports pages fetched and issues yielded so far
func (r *Reader) Stats() (pages, yielded int) { return r.pages, r.yielded }
