// Package remote adapts the Linear and Notion clients to the sync ports
package remote

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/zinonweke/linear-notion-sync/internal/adapters/linear"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// LinearSource is the change feed backed by Linear's issues connection
type LinearSource struct {
	c *linear.Client
}

var _ domain.IssueSource = (*LinearSource)(nil)

// NewLinearSource wraps a Linear client
func NewLinearSource(c *linear.Client) *LinearSource { return &LinearSource{c: c} }

// IssuesPage fetches one page and converts it to domain issues
func (s *LinearSource) IssuesPage(ctx context.Context, req domain.PageRequest) (domain.IssuePage, error) {
	page, err := s.c.Issues(ctx, linear.IssuesQuery{
		Since: req.Since,
		Label: req.Label,
		First: req.First,
		After: req.After,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return domain.IssuePage{}, err
		}
		status, body := domain.StatusOf(err)
		return domain.IssuePage{}, &domain.UpstreamQueryError{Status: status, Body: body, Err: err}
	}

	out := domain.IssuePage{
		Issues:  make([]domain.Issue, 0, len(page.Edges)),
		HasNext: page.PageInfo.HasNextPage,
	}
	if page.PageInfo.EndCursor != nil {
		out.EndCursor = *page.PageInfo.EndCursor
	}
	for _, e := range page.Edges {
		out.Issues = append(out.Issues, toIssue(e.Node))
	}
	return out, nil
}

func toIssue(n linear.Issue) domain.Issue {
	is := domain.Issue{
		Identifier:  n.Identifier,
		Title:       n.Title,
		URL:         n.URL,
		Priority:    n.Priority,
		UpdatedAt:   n.UpdatedAt,
		DueDate:     deref(n.DueDate),
		Description: deref(n.Description),
	}
	if n.State != nil {
		is.State = n.State.Name
	}
	for _, l := range n.Labels.Nodes {
		if name := strings.TrimSpace(l.Name); name != "" {
			is.Labels = append(is.Labels, name)
		}
	}
	if n.Cycle != nil {
		is.Cycle = strings.TrimSpace(deref(n.Cycle.Name))
		// unnamed cycles display as their number
		if is.Cycle == "" && n.Cycle.Number > 0 {
			is.Cycle = "Cycle " + strconv.Itoa(n.Cycle.Number)
		}
	}
	return is
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
