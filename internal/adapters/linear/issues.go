package linear

import (
	"context"
	"time"
)

const issuesQuery = `query Issues($first: Int!, $after: String, $filter: IssueFilter) {
  issues(first: $first, after: $after, filter: $filter, orderBy: updatedAt) {
    edges {
      node {
        identifier
        title
        url
        priority
        dueDate
        updatedAt
        description
        state { name }
        labels { nodes { name } }
        cycle { name number }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// IssuesQuery selects one page of issues changed since a timestamp
type IssuesQuery struct {
	Since time.Time
	// Label, when set, filters server side on a case-insensitive label name
	Label string
	First int
	After string
}

// Issue mirrors the issue node selected by issuesQuery
type Issue struct {
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Priority    any       `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Description *string   `json:"description"`
	State       *Named    `json:"state"`
	Labels      struct {
		Nodes []Named `json:"nodes"`
	} `json:"labels"`
	Cycle *Cycle `json:"cycle"`
}

// Named is any node selected only by name
type Named struct {
	Name string `json:"name"`
}

// Cycle is an issue's cycle; Name is optional in Linear
type Cycle struct {
	Name   *string `json:"name"`
	Number int     `json:"number"`
}

// PageInfo is the relay cursor block
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// IssuesPage is one page of the issues connection
type IssuesPage struct {
	Edges []struct {
		Node Issue `json:"node"`
	} `json:"edges"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Issues fetches one page of issues updated at or after q.Since
func (c *Client) Issues(ctx context.Context, q IssuesQuery) (IssuesPage, error) {
	filter := map[string]any{
		"updatedAt": map[string]any{"gte": q.Since.UTC().Format(time.RFC3339)},
	}
	if q.Label != "" {
		filter["labels"] = map[string]any{
			"some": map[string]any{"name": map[string]any{"eqIgnoreCase": q.Label}},
		}
	}
	vars := map[string]any{"first": q.First, "filter": filter}
	if q.After != "" {
		vars["after"] = q.After
	}

	var out struct {
		Issues IssuesPage `json:"issues"`
	}
	if err := c.Query(ctx, issuesQuery, vars, &out); err != nil {
		return IssuesPage{}, err
	}
	return out.Issues, nil
}
