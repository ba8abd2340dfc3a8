package notion

import (
	"context"
	"net/http"
	"net/url"
)

// GetDatabase fetches a database and its property schema
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (Database, error) {
	var out Database
	err := c.Do(ctx, http.MethodGet, pathf("/databases/%s", url.PathEscape(databaseID)), nil, &out)
	return out, err
}

// UpdateDatabase patches property schemas; Notion replaces each option list wholesale,
// so callers must send every option they want to keep
func (c *Client) UpdateDatabase(ctx context.Context, databaseID string, props map[string]PropertySchema) (Database, error) {
	var out Database
	body := struct {
		Properties map[string]PropertySchema `json:"properties"`
	}{Properties: props}
	err := c.Do(ctx, http.MethodPatch, pathf("/databases/%s", url.PathEscape(databaseID)), body, &out)
	return out, err
}

// QueryDatabase runs a filtered query and returns one page of results
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q QueryRequest) (QueryResponse, error) {
	var out QueryResponse
	err := c.Do(ctx, http.MethodPost, pathf("/databases/%s/query", url.PathEscape(databaseID)), q, &out)
	return out, err
}

// CreatePage creates a page under a database
func (c *Client) CreatePage(ctx context.Context, databaseID string, props map[string]PropertyValue) (Page, error) {
	var out Page
	body := struct {
		Parent     Parent                   `json:"parent"`
		Properties map[string]PropertyValue `json:"properties"`
	}{Parent: Parent{DatabaseID: databaseID}, Properties: props}
	err := c.Do(ctx, http.MethodPost, "/pages", body, &out)
	return out, err
}

// UpdatePage patches page properties; properties not in props are left untouched
func (c *Client) UpdatePage(ctx context.Context, pageID string, props map[string]PropertyValue) (Page, error) {
	var out Page
	body := struct {
		Properties map[string]PropertyValue `json:"properties"`
	}{Properties: props}
	err := c.Do(ctx, http.MethodPatch, pathf("/pages/%s", url.PathEscape(pageID)), body, &out)
	return out, err
}

// AppendBlocks appends child blocks to a page or block
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) error {
	body := struct {
		Children []Block `json:"children"`
	}{Children: blocks}
	return c.Do(ctx, http.MethodPatch, pathf("/blocks/%s/children", url.PathEscape(blockID)), body, nil)
}
