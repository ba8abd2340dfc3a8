package remote

import (
	"context"
	"net/http"
	"strings"

	"github.com/zinonweke/linear-notion-sync/internal/adapters/notion"
	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

const annotationLayout = "2006-01-02 15:04 MST"

// NotionStore is the destination database: its schema and its pages
type NotionStore struct {
	c          *notion.Client
	databaseID string
}

var (
	_ domain.SchemaStore = (*NotionStore)(nil)
	_ domain.PageStore   = (*NotionStore)(nil)
)

// NewNotionStore binds a client to one database
func NewNotionStore(c *notion.Client, databaseID string) *NotionStore {
	return &NotionStore{c: c, databaseID: databaseID}
}

// FetchSchema reads the database properties
func (s *NotionStore) FetchSchema(ctx context.Context) (domain.Schema, error) {
	db, err := s.c.GetDatabase(ctx, s.databaseID)
	if err != nil {
		status, body := domain.StatusOf(err)
		return domain.Schema{}, &domain.SchemaFetchError{Status: status, Body: body, Err: err}
	}
	out := domain.Schema{DatabaseID: s.databaseID, Properties: make(map[string]domain.Property, len(db.Properties))}
	for key, p := range db.Properties {
		name := p.Name
		if name == "" {
			name = key
		}
		out.Properties[name] = domain.Property{Name: name, Kind: kindOf(p.Type), Options: optionsOf(p)}
	}
	return out, nil
}

// ReplaceOptions writes the full option list of a select or multi select property
func (s *NotionStore) ReplaceOptions(ctx context.Context, property string, kind domain.PropertyKind, options []domain.Option) error {
	list := &notion.OptionList{Options: make([]notion.Option, 0, len(options))}
	for _, o := range options {
		list.Options = append(list.Options, notion.Option{ID: o.ID, Name: o.Name, Color: o.Color})
	}

	var ps notion.PropertySchema
	switch kind {
	case domain.KindSelect:
		ps.Select = list
	case domain.KindMultiSelect:
		ps.MultiSelect = list
	default:
		return perr.InvalidArgf("property %q of kind %s has no editable options", property, kind)
	}
	_, err := s.c.UpdateDatabase(ctx, s.databaseID, map[string]notion.PropertySchema{property: ps})
	return err
}

// FindByExternalID queries for pages whose text property equals externalID
func (s *NotionStore) FindByExternalID(ctx context.Context, idProperty, externalID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1
	}
	res, err := s.c.QueryDatabase(ctx, s.databaseID, notion.QueryRequest{
		Filter:   &notion.Filter{Property: idProperty, RichText: &notion.TextFilter{Equals: externalID}},
		PageSize: limit,
	})
	if err != nil {
		return nil, upsertError(http.MethodPost, "/databases/"+s.databaseID+"/query", err)
	}
	ids := make([]string, 0, len(res.Results))
	for _, p := range res.Results {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Create adds a page under the database and returns its id
func (s *NotionStore) Create(ctx context.Context, fields domain.FieldSet) (string, error) {
	page, err := s.c.CreatePage(ctx, s.databaseID, Properties(fields))
	if err != nil {
		return "", upsertError(http.MethodPost, "/pages", err)
	}
	return page.ID, nil
}

// Update patches only the properties present in fields
func (s *NotionStore) Update(ctx context.Context, pageID string, fields domain.FieldSet) error {
	if _, err := s.c.UpdatePage(ctx, pageID, Properties(fields)); err != nil {
		return upsertError(http.MethodPatch, "/pages/"+pageID, err)
	}
	return nil
}

// Annotate appends the audit paragraph to the page body
func (s *NotionStore) Annotate(ctx context.Context, pageID string, note domain.Annotation) error {
	if err := s.c.AppendBlocks(ctx, pageID, []notion.Block{AnnotationBlock(note)}); err != nil {
		return upsertError(http.MethodPatch, "/blocks/"+pageID+"/children", err)
	}
	return nil
}

// AnnotationBlock renders the audit note as one paragraph
func AnnotationBlock(note domain.Annotation) notion.Block {
	parts := []string{
		note.SyncedAt.Format(annotationLayout),
		"State: " + orDash(note.State),
		"Priority: " + orDash(note.Priority),
		"Cycle: " + orDash(note.Cycle),
	}
	return notion.ParagraphBlock(notion.Bold("Last synced: "), notion.Text(strings.Join(parts, " · ")))
}

// Properties converts a field set into Notion page property values
func Properties(fs domain.FieldSet) map[string]notion.PropertyValue {
	out := make(map[string]notion.PropertyValue, len(fs))
	for name, v := range fs {
		if pv, ok := propertyValue(v); ok {
			out[name] = pv
		}
	}
	return out
}

func propertyValue(v domain.FieldValue) (notion.PropertyValue, bool) {
	switch v.Kind {
	case domain.KindTitle:
		return notion.PropertyValue{Title: runs(v.Chunks)}, true
	case domain.KindText:
		return notion.PropertyValue{RichText: runs(v.Chunks)}, true
	case domain.KindSelect:
		return notion.PropertyValue{Select: &notion.SelectValue{Name: v.Select}}, true
	case domain.KindStatus:
		return notion.PropertyValue{Status: &notion.SelectValue{Name: v.Select}}, true
	case domain.KindMultiSelect:
		ms := make([]notion.SelectValue, 0, len(v.Multi))
		for _, m := range v.Multi {
			ms = append(ms, notion.SelectValue{Name: m})
		}
		return notion.PropertyValue{MultiSelect: ms}, true
	case domain.KindURL:
		u := v.URL
		return notion.PropertyValue{URL: &u}, true
	case domain.KindDate:
		return notion.PropertyValue{Date: &notion.DateValue{Start: v.Date.Start, TimeZone: v.Date.TimeZone}}, true
	default:
		return notion.PropertyValue{}, false
	}
}

func runs(chunks []string) []notion.RichText {
	out := make([]notion.RichText, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, notion.Text(c))
	}
	return out
}

func kindOf(t string) domain.PropertyKind {
	switch t {
	case notion.TypeSelect:
		return domain.KindSelect
	case notion.TypeMultiSelect:
		return domain.KindMultiSelect
	case notion.TypeTitle:
		return domain.KindTitle
	case notion.TypeRichText:
		return domain.KindText
	case notion.TypeURL:
		return domain.KindURL
	case notion.TypeDate:
		return domain.KindDate
	case notion.TypeStatus:
		return domain.KindStatus
	default:
		return domain.KindOther
	}
}

func optionsOf(p notion.PropertySchema) []domain.Option {
	var list *notion.OptionList
	switch {
	case p.Select != nil:
		list = p.Select
	case p.MultiSelect != nil:
		list = p.MultiSelect
	case p.Status != nil:
		list = p.Status
	default:
		return nil
	}
	out := make([]domain.Option, 0, len(list.Options))
	for _, o := range list.Options {
		out = append(out, domain.Option{ID: o.ID, Name: o.Name, Color: o.Color})
	}
	return out
}

func upsertError(method, endpoint string, err error) error {
	status, body := domain.StatusOf(err)
	return &domain.UpsertError{Method: method, Endpoint: endpoint, Status: status, Body: body, Err: err}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
