package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/adapters/linear"
	"github.com/zinonweke/linear-notion-sync/internal/adapters/notion"
	"github.com/zinonweke/linear-notion-sync/internal/platform/testkit"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

func TestLinearSource_ConvertsPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = testkit.DecodeBody(t, r)
		testkit.WriteJSON(t, w, http.StatusOK, map[string]any{"data": map[string]any{"issues": map[string]any{
			"edges": []any{
				map[string]any{"node": map[string]any{
					"identifier":  "ENG-1",
					"title":       "Broken export",
					"priority":    2,
					"updatedAt":   "2025-05-01T11:00:00Z",
					"description": nil,
					"state":       map[string]any{"name": "In Progress"},
					"labels":      map[string]any{"nodes": []any{map[string]any{"name": " Bug "}, map[string]any{"name": ""}}},
					"cycle":       map[string]any{"name": nil, "number": 4},
				}},
				map[string]any{"node": map[string]any{
					"identifier": "ENG-2",
					"updatedAt":  "2025-05-01T12:00:00Z",
					"cycle":      map[string]any{"name": "Hardening", "number": 5},
				}},
			},
			"pageInfo": map[string]any{"hasNextPage": false, "endCursor": nil},
		}}})
	}))
	t.Cleanup(srv.Close)

	src := NewLinearSource(linear.NewClient(linear.Options{BaseURL: srv.URL, APIKey: "k"}))
	page, err := src.IssuesPage(context.Background(), domain.PageRequest{Since: time.Now(), First: 50})
	if err != nil {
		t.Fatalf("IssuesPage: %v", err)
	}
	if page.HasNext || page.EndCursor != "" || len(page.Issues) != 2 {
		t.Fatalf("page = %+v", page)
	}
	a, b := page.Issues[0], page.Issues[1]
	if a.State != "In Progress" || a.Cycle != "Cycle 4" || len(a.Labels) != 1 || a.Labels[0] != "Bug" || a.Description != "" {
		t.Fatalf("issue a = %+v", a)
	}
	if b.Cycle != "Hardening" || b.State != "" || b.Priority != nil {
		t.Fatalf("issue b = %+v", b)
	}
}

func TestLinearSource_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"auth"}]}`))
	}))
	t.Cleanup(srv.Close)

	src := NewLinearSource(linear.NewClient(linear.Options{BaseURL: srv.URL, APIKey: "bad"}))
	_, err := src.IssuesPage(context.Background(), domain.PageRequest{First: 50})
	var uq *domain.UpstreamQueryError
	if !errors.As(err, &uq) || uq.Status != http.StatusUnauthorized || !strings.Contains(uq.Body, "auth") {
		t.Fatalf("err = %T %v", err, err)
	}
	if !domain.IsFatal(err) {
		t.Fatal("upstream errors must be fatal")
	}
}

// fakeNotion records requests and serves canned responses per route
type fakeNotion struct {
	t    *testing.T
	mu   sync.Mutex
	hits []string
	body map[string]map[string]any
	fail map[string]int
}

func newFakeNotion(t *testing.T) (*fakeNotion, *NotionStore) {
	f := &fakeNotion{t: t, body: map[string]map[string]any{}, fail: map[string]int{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c := notion.NewClient(notion.Options{BaseURL: srv.URL, Token: "secret", MaxRetries: -1})
	return f, NewNotionStore(c, "db1")
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	body := testkit.DecodeBody(f.t, r)

	f.mu.Lock()
	f.hits = append(f.hits, route)
	f.body[route] = body
	status := f.fail[route]
	f.mu.Unlock()

	if status != 0 {
		testkit.WriteJSON(f.t, w, status, map[string]any{"object": "error", "message": "nope"})
		return
	}
	switch route {
	case "GET /databases/db1":
		testkit.WriteJSON(f.t, w, http.StatusOK, map[string]any{
			"id": "db1",
			"properties": map[string]any{
				"Name":   map[string]any{"id": "title", "name": "Name", "type": "title", "title": map[string]any{}},
				"Type":   map[string]any{"id": "t1", "name": "Type", "type": "select", "select": map[string]any{"options": []any{map[string]any{"id": "o1", "name": "Bug", "color": "red"}}}},
				"Tags":   map[string]any{"id": "t2", "name": "Tags", "type": "multi_select", "multi_select": map[string]any{"options": []any{}}},
				"Status": map[string]any{"id": "t3", "name": "Status", "type": "status", "status": map[string]any{"options": []any{map[string]any{"name": "Done"}}}},
				"Files":  map[string]any{"id": "t4", "name": "Files", "type": "files"},
			},
		})
	case "POST /databases/db1/query":
		testkit.WriteJSON(f.t, w, http.StatusOK, map[string]any{"results": []any{map[string]any{"id": "p1"}, map[string]any{"id": "p2"}}, "has_more": true})
	case "POST /pages":
		testkit.WriteJSON(f.t, w, http.StatusOK, map[string]any{"id": "new-page"})
	default:
		testkit.WriteJSON(f.t, w, http.StatusOK, map[string]any{"id": "ok"})
	}
}

func (f *fakeNotion) sent(route string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body[route]
}

func TestNotionStore_FetchSchema(t *testing.T) {
	t.Parallel()

	_, st := newFakeNotion(t)
	s, err := st.FetchSchema(context.Background())
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	want := map[string]domain.PropertyKind{
		"Name": domain.KindTitle, "Type": domain.KindSelect, "Tags": domain.KindMultiSelect,
		"Status": domain.KindStatus, "Files": domain.KindOther,
	}
	for name, kind := range want {
		if p, ok := s.Property(name); !ok || p.Kind != kind {
			t.Fatalf("%s = %+v", name, p)
		}
	}
	if o := s.Properties["Type"].Options; len(o) != 1 || o[0].ID != "o1" || o[0].Color != "red" {
		t.Fatalf("Type options = %+v", o)
	}
}

func TestNotionStore_FetchSchemaError(t *testing.T) {
	t.Parallel()

	f, st := newFakeNotion(t)
	f.fail["GET /databases/db1"] = http.StatusNotFound
	_, err := st.FetchSchema(context.Background())
	var fe *domain.SchemaFetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound || !strings.Contains(fe.Body, "nope") {
		t.Fatalf("err = %T %v", err, err)
	}
}

func TestNotionStore_ReplaceOptions(t *testing.T) {
	t.Parallel()

	f, st := newFakeNotion(t)
	opts := []domain.Option{{ID: "o1", Name: "Bug", Color: "red"}, {Name: "Epic"}}
	if err := st.ReplaceOptions(context.Background(), "Tags", domain.KindMultiSelect, opts); err != nil {
		t.Fatalf("ReplaceOptions: %v", err)
	}
	props := f.sent("PATCH /databases/db1")["properties"].(map[string]any)
	list := props["Tags"].(map[string]any)["multi_select"].(map[string]any)["options"].([]any)
	if len(list) != 2 {
		t.Fatalf("options sent = %#v", list)
	}
	first := list[0].(map[string]any)
	if first["id"] != "o1" || first["color"] != "red" {
		t.Fatalf("existing option not preserved: %#v", first)
	}
	if second := list[1].(map[string]any); second["name"] != "Epic" || second["id"] != nil {
		t.Fatalf("new option = %#v", second)
	}

	if err := st.ReplaceOptions(context.Background(), "Name", domain.KindTitle, nil); err == nil {
		t.Fatal("non categorical kinds must be refused")
	}
}

func TestNotionStore_FindCreateUpdateAnnotate(t *testing.T) {
	t.Parallel()

	f, st := newFakeNotion(t)
	ctx := context.Background()

	ids, err := st.FindByExternalID(ctx, "Linear ID", "ENG-1", 2)
	if err != nil || len(ids) != 2 || ids[0] != "p1" {
		t.Fatalf("Find = %v %v", ids, err)
	}
	q := f.sent("POST /databases/db1/query")
	if q["page_size"] != float64(2) {
		t.Fatalf("page_size = %v", q["page_size"])
	}
	filter := q["filter"].(map[string]any)
	if filter["property"] != "Linear ID" || filter["rich_text"].(map[string]any)["equals"] != "ENG-1" {
		t.Fatalf("filter = %#v", filter)
	}

	fs := domain.FieldSet{
		"Name":     domain.TitleOf("Fix"),
		"Priority": domain.SelectOf("High"),
		"Status":   domain.FieldValue{Kind: domain.KindStatus, Select: "Done"},
		"Tags":     domain.MultiOf("a", "b"),
		"URL":      domain.URLOf("https://x"),
		"Due Date": domain.DateOf("2026-01-01", ""),
		"Ignored":  {Kind: domain.KindOther},
	}
	id, err := st.Create(ctx, fs)
	if err != nil || id != "new-page" {
		t.Fatalf("Create = %q %v", id, err)
	}
	created := f.sent("POST /pages")
	if created["parent"].(map[string]any)["database_id"] != "db1" {
		t.Fatalf("parent = %#v", created["parent"])
	}
	props := created["properties"].(map[string]any)
	if _, ok := props["Ignored"]; ok {
		t.Fatal("unsupported kinds must not be sent")
	}
	if props["Priority"].(map[string]any)["select"].(map[string]any)["name"] != "High" {
		t.Fatalf("Priority = %#v", props["Priority"])
	}
	if props["Status"].(map[string]any)["status"].(map[string]any)["name"] != "Done" {
		t.Fatalf("Status = %#v", props["Status"])
	}
	if len(props["Tags"].(map[string]any)["multi_select"].([]any)) != 2 {
		t.Fatalf("Tags = %#v", props["Tags"])
	}

	if err := st.Update(ctx, "p1", domain.FieldSet{"Priority": domain.SelectOf("Low")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := f.sent("PATCH /pages/p1")["properties"].(map[string]any); len(got) != 1 {
		t.Fatalf("update must only send present fields: %#v", got)
	}

	at := time.Date(2026, 2, 3, 4, 5, 0, 0, time.UTC)
	if err := st.Annotate(ctx, "p1", domain.Annotation{SyncedAt: at, State: "Done", Priority: "High"}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	children := f.sent("PATCH /blocks/p1/children")["children"].([]any)
	runs := children[0].(map[string]any)["paragraph"].(map[string]any)["rich_text"].([]any)
	if runs[0].(map[string]any)["annotations"].(map[string]any)["bold"] != true {
		t.Fatalf("first run must be bold: %#v", runs[0])
	}
	text := runs[1].(map[string]any)["text"].(map[string]any)["content"].(string)
	testkit.MustContain(t, text, "2026-02-03 04:05 UTC")
	testkit.MustContain(t, text, "Priority: High")
	testkit.MustContain(t, text, "Cycle: -")
}

func TestNotionStore_UpsertErrors(t *testing.T) {
	t.Parallel()

	f, st := newFakeNotion(t)
	f.fail["POST /pages"] = http.StatusBadRequest
	f.fail["PATCH /pages/p9"] = http.StatusConflict

	_, err := st.Create(context.Background(), domain.FieldSet{"Name": domain.TitleOf("x")})
	var ue *domain.UpsertError
	if !errors.As(err, &ue) || ue.Method != http.MethodPost || ue.Endpoint != "/pages" || ue.Status != http.StatusBadRequest {
		t.Fatalf("create err = %T %v", err, err)
	}
	err = st.Update(context.Background(), "p9", domain.FieldSet{"Name": domain.TitleOf("x")})
	if !errors.As(err, &ue) || ue.Method != http.MethodPatch || ue.Endpoint != "/pages/p9" || ue.Status != http.StatusConflict {
		t.Fatalf("update err = %T %v", err, err)
	}
}
