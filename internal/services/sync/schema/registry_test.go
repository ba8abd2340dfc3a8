package schema

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

type replaceCall struct {
	property string
	options  []domain.Option
}

// memStore is an in-memory destination schema
type memStore struct {
	mu       sync.Mutex
	props    map[string]domain.Property
	fetches  int
	replaces []replaceCall
	fetchErr error
	failNext error
}

func newMemStore() *memStore {
	return &memStore{props: map[string]domain.Property{
		"Type":   {Name: "Type", Kind: domain.KindSelect, Options: []domain.Option{{ID: "o1", Name: "Bug", Color: "red"}, {ID: "o2", Name: "Task", Color: "blue"}}},
		"Tags":   {Name: "Tags", Kind: domain.KindMultiSelect},
		"Status": {Name: "Status", Kind: domain.KindOther, Options: []domain.Option{{Name: "Done"}}},
		"Name":   {Name: "Name", Kind: domain.KindTitle},
	}}
}

func (m *memStore) FetchSchema(context.Context) (domain.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return domain.Schema{}, m.fetchErr
	}
	cp := make(map[string]domain.Property, len(m.props))
	for k, v := range m.props {
		v.Options = append([]domain.Option(nil), v.Options...)
		cp[k] = v
	}
	return domain.Schema{DatabaseID: "db", Properties: cp}, nil
}

func (m *memStore) ReplaceOptions(_ context.Context, property string, _ domain.PropertyKind, options []domain.Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.replaces = append(m.replaces, replaceCall{property: property, options: append([]domain.Option(nil), options...)})
	p := m.props[property]
	p.Options = options
	m.props[property] = p
	return nil
}

func TestSchema_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Schema(ctx); err != nil {
			t.Fatalf("Schema: %v", err)
		}
	}
	if st.fetches != 1 {
		t.Fatalf("fetches = %d, want 1", st.fetches)
	}

	r.Invalidate()
	s, err := r.Schema(ctx)
	if err != nil || st.fetches != 2 {
		t.Fatalf("after invalidate fetches = %d err=%v", st.fetches, err)
	}
	if p, ok := s.Property("Type"); !ok || len(p.Options) != 2 {
		t.Fatalf("Type property = %+v", p)
	}
}

func TestEnsureOption_CaseInsensitiveExisting(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)

	added, err := r.EnsureOption(context.Background(), "Type", "bug")
	if err != nil || added {
		t.Fatalf("EnsureOption(bug) added=%v err=%v", added, err)
	}
	if len(st.replaces) != 0 {
		t.Fatalf("no mutation expected, got %v", st.replaces)
	}
}

func TestEnsureOption_NoOps(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)
	ctx := context.Background()

	cases := []struct{ property, option string }{
		{"Type", ""},
		{"Type", "   "},
		{"Missing", "Anything"},
		{"Name", "Title text"},
		{"Status", "In Review"},
	}
	for _, c := range cases {
		added, err := r.EnsureOption(ctx, c.property, c.option)
		if err != nil || added {
			t.Fatalf("EnsureOption(%q,%q) added=%v err=%v", c.property, c.option, added, err)
		}
	}
	if len(st.replaces) != 0 {
		t.Fatalf("no mutations expected, got %d", len(st.replaces))
	}
	if st.fetches != 1 {
		t.Fatalf("empty option should not even fetch; fetches=%d", st.fetches)
	}
}

func TestEnsureOption_AppendsOncePreservingExisting(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)
	ctx := context.Background()

	before, _ := r.Schema(ctx)
	pre := before.Properties["Type"].OptionNames()

	added, err := r.EnsureOption(ctx, "Type", "Improvement")
	if err != nil || !added {
		t.Fatalf("first ensure added=%v err=%v", added, err)
	}
	// same value again in any case: no second mutation
	for _, v := range []string{"Improvement", "IMPROVEMENT", "improvement"} {
		if again, err := r.EnsureOption(ctx, "Type", v); err != nil || again {
			t.Fatalf("repeat ensure(%q) added=%v err=%v", v, again, err)
		}
	}

	if len(st.replaces) != 1 {
		t.Fatalf("mutations = %d, want 1", len(st.replaces))
	}
	got := st.replaces[0].options
	if len(got) != len(pre)+1 {
		t.Fatalf("options = %+v", got)
	}
	for i, name := range pre {
		if got[i].Name != name {
			t.Fatalf("existing option %d reordered: %+v", i, got)
		}
	}
	if got[0].ID != "o1" || got[0].Color != "red" || got[1].ID != "o2" {
		t.Fatalf("existing option ids/colors must be preserved: %+v", got)
	}
	if got[2].Name != "Improvement" || got[2].ID != "" {
		t.Fatalf("new option = %+v", got[2])
	}

	// eager refresh after the mutation: schema already reflects the new option
	if st.fetches != 2 {
		t.Fatalf("fetches = %d, want 2 (initial + eager refresh)", st.fetches)
	}
	after, _ := r.Schema(ctx)
	if !after.Properties["Type"].HasOption("improvement") {
		t.Fatal("cache not refreshed after mutation")
	}
	if f, m := r.Stats(); f != 2 || m != 1 {
		t.Fatalf("Stats = %d, %d", f, m)
	}
}

func TestEnsureOption_DistinctValuesOneMutationEach(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)
	ctx := context.Background()

	for _, v := range []string{"Alpha", "Beta", "alpha", "Gamma", "beta"} {
		if _, err := r.EnsureOption(ctx, "Tags", v); err != nil {
			t.Fatalf("ensure %q: %v", v, err)
		}
	}
	if len(st.replaces) != 3 {
		t.Fatalf("mutations = %d, want 3", len(st.replaces))
	}
	final := st.replaces[2].options
	if len(final) != 3 || final[0].Name != "Alpha" || final[2].Name != "Gamma" {
		t.Fatalf("final options = %+v", final)
	}
}

func TestEnsureOption_ConcurrentCallersMutateOnce(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.EnsureOption(context.Background(), "Type", "Feature")
		}()
	}
	wg.Wait()
	if len(st.replaces) != 1 {
		t.Fatalf("mutations = %d, want 1", len(st.replaces))
	}
}

type statusErr struct{}

func (statusErr) Error() string        { return "notion PATCH /databases/db status 400" }
func (statusErr) HTTPStatus() int      { return 400 }
func (statusErr) ResponseBody() string { return "validation_error" }

func TestEnsureOption_MutationFailure(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.failNext = statusErr{}
	r := New(st)

	_, err := r.EnsureOption(context.Background(), "Type", "Epic")
	var me *domain.SchemaMutationError
	if !errors.As(err, &me) {
		t.Fatalf("err = %T %v", err, err)
	}
	if me.Property != "Type" || me.Option != "Epic" || me.Status != 400 || me.Body != "validation_error" {
		t.Fatalf("mutation error = %+v", me)
	}
	if !strings.Contains(me.Error(), `"Epic"`) || perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("error text/code mismatch: %v %v", me, perr.CodeOf(err))
	}
}

func TestSchema_FetchFailure(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.fetchErr = errors.New("boom")
	r := New(st)

	_, err := r.Schema(context.Background())
	var fe *domain.SchemaFetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %T %v", err, err)
	}
	if _, err := r.EnsureOption(context.Background(), "Type", "X"); !errors.As(err, &fe) {
		t.Fatalf("EnsureOption should surface fetch errors, got %v", err)
	}
}
