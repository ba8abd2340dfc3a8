package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/platform/testkit"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/mapper"
)

const testLabel = "Customer - Hapag Lloyd"

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// pagedSource serves fixed pages and can fail on a given page index
type pagedSource struct {
	mu     sync.Mutex
	pages  [][]domain.Issue
	failAt int
	err    error
	reqs   []domain.PageRequest
	hook   func()
}

func (p *pagedSource) IssuesPage(_ context.Context, req domain.PageRequest) (domain.IssuePage, error) {
	p.mu.Lock()
	idx := len(p.reqs)
	p.reqs = append(p.reqs, req)
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if p.err != nil && idx == p.failAt {
		return domain.IssuePage{}, p.err
	}
	if idx >= len(p.pages) {
		return domain.IssuePage{}, nil
	}
	out := domain.IssuePage{Issues: p.pages[idx], HasNext: idx < len(p.pages)-1}
	if out.HasNext {
		out.EndCursor = fmt.Sprintf("c%d", idx+1)
	}
	return out, nil
}

func (p *pagedSource) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

// memStore is an in-memory destination database that rejects unknown select options
type memStore struct {
	mu    sync.Mutex
	props map[string]domain.Property
	pages map[string]domain.FieldSet
	order []string
	notes map[string][]domain.Annotation
	calls map[string]int

	panicOn      string
	failCreate   error
	failAnnotate error
	onCreate     func()
}

func newMemStore() *memStore {
	sel := func(name string, opts ...string) domain.Property {
		p := domain.Property{Name: name, Kind: domain.KindSelect}
		for i, o := range opts {
			p.Options = append(p.Options, domain.Option{ID: fmt.Sprintf("%s-%d", name, i), Name: o})
		}
		return p
	}
	props := map[string]domain.Property{
		"Name":        {Name: "Name", Kind: domain.KindTitle},
		"Linear ID":   {Name: "Linear ID", Kind: domain.KindText},
		"URL":         {Name: "URL", Kind: domain.KindURL},
		"Status":      sel("Status", "Todo", "Done"),
		"Priority":    sel("Priority", "Urgent", "Low"),
		"Module":      sel("Module"),
		"Sub-Area":    sel("Sub-Area"),
		"Type":        sel("Type", "Task"),
		"Cycle":       sel("Cycle"),
		"Due Date":    {Name: "Due Date", Kind: domain.KindDate},
		"Description": {Name: "Description", Kind: domain.KindText},
		"Last Synced": {Name: "Last Synced", Kind: domain.KindDate},
	}
	return &memStore{
		props: props,
		pages: map[string]domain.FieldSet{},
		notes: map[string][]domain.Annotation{},
		calls: map[string]int{},
	}
}

func (m *memStore) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *memStore) page(id string) domain.FieldSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[id]
}

func (m *memStore) FetchSchema(context.Context) (domain.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["fetch"]++
	cp := make(map[string]domain.Property, len(m.props))
	for k, v := range m.props {
		v.Options = slices.Clone(v.Options)
		cp[k] = v
	}
	return domain.Schema{DatabaseID: "db", Properties: cp}, nil
}

func (m *memStore) ReplaceOptions(_ context.Context, property string, _ domain.PropertyKind, options []domain.Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["replace"]++
	p := m.props[property]
	p.Options = slices.Clone(options)
	m.props[property] = p
	return nil
}

func (m *memStore) FindByExternalID(_ context.Context, idProperty, externalID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["find"]++
	var ids []string
	for _, id := range m.order {
		v, ok := m.pages[id][idProperty]
		if ok && len(v.Chunks) > 0 && v.Chunks[0] == externalID {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *memStore) validate(fs domain.FieldSet) error {
	for name, v := range fs {
		p, ok := m.props[name]
		if !ok {
			return fmt.Errorf("unknown property %q", name)
		}
		for _, o := range v.OptionNames() {
			if !p.HasOption(o) {
				return fmt.Errorf("option %q not allowed on %q", o, name)
			}
		}
	}
	return nil
}

func (m *memStore) Create(_ context.Context, fs domain.FieldSet) (string, error) {
	if id := fs["Linear ID"]; m.panicOn != "" && len(id.Chunks) > 0 && id.Chunks[0] == m.panicOn {
		panic("boom")
	}
	if m.onCreate != nil {
		m.onCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	if m.failCreate != nil {
		return "", m.failCreate
	}
	if err := m.validate(fs); err != nil {
		return "", &domain.UpsertError{Method: "POST", Endpoint: "/pages", Status: 400, Body: err.Error(), Err: err}
	}
	id := fmt.Sprintf("page-%d", len(m.order)+1)
	m.pages[id] = fs.Merge(nil)
	m.order = append(m.order, id)
	return id, nil
}

func (m *memStore) Update(_ context.Context, pageID string, fs domain.FieldSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["update"]++
	if err := m.validate(fs); err != nil {
		return err
	}
	cur, ok := m.pages[pageID]
	if !ok {
		return errors.New("no such page")
	}
	m.pages[pageID] = cur.Merge(fs)
	return nil
}

func (m *memStore) Annotate(_ context.Context, pageID string, note domain.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["annotate"]++
	if m.failAnnotate != nil {
		return m.failAnnotate
	}
	m.notes[pageID] = append(m.notes[pageID], note)
	return nil
}

// seed inserts a page directly, bypassing the counters
func (m *memStore) seed(externalID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("page-%d", len(m.order)+1)
	m.pages[id] = domain.FieldSet{"Linear ID": domain.TextOf(externalID)}
	m.order = append(m.order, id)
	return id
}

type captureReporter struct {
	mu   sync.Mutex
	sums []domain.RunSummary
}

func (c *captureReporter) Report(_ context.Context, s domain.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sums = append(c.sums, s)
	return nil
}

type fakeLease struct {
	held     bool
	err      error
	released int
}

func (f *fakeLease) Acquire(context.Context) (func(context.Context) error, bool, error) {
	if f.err != nil || f.held {
		return nil, false, f.err
	}
	return func(context.Context) error { f.released++; return nil }, true, nil
}

func issue(id string, labels ...string) domain.Issue {
	return domain.Issue{Identifier: id, Title: "Issue " + id, Labels: labels, State: "Todo"}
}

// newTestService wires the service with a manual clock and a fixed run id
func newTestService(t *testing.T, src domain.IssueSource, store *memStore, cfg Config) (*Service, *testkit.Clock, *captureReporter) {
	t.Helper()
	if cfg.Label == "" {
		cfg.Label = testLabel
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = time.Hour
	}
	rep := &captureReporter{}
	s := New(src, store, mapper.New(mapper.DefaultRules()), rep, nil, cfg)
	clk := testkit.NewClock(t0)
	s.now = clk.Now
	s.sleep = clk.Sleep
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("run-%d", n) }
	return s, clk, rep
}
