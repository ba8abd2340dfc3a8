// Package mapper turns an upstream issue into destination field values. It does no I/O
package mapper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

var priorityNames = map[int64]string{
	5: "Very Low",
	4: "Low",
	3: "Medium",
	2: "High",
	1: "Urgent",
	0: "None",
}

// Mapper applies a fixed set of Rules
type Mapper struct {
	rules Rules
	loc   *time.Location
}

// New returns a mapper for r. An unknown time zone falls back to UTC
func New(r Rules) *Mapper {
	m := &Mapper{rules: r, loc: time.UTC}
	if r.TimeZone != "" {
		if loc, err := time.LoadLocation(r.TimeZone); err == nil {
			m.loc = loc
		}
	}
	if m.rules.ChunkSize <= 0 || m.rules.ChunkSize > maxChunk {
		m.rules.ChunkSize = DefaultRules().ChunkSize
	}
	return m
}

// Rules returns the active rules
func (m *Mapper) Rules() Rules { return m.rules }

// ExternalIDProperty is the destination column holding the idempotency key
func (m *Mapper) ExternalIDProperty() string { return m.rules.Properties.ExternalID }

// Map computes the field set for is. Absent values have no key
func (m *Mapper) Map(is domain.Issue) domain.FieldSet {
	p := m.rules.Properties
	fs := domain.FieldSet{}

	put := func(name string, v domain.FieldValue) {
		if name != "" {
			fs[name] = v
		}
	}

	if chunks := Chunk(strings.TrimSpace(is.Title), m.rules.ChunkSize); len(chunks) > 0 {
		put(p.Title, domain.TitleOf(chunks...))
	}
	if id, ok := Normalize(is.Identifier); ok {
		put(p.ExternalID, domain.TextOf(id))
	}
	if u, ok := Normalize(is.URL); ok {
		put(p.URL, domain.URLOf(u))
	}
	if s, ok := Normalize(is.State); ok {
		put(p.Status, domain.SelectOf(s))
	}
	if pr, ok := PriorityText(is.Priority); ok {
		put(p.Priority, domain.SelectOf(pr))
	}
	if v, ok := FirstLabel(is.Labels, m.rules.Modules); ok {
		put(p.Module, domain.SelectOf(v))
	}
	if v, ok := FirstLabel(is.Labels, m.rules.SubAreas); ok {
		put(p.SubArea, domain.SelectOf(v))
	}
	if v, ok := m.typeOf(is.Labels); ok {
		put(p.Type, domain.SelectOf(v))
	}
	if c, ok := Normalize(is.Cycle); ok {
		put(p.Cycle, domain.SelectOf(c))
	}
	if d, ok := Normalize(is.DueDate); ok {
		put(p.DueDate, domain.DateOf(d, ""))
	}
	if chunks := Chunk(is.Description, m.rules.ChunkSize); len(chunks) > 0 {
		put(p.Description, domain.TextOf(chunks...))
	}
	return fs
}

// SyncedAt is the field set that stamps the last synced column with t
func (m *Mapper) SyncedAt(t time.Time) domain.FieldSet {
	if m.rules.Properties.LastSynced == "" {
		return domain.FieldSet{}
	}
	return domain.FieldSet{m.rules.Properties.LastSynced: m.date(t)}
}

// Annotation builds the audit note for is written at t
func (m *Mapper) Annotation(is domain.Issue, t time.Time) domain.Annotation {
	a := domain.Annotation{SyncedAt: t.In(m.loc)}
	a.State, _ = Normalize(is.State)
	a.Priority, _ = PriorityText(is.Priority)
	a.Cycle, _ = Normalize(is.Cycle)
	return a
}

func (m *Mapper) date(t time.Time) domain.FieldValue {
	if m.rules.TimeZone == "" {
		return domain.DateOf(t.UTC().Format(time.RFC3339), "")
	}
	// with an explicit zone the destination wants a local time without offset
	return domain.DateOf(t.In(m.loc).Format("2006-01-02T15:04:05"), m.rules.TimeZone)
}

func (m *Mapper) typeOf(labels []string) (string, bool) {
	if o := m.rules.TypeOverride; o != "" && HasLabel(labels, o) {
		return o, true
	}
	return FirstLabel(labels, m.rules.Types)
}

// HasLabel reports whether want is in labels, ignoring case
func HasLabel(labels []string, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	fw := domain.Fold(want)
	for _, l := range labels {
		if domain.Fold(strings.TrimSpace(l)) == fw {
			return true
		}
	}
	return false
}

// FirstLabel returns the first entry of precedence present in labels, spelled as in precedence
func FirstLabel(labels, precedence []string) (string, bool) {
	if len(labels) == 0 {
		return "", false
	}
	have := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		have[domain.Fold(strings.TrimSpace(l))] = struct{}{}
	}
	for _, p := range precedence {
		if _, ok := have[domain.Fold(strings.TrimSpace(p))]; ok {
			return p, true
		}
	}
	return "", false
}

// PriorityText translates a priority into display text. Numbers go through the
// ordinal table with the decimal form as fallback; text is trimmed
func PriorityText(v any) (string, bool) {
	if n, ok := integral(v); ok {
		if s, ok := priorityNames[n]; ok {
			return s, true
		}
		return strconv.FormatInt(n, 10), true
	}
	return Normalize(v)
}

// Normalize reduces v to display text. Strings are trimmed, numbers are
// formatted, objects with a name are unwrapped. Anything else is absent
func Normalize(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case *string:
		if x == nil {
			return "", false
		}
		return Normalize(*x)
	case json.Number:
		return Normalize(x.String())
	case int, int32, int64, float32, float64:
		if n, ok := integral(x); ok {
			return strconv.FormatInt(n, 10), true
		}
		f, _ := toFloat(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case map[string]any:
		return Normalize(x["name"])
	case map[string]string:
		return Normalize(x["name"])
	default:
		return "", false
	}
}

// Chunk splits s into runs of at most size runes. Empty input yields none
func Chunk(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(s) <= size {
		return []string{s}
	}
	var out []string
	n, start := 0, 0
	for i := range s {
		if n == size {
			out = append(out, s[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, s[start:])
}

func integral(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return integral(f)
		}
	case float32, float64:
		f, _ := toFloat(x)
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
