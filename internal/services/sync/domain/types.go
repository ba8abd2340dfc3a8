// Package domain holds the data model and ports of the Linear to Notion sync engine
package domain

import (
	"slices"
	"time"

	"golang.org/x/text/cases"
)

// Issue is an immutable snapshot of one upstream issue as read from the change feed
type Issue struct {
	Identifier string
	Title      string
	URL        string
	// Priority is a number, text, or nil exactly as the tracker reported it
	Priority    any
	DueDate     string
	UpdatedAt   time.Time
	State       string
	Labels      []string
	Cycle       string
	Description string
}

// PropertyKind classifies a destination property
type PropertyKind int

const (
	KindOther PropertyKind = iota
	KindSelect
	KindMultiSelect
	KindTitle
	KindText
	KindURL
	KindDate
	// KindStatus is a workflow status column; its options cannot be edited through the API
	KindStatus
)

// String renders the kind for logs and the schema command
func (k PropertyKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindMultiSelect:
		return "multi_select"
	case KindTitle:
		return "title"
	case KindText:
		return "rich_text"
	case KindURL:
		return "url"
	case KindDate:
		return "date"
	case KindStatus:
		return "status"
	default:
		return "other"
	}
}

// Categorical reports whether options can be appended to the kind
func (k PropertyKind) Categorical() bool { return k == KindSelect || k == KindMultiSelect }

// Option is one allowed value of a categorical property. ID and Color are opaque
// and carried through mutations unchanged
type Option struct {
	ID    string
	Name  string
	Color string
}

// Property is one destination column
type Property struct {
	Name    string
	Kind    PropertyKind
	Options []Option
}

// Fold returns the case folded form of s. Casers are stateful so one is built per call
func Fold(s string) string { return cases.Fold().String(s) }

// EqualFold compares two display strings with Unicode case folding
func EqualFold(a, b string) bool { return Fold(a) == Fold(b) }

// HasOption reports whether name is already allowed, ignoring case
func (p Property) HasOption(name string) bool {
	return slices.ContainsFunc(p.Options, func(o Option) bool { return EqualFold(o.Name, name) })
}

// OptionNames lists option names in destination order
func (p Property) OptionNames() []string {
	out := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		out = append(out, o.Name)
	}
	return out
}

// Schema maps destination property names to their definitions
type Schema struct {
	DatabaseID string
	Properties map[string]Property
}

// Property looks up a property by exact name
func (s Schema) Property(name string) (Property, bool) {
	p, ok := s.Properties[name]
	return p, ok
}

// Names returns property names sorted for stable output
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// DateValue is a date or datetime with an optional IANA zone
type DateValue struct {
	Start    string
	TimeZone string
}

// FieldValue is one typed value ready to write. Kind selects which member is meaningful
type FieldValue struct {
	Kind   PropertyKind
	Select string
	Multi  []string
	Chunks []string
	URL    string
	Date   DateValue
}

// SelectOf builds a single select value
func SelectOf(name string) FieldValue { return FieldValue{Kind: KindSelect, Select: name} }

// MultiOf builds a multi select value
func MultiOf(names ...string) FieldValue { return FieldValue{Kind: KindMultiSelect, Multi: names} }

// TitleOf builds a title value from text chunks
func TitleOf(chunks ...string) FieldValue { return FieldValue{Kind: KindTitle, Chunks: chunks} }

// TextOf builds a rich text value from text chunks
func TextOf(chunks ...string) FieldValue { return FieldValue{Kind: KindText, Chunks: chunks} }

// URLOf builds a url value
func URLOf(u string) FieldValue { return FieldValue{Kind: KindURL, URL: u} }

// DateOf builds a date value
func DateOf(start, tz string) FieldValue {
	return FieldValue{Kind: KindDate, Date: DateValue{Start: start, TimeZone: tz}}
}

// As coerces v to the destination kind k. It reports false when no sensible conversion exists
func (v FieldValue) As(k PropertyKind) (FieldValue, bool) {
	if v.Kind == k {
		return v, true
	}
	switch v.Kind {
	case KindSelect:
		switch k {
		case KindMultiSelect:
			return MultiOf(v.Select), true
		case KindStatus:
			return FieldValue{Kind: KindStatus, Select: v.Select}, true
		case KindText:
			return TextOf(v.Select), true
		case KindTitle:
			return TitleOf(v.Select), true
		}
	case KindTitle, KindText:
		if k == KindTitle || k == KindText {
			return FieldValue{Kind: k, Chunks: v.Chunks}, true
		}
	case KindURL:
		if k == KindText {
			return TextOf(v.URL), true
		}
	}
	return FieldValue{}, false
}

// OptionNames returns the categorical option names this value references
func (v FieldValue) OptionNames() []string {
	switch v.Kind {
	case KindSelect:
		if v.Select == "" {
			return nil
		}
		return []string{v.Select}
	case KindMultiSelect:
		return v.Multi
	default:
		return nil
	}
}

// FieldSet maps destination property names to values. A missing key means
// leave the destination untouched on update and unset on create
type FieldSet map[string]FieldValue

// Names returns the property names sorted for deterministic iteration
func (fs FieldSet) Names() []string {
	out := make([]string, 0, len(fs))
	for n := range fs {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Merge returns a copy of fs overlaid with other
func (fs FieldSet) Merge(other FieldSet) FieldSet {
	out := make(FieldSet, len(fs)+len(other))
	for k, v := range fs {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Annotation is the audit note appended to a page after each write
type Annotation struct {
	SyncedAt time.Time
	State    string
	Priority string
	Cycle    string
}

// Outcome is the terminal state of one record's upsert
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeErrored Outcome = "errored"
)

// RecordResult is what the coordinator reports for one record
type RecordResult struct {
	Identifier string
	Outcome    Outcome
	PageID     string
	Err        error
}

// Line renders the result as one itemized log line
func (r RecordResult) Line() string {
	switch r.Outcome {
	case OutcomeErrored:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return "❌ " + r.Identifier + ": " + msg
	case OutcomeSkipped:
		return "⏭️ " + r.Identifier + ": skipped (missing label)"
	case OutcomeCreated:
		return "🆕 " + r.Identifier + ": created"
	default:
		return "✅ " + r.Identifier + ": updated"
	}
}

// RunSummary accumulates counters and the itemized log for one run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Label      string    `json:"label"`
	Since      time.Time `json:"since"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`

	Log []string `json:"log"`

	// LeaseHeld is set when another run owned the lease and this one did nothing
	LeaseHeld bool `json:"lease_held,omitempty"`
	// Aborted carries the fatal error message when the run stopped early
	Aborted string `json:"aborted,omitempty"`
}

// Record counts one record outcome and appends its log line
func (s *RunSummary) Record(r RecordResult) {
	s.Processed++
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
	s.Log = append(s.Log, r.Line())
}

// Elapsed is the run wall time
func (s RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
