package domain

import (
	"context"
	"time"
)

// RunnerPort is the public port exposed by the sync module
type RunnerPort interface {
	// Run performs one sync run end to end
	Run(ctx context.Context) (RunSummary, error)
	// Last returns the most recent finished run, if any
	Last() (RunSummary, bool)
	// Running reports whether a run is in progress
	Running() bool
}

// PageRequest asks the issue source for one page of the change feed
type PageRequest struct {
	Since time.Time
	Label string
	First int
	After string
}

// IssuePage is one page of the change feed
type IssuePage struct {
	Issues    []Issue
	HasNext   bool
	EndCursor string
}

// IssueSource is the upstream tracker (collaborator A)
type IssueSource interface {
	IssuesPage(ctx context.Context, req PageRequest) (IssuePage, error)
}

// FeedReader yields one issue at a time and returns io.EOF when exhausted
type FeedReader interface {
	Next(ctx context.Context) (Issue, error)
}

// SchemaStore reads and mutates the destination database schema
type SchemaStore interface {
	FetchSchema(ctx context.Context) (Schema, error)
	// ReplaceOptions writes the complete option list of one categorical property
	ReplaceOptions(ctx context.Context, property string, kind PropertyKind, options []Option) error
}

// OptionEnsurer guarantees a categorical option exists before a write references it
type OptionEnsurer interface {
	EnsureOption(ctx context.Context, property, option string) (bool, error)
}

// PageStore reads and writes destination records (collaborator B)
type PageStore interface {
	// FindByExternalID returns the ids of pages whose idProperty equals externalID, at most limit
	FindByExternalID(ctx context.Context, idProperty, externalID string, limit int) ([]string, error)
	Create(ctx context.Context, fields FieldSet) (string, error)
	Update(ctx context.Context, pageID string, fields FieldSet) error
	Annotate(ctx context.Context, pageID string, note Annotation) error
}

// Lease serializes runs across processes. Acquire returns ok=false when another holder owns it
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// Reporter receives the summary at the end of every run
type Reporter interface {
	Report(ctx context.Context, s RunSummary) error
}
