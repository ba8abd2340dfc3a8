package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/guardrails"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/mapper"
)

// lookupLimit asks for one more match than used so duplicates are visible
const lookupLimit = 2

// SchemaSource is the per run schema cache the coordinator prepares writes against
type SchemaSource interface {
	domain.OptionEnsurer
	Schema(ctx context.Context) (domain.Schema, error)
	Invalidate()
}

// Coordinator drives one record through label gate, schema preparation, lookup, write and annotation
type Coordinator struct {
	schema SchemaSource
	pages  domain.PageStore
	mapper *mapper.Mapper

	label            string
	timeouts         guardrails.Timeouts
	refreshTimestamp bool

	now func() time.Time
}

// NewCoordinator wires a coordinator for one run
func NewCoordinator(s SchemaSource, pages domain.PageStore, m *mapper.Mapper, cfg Config) *Coordinator {
	return &Coordinator{
		schema:           s,
		pages:            pages,
		mapper:           m,
		label:            cfg.Label,
		timeouts:         cfg.Timeouts,
		refreshTimestamp: cfg.RefreshTimestamp,
		now:              time.Now,
	}
}

// Upsert reconciles one issue and reports its terminal outcome. It never panics on
// remote failures; every error lands in the result
func (c *Coordinator) Upsert(ctx context.Context, is domain.Issue) domain.RecordResult {
	res := domain.RecordResult{Identifier: is.Identifier}
	ctx = logger.WithIdentifier(ctx, is.Identifier)

	if !mapper.HasLabel(is.Labels, c.label) {
		res.Outcome = domain.OutcomeSkipped
		return res
	}

	fields := c.mapper.Map(is).Merge(c.mapper.SyncedAt(c.now()))

	// options are ensured one at a time, in a stable order, before any write
	for _, name := range fields.Names() {
		for _, opt := range fields[name].OptionNames() {
			if err := c.call(ctx, func(ctx context.Context) error {
				_, err := c.schema.EnsureOption(ctx, name, opt)
				return err
			}); err != nil {
				return errored(res, err)
			}
		}
	}

	var sch domain.Schema
	if err := c.call(ctx, func(ctx context.Context) (err error) {
		sch, err = c.schema.Schema(ctx)
		return err
	}); err != nil {
		return errored(res, err)
	}
	if err := c.checkKeys(sch); err != nil {
		return errored(res, err)
	}
	fields = conform(ctx, fields, sch)

	var ids []string
	if err := c.call(ctx, func(ctx context.Context) (err error) {
		ids, err = c.pages.FindByExternalID(ctx, c.mapper.ExternalIDProperty(), is.Identifier, lookupLimit)
		return err
	}); err != nil {
		return errored(res, err)
	}
	if len(ids) > 1 {
		logger.C(ctx).Warn().Strs("pages", ids).Msg("multiple pages share the external id; updating the first")
	}

	if len(ids) > 0 {
		res.PageID = ids[0]
		if err := c.call(ctx, func(ctx context.Context) error { return c.pages.Update(ctx, res.PageID, fields) }); err != nil {
			return c.rejected(ctx, res, err)
		}
		res.Outcome = domain.OutcomeUpdated
	} else {
		if err := c.call(ctx, func(ctx context.Context) (err error) {
			res.PageID, err = c.pages.Create(ctx, fields)
			return err
		}); err != nil {
			return c.rejected(ctx, res, err)
		}
		res.Outcome = domain.OutcomeCreated
	}

	// the audit note and the timestamp refresh are informational
	note := c.mapper.Annotation(is, c.now())
	if err := c.call(ctx, func(ctx context.Context) error { return c.pages.Annotate(ctx, res.PageID, note) }); err != nil {
		logger.C(ctx).Warn().Err(err).Str("page", res.PageID).Msg("annotation failed")
	}
	if c.refreshTimestamp {
		stamp := conform(ctx, c.mapper.SyncedAt(c.now()), sch)
		if len(stamp) > 0 {
			if err := c.call(ctx, func(ctx context.Context) error { return c.pages.Update(ctx, res.PageID, stamp) }); err != nil {
				logger.C(ctx).Warn().Err(err).Str("page", res.PageID).Msg("last synced refresh failed")
			}
		}
	}
	return res
}

func (c *Coordinator) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := guardrails.ForCall(ctx, c.timeouts)
	defer cancel()
	return fn(cctx)
}

// checkKeys fails when the destination lacks the title or external id column; no record can be written then
func (c *Coordinator) checkKeys(sch domain.Schema) error {
	props := c.mapper.Rules().Properties
	var issues []config.Issue
	for _, name := range []string{props.Title, props.ExternalID} {
		if _, ok := sch.Property(name); !ok {
			issues = append(issues, config.Issue{
				Key:     "SYNC_MAPPING_FILE",
				Message: fmt.Sprintf("destination database %s has no property %q", sch.DatabaseID, name),
			})
		}
	}
	if len(issues) > 0 {
		return &domain.ConfigError{Issues: issues}
	}
	return nil
}

// rejected records a failed write. A validation failure usually means the destination schema
// changed under the run, so the cache is dropped and the next record refetches
func (c *Coordinator) rejected(ctx context.Context, res domain.RecordResult, err error) domain.RecordResult {
	if perr.IsCode(err, perr.ErrorCodeValidation) {
		c.schema.Invalidate()
		logger.C(ctx).Debug().Msg("destination rejected write; schema cache dropped")
	}
	return errored(res, err)
}

func errored(res domain.RecordResult, err error) domain.RecordResult {
	res.Outcome = domain.OutcomeErrored
	res.Err = err
	return res
}

// conform drops fields the destination does not have and coerces the rest to the column kind
func conform(ctx context.Context, fs domain.FieldSet, sch domain.Schema) domain.FieldSet {
	out := make(domain.FieldSet, len(fs))
	for name, v := range fs {
		p, ok := sch.Property(name)
		if !ok {
			logger.C(ctx).Debug().Str("property", name).Msg("property not in destination; skipped")
			continue
		}
		cv, ok := v.As(p.Kind)
		if !ok {
			logger.C(ctx).Warn().Str("property", name).Str("have", v.Kind.String()).Str("want", p.Kind.String()).Msg("property kind mismatch; skipped")
			continue
		}
		out[name] = cv
	}
	return out
}
