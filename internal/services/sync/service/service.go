// Package service provides the sync driver and the per record upsert coordinator
package service

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/feed"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/guardrails"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/mapper"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/schema"
)

// ErrRunInProgress is returned when Run is called while another run is active
var ErrRunInProgress = perr.New(perr.ErrorCodeConflict, "sync: run already in progress")

// Config holds the run level options
type Config struct {
	// Label is required on every issue; others are skipped
	Label string

	// Lookback is subtracted from the start time to form the feed's lower bound
	Lookback time.Duration

	PageSize int

	// Pacing is slept between records; <=0 disables it
	Pacing time.Duration

	// FailOnError makes a run with record errors return ErrFailedRecords
	FailOnError bool

	// RefreshTimestamp re-stamps the last synced column after the annotation
	RefreshTimestamp bool

	Timeouts guardrails.Timeouts
}

// Service runs sync passes. A fresh schema cache is built for every run
type Service struct {
	Source   domain.IssueSource
	Schema   domain.SchemaStore
	Pages    domain.PageStore
	Mapper   *mapper.Mapper
	Reporter domain.Reporter
	Lease    domain.Lease
	Cfg      Config

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	newID func() string

	running atomic.Bool
	mu      sync.Mutex
	last    *domain.RunSummary
}

var _ domain.RunnerPort = (*Service)(nil)

// New constructs the sync service. reporter and lease may be nil
func New(
	src domain.IssueSource,
	store interface {
		domain.SchemaStore
		domain.PageStore
	},
	m *mapper.Mapper,
	reporter domain.Reporter,
	lease domain.Lease,
	cfg Config,
) *Service {
	if src == nil || store == nil || m == nil {
		panic("sync.Service requires a source, a store and a mapper")
	}
	return &Service{
		Source:   src,
		Schema:   store,
		Pages:    store,
		Mapper:   m,
		Reporter: reporter,
		Lease:    lease,
		Cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    uuid.NewString,
	}
}

// Run performs one pass over the change feed. Per record failures are counted, not returned;
// only feed failures, cancellation and lease errors end the run early
func (s *Service) Run(ctx context.Context) (domain.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.RunSummary{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	runID := s.newID()
	ctx = logger.WithRun(ctx, runID)
	ctx, cancel := guardrails.WithRun(ctx, s.Cfg.Timeouts)
	defer cancel()

	start := s.now()
	sum := domain.RunSummary{
		RunID:     runID,
		Label:     s.Cfg.Label,
		Since:     start.Add(-s.Cfg.Lookback).UTC(),
		StartedAt: start,
	}
	log := logger.C(ctx)
	log.Info().Str("label", sum.Label).Time("since", sum.Since).Msg("sync run started")

	runErr := s.run(ctx, &sum)

	sum.FinishedAt = s.now()
	if runErr != nil && sum.Aborted == "" {
		sum.Aborted = runErr.Error()
	}
	s.setLast(sum)

	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Int("processed", sum.Processed).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Int("errors", sum.Errors).
		Dur("elapsed", sum.Elapsed()).
		Msg("sync run finished")

	if s.Reporter != nil {
		if err := s.Reporter.Report(context.WithoutCancel(ctx), sum); err != nil {
			log.Warn().Err(err).Msg("run report failed")
		}
	}

	if runErr != nil {
		return sum, runErr
	}
	if s.Cfg.FailOnError && sum.Errors > 0 {
		return sum, ErrFailedRecords
	}
	return sum, nil
}

// ErrFailedRecords is returned when FailOnError is set and any record errored
var ErrFailedRecords = domain.ErrFailedRecords

func (s *Service) run(ctx context.Context, sum *domain.RunSummary) error {
	if s.Lease != nil {
		release, ok, err := s.Lease.Acquire(ctx)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "sync: lease acquire failed")
		}
		if !ok {
			sum.LeaseHeld = true
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.C(ctx).Warn().Err(err).Msg("lease release failed")
			}
		}()
	}

	reader := feed.NewReader(s.Source, feed.Query{Since: sum.Since, Label: s.Cfg.Label, PageSize: s.Cfg.PageSize})
	reg := schema.New(s.Schema)
	defer func() {
		fetches, mutations := reg.Stats()
		logger.C(ctx).Debug().Int("schema_fetches", fetches).Int("schema_mutations", mutations).Msg("schema registry released")
	}()
	coord := NewCoordinator(reg, s.Pages, s.Mapper, s.Cfg)
	coord.now = s.now

	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !first && s.Cfg.Pacing > 0 {
			if err := s.sleep(ctx, s.Cfg.Pacing); err != nil {
				return err
			}
		}

		is, err := s.next(ctx, reader)
		if errors.Is(err, io.EOF) {
			pages, yielded := reader.Stats()
			logger.C(ctx).Debug().Int("pages", pages).Int("issues", yielded).Msg("feed exhausted")
			return nil
		}
		if err != nil {
			return err
		}

		res := s.process(ctx, coord, is)
		sum.Record(res)

		ev := logger.C(ctx).Info()
		if res.Outcome == domain.OutcomeErrored {
			ev = logger.C(ctx).Error().Err(res.Err).Bool("retryable", perr.Retryable(res.Err))
		}
		ev.Str("identifier", res.Identifier).Str("outcome", string(res.Outcome)).Str("page", res.PageID).Msg("record processed")

		// a misconfigured destination fails every record the same way
		if res.Outcome == domain.OutcomeErrored && domain.IsFatal(res.Err) {
			return res.Err
		}
	}
}

func (s *Service) next(ctx context.Context, r *feed.Reader) (domain.Issue, error) {
	cctx, cancel := guardrails.ForCall(ctx, s.Cfg.Timeouts)
	defer cancel()
	return r.Next(cctx)
}

// process isolates one record; a panic becomes an errored outcome
func (s *Service) process(ctx context.Context, c *Coordinator, is domain.Issue) (res domain.RecordResult) {
	defer func() {
		if v := recover(); v != nil {
			logger.C(ctx).Error().
				Str("identifier", is.Identifier).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered while processing record")
			res = domain.RecordResult{
				Identifier: is.Identifier,
				Outcome:    domain.OutcomeErrored,
				Err:        perr.PanicErrf("panic: %v", v),
			}
		}
	}()
	return c.Upsert(ctx, is)
}

// Last returns the most recent finished run
func (s *Service) Last() (domain.RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.RunSummary{}, false
	}
	return *s.last, true
}

// Running reports whether a run is in progress
func (s *Service) Running() bool { return s.running.Load() }

func (s *Service) setLast(sum domain.RunSummary) {
	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
}

// sleepCtx sleeps for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
