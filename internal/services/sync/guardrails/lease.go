package guardrails

import (
	"context"

	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/platform/store/pg"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// LeasePrefix namespaces advisory lock keys taken by sync runs
const LeasePrefix = "linear-notion-sync:"

// Locker takes a non blocking session advisory lock; *pg.PG satisfies it
type Locker interface {
	TryAdvisoryLock(ctx context.Context, name string) (*pg.AdvisoryLock, error)
}

// PGLease serializes runs against one destination database across processes
type PGLease struct {
	locker Locker
	key    string
}

var _ domain.Lease = (*PGLease)(nil)

// NewPGLease keys the lease by the destination database id
func NewPGLease(l Locker, databaseID string) *PGLease {
	return &PGLease{locker: l, key: LeasePrefix + databaseID}
}

// Key is the advisory lock name
func (l *PGLease) Key() string { return l.key }

// Acquire takes the lease. ok is false when another run holds it
func (l *PGLease) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	lock, err := l.locker.TryAdvisoryLock(ctx, l.key)
	if err != nil {
		return nil, false, err
	}
	if lock == nil {
		logger.C(ctx).Info().Str("lease", l.key).Msg("sync lease held elsewhere")
		return nil, false, nil
	}
	return lock.Release, true, nil
}
