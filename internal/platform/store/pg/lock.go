package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlTryLock = `select pg_try_advisory_lock(hashtext($1))`
	sqlUnlock  = `select pg_advisory_unlock(hashtext($1))`
)

// AdvisoryLock is a held session-level advisory lock pinned to one pooled connection
type AdvisoryLock struct {
	p    *PG
	conn *pgxpool.Conn
	name string
}

// TryAdvisoryLock attempts to take the session advisory lock keyed by name without waiting.
// It returns (nil, nil) when another session already holds the lock
func (p *PG) TryAdvisoryLock(ctx context.Context, name string) (*AdvisoryLock, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var ok bool
	err = conn.QueryRow(ctx, sqlTryLock, name).Scan(&ok)
	p.trace(ctx, sqlTryLock, []any{name}, start, err)
	if err != nil || !ok {
		conn.Release()
		return nil, err
	}
	return &AdvisoryLock{p: p, conn: conn, name: name}, nil
}

// Release unlocks and returns the connection to the pool. Safe to call more than once
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	start := time.Now()
	var released bool
	err := l.conn.QueryRow(ctx, sqlUnlock, l.name).Scan(&released)
	l.p.trace(ctx, sqlUnlock, []any{l.name}, start, err)
	l.conn.Release()
	l.conn = nil
	return err
}
