// Package schema caches the destination schema and appends missing categorical options
package schema

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// Registry is a per-run cache over a SchemaStore. The mutex makes the
// read-modify-write of an option append atomic within the process
type Registry struct {
	store domain.SchemaStore

	mu     sync.Mutex
	cached *domain.Schema

	fetches   int
	mutations int
}

var _ domain.OptionEnsurer = (*Registry)(nil)

// New returns an empty registry; the first read fetches
func New(store domain.SchemaStore) *Registry {
	return &Registry{store: store}
}

// Schema returns the cached schema, fetching it on first use or after invalidation
func (r *Registry) Schema(ctx context.Context) (domain.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schemaLocked(ctx)
}

// Invalidate drops the cache so the next read refetches
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// EnsureOption makes option available on property, appending it when missing.
// It is a no-op for an empty option, an unknown property, or a non categorical kind.
// It reports whether a mutation was issued
func (r *Registry) EnsureOption(ctx context.Context, property, option string) (bool, error) {
	option = strings.TrimSpace(option)
	if option == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.schemaLocked(ctx)
	if err != nil {
		return false, err
	}
	p, ok := s.Property(property)
	if !ok || !p.Kind.Categorical() || p.HasOption(option) {
		return false, nil
	}

	next := make([]domain.Option, 0, len(p.Options)+1)
	next = append(next, p.Options...)
	next = append(next, domain.Option{Name: option})

	if err := r.store.ReplaceOptions(ctx, property, p.Kind, next); err != nil {
		status, body := domain.StatusOf(err)
		return false, &domain.SchemaMutationError{Property: property, Option: option, Status: status, Body: body, Err: err}
	}
	r.mutations++
	logger.C(ctx).Info().Str("property", property).Str("option", option).Msg("schema option added")

	// invalidate then refresh eagerly; a failed refresh leaves the cache empty so the next read refetches
	r.cached = nil
	if _, err := r.schemaLocked(ctx); err != nil {
		logger.C(ctx).Warn().Err(err).Str("property", property).Msg("schema refresh after mutation failed")
	}
	return true, nil
}

// Stats reports how many fetches and mutations this registry issued
func (r *Registry) Stats() (fetches, mutations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches, r.mutations
}

func (r *Registry) schemaLocked(ctx context.Context) (domain.Schema, error) {
	if r.cached != nil {
		return *r.cached, nil
	}
	s, err := r.store.FetchSchema(ctx)
	if err != nil {
		var fe *domain.SchemaFetchError
		if errors.As(err, &fe) {
			return domain.Schema{}, err
		}
		status, body := domain.StatusOf(err)
		return domain.Schema{}, &domain.SchemaFetchError{Status: status, Body: body, Err: err}
	}
	r.fetches++
	r.cached = &s
	return s, nil
}
