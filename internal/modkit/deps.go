// Package modkit provides module wiring and core deps
package modkit

import (
	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	"github.com/zinonweke/linear-notion-sync/internal/platform/store/pg"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	// PG is nil unless a run lease database is configured
	PG *pg.PG
}

// HasPG reports whether the optional postgres client is wired
func (d Deps) HasPG() bool { return d.PG != nil && d.PG.Pool != nil }
