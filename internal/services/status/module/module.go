// Package module wires the status endpoints into the serve mode router
package module

import (
	"net/http"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/modkit"
	phttp "github.com/zinonweke/linear-notion-sync/internal/platform/net/http"
	statushttp "github.com/zinonweke/linear-notion-sync/internal/services/status/http"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// Ports are injected by the caller through modkit.WithPorts
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements modkit.Module
type Module struct {
	deps      modkit.Deps
	name      string
	prefix    string
	mws       []func(http.Handler) http.Handler
	ports     Ports
	startedAt time.Time
}

var _ modkit.Module = (*Module)(nil)

// New constructs the status module. It needs a RunnerPort injected via modkit.WithPorts(Ports{...})
func New(deps modkit.Deps, opts ...modkit.Option) (modkit.Module, error) {
	b := modkit.Build("status", opts...)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		startedAt: time.Now(),
	}
	switch p := b.Ports.(type) {
	case Ports:
		m.ports = p
	case *Ports:
		if p != nil {
			m.ports = *p
		}
	}
	return m, nil
}

// MountRoutes mounts the handlers under the module prefix
func (m *Module) MountRoutes(r phttp.Router) {
	register := func(rr phttp.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		d := statushttp.Deps{
			ServiceName: "linear-notion-sync",
			StartedAt:   m.startedAt,
			Runner:      m.ports.Runner,
		}
		if m.deps.HasPG() {
			d.PG = m.deps.PG.Pool
		}
		statushttp.Register(rr, d)
	}
	if m.prefix == "" || m.prefix == "/" {
		r.Group(register)
		return
	}
	r.Route(m.prefix, register)
}

// Name implements modkit.Module
func (m *Module) Name() string { return m.name }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }
