// Package http provides the serve mode status endpoints
package http

import (
	"context"
	"net/http"
	"time"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	phttp "github.com/zinonweke/linear-notion-sync/internal/platform/net/http"
	"github.com/zinonweke/linear-notion-sync/internal/platform/version"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Runner      domain.RunnerPort
	// PG is checked by /readyz when the run lease is enabled
	PG Pinger
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the status routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}

	r.Get("/healthz", phttp.Handle(h.health))
	r.Get("/readyz", phttp.Handle(h.ready))
	r.Get("/runs/last", phttp.Handle(h.lastRun))
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version"`
	Started string `json:"started"`
	Now     string `json:"now"`
	Running bool   `json:"running"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"`
	Checks []ReadyCheck `json:"checks"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	out := HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Version: version.Info().Version,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     h.now().UTC().Format(time.RFC3339),
	}
	if h.deps.Runner != nil {
		out.Running = h.deps.Runner.Running()
	}
	return out, nil
}

func (h *handlers) ready(r *http.Request) (any, error) {
	if h.deps.PG == nil {
		return ReadyResponse{Status: "ok", Checks: []ReadyCheck{{Name: "pg", Status: "skipped"}}}, nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.deps.PG.Ping(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "pg not ready")
	}
	return ReadyResponse{Status: "ok", Checks: []ReadyCheck{{Name: "pg", Status: "ok"}}}, nil
}

func (h *handlers) lastRun(_ *http.Request) (any, error) {
	if h.deps.Runner == nil {
		return nil, perr.Unavailablef("sync runner not wired")
	}
	sum, ok := h.deps.Runner.Last()
	if !ok {
		return nil, perr.NotFoundf("no run has finished yet")
	}
	return sum, nil
}
