// Package module wires the sync service from configuration
package module

import (
	"github.com/zinonweke/linear-notion-sync/internal/adapters/linear"
	"github.com/zinonweke/linear-notion-sync/internal/adapters/notion"
	"github.com/zinonweke/linear-notion-sync/internal/modkit"
	phttp "github.com/zinonweke/linear-notion-sync/internal/platform/net/http"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/guardrails"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/mapper"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/remote"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/report"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/service"
)

// Name is the registry key of the sync module
const Name = "sync"

// Ports defines the sync module ports
type Ports struct {
	Runner domain.RunnerPort
	// Schema reads the destination schema directly, bypassing any cache
	Schema domain.SchemaStore
}

// Module implements the sync module
type Module struct {
	deps     modkit.Deps
	settings Settings
	ports    Ports
}

var _ modkit.Module = (*Module)(nil)

// New constructs the sync module from deps.Cfg. A configuration problem returns *config.Error.
// When deps carries a postgres client each run takes an advisory lease first
func New(deps modkit.Deps) (*Module, error) {
	s, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}
	rules, err := mapper.LoadRules(s.MappingFile)
	if err != nil {
		return nil, err
	}

	lc := linear.NewClient(linear.Options{
		BaseURL: s.LinearBaseURL,
		APIKey:  s.LinearAPIKey,
		Timeout: s.LinearTimeout,
	})
	retries := s.NotionMaxRetries
	if retries == 0 {
		retries = -1 // the client reads zero as its default
	}
	nc := notion.NewClient(notion.Options{
		BaseURL:    s.NotionBaseURL,
		Token:      s.NotionToken,
		Version:    s.NotionVersion,
		Timeout:    s.NotionTimeout,
		MaxRetries: retries,
		RetryBase:  s.NotionRetryBase,
	})
	store := remote.NewNotionStore(nc, s.NotionDatabaseID)

	var lease domain.Lease
	if deps.HasPG() {
		lease = guardrails.NewPGLease(deps.PG, s.NotionDatabaseID)
	}

	svc := service.New(
		remote.NewLinearSource(lc),
		store,
		mapper.New(rules),
		report.Multi{report.Console{}, report.StepSummary{Path: s.StepSummary}},
		lease,
		service.Config{
			Label:            s.Label,
			Lookback:         s.Lookback(),
			PageSize:         s.LinearPageSize,
			Pacing:           s.Pacing,
			FailOnError:      s.FailOnError,
			RefreshTimestamp: s.RefreshTimestamp,
			Timeouts:         guardrails.Timeouts{Run: s.RunTimeout, Call: s.CallTimeout},
		},
	)

	return &Module{
		deps:     deps,
		settings: s,
		ports:    Ports{Runner: svc, Schema: store},
	}, nil
}

// Name returns the module name
func (m *Module) Name() string { return Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Settings returns the validated settings the module was built with
func (m *Module) Settings() Settings { return m.settings }

// MountRoutes is a no-op as sync has no routes of its own
func (m *Module) MountRoutes(_ phttp.Router) {}
