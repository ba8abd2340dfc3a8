package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/modkit"
	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	phttp "github.com/zinonweke/linear-notion-sync/internal/platform/net/http"
	"github.com/zinonweke/linear-notion-sync/internal/platform/net/middleware"
	"github.com/zinonweke/linear-notion-sync/internal/platform/store/pg"
	"github.com/zinonweke/linear-notion-sync/internal/platform/version"
	statusmod "github.com/zinonweke/linear-notion-sync/internal/services/status/module"
	"github.com/zinonweke/linear-notion-sync/internal/services/sync/domain"
	syncmod "github.com/zinonweke/linear-notion-sync/internal/services/sync/module"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linear-notion-sync",
		Short: "Mirror labelled Linear issues into a Notion database",
		Long: `linear-notion-sync reads recently updated Linear issues carrying a label
and upserts one Notion page per issue, keyed by the issue identifier.
Configuration comes from the environment and an optional .env file.`,
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// bare invocation behaves like "sync"
	root.RunE = func(cmd *cobra.Command, _ []string) error { return runSync(cmd.Context()) }
	root.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Run one sync pass and exit",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runSync(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Sync on an interval and expose the status endpoints",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the destination database properties",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSchema(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)
	return root
}

// app is the wired process: shared deps plus the sync ports resolved from the registry
type app struct {
	deps  modkit.Deps
	ports syncmod.Ports
}

func (a *app) close() {
	if a.deps.PG != nil {
		a.deps.PG.Close()
	}
}

// bootstrap opens the optional lease database and builds the sync module
func bootstrap(ctx context.Context) (*app, error) {
	root := config.New()
	l := logger.Get()
	deps := modkit.Deps{Cfg: root, Log: *l}

	leaseCfg := root.Prefix("SYNC_LEASE_")
	if url := leaseCfg.MayString("DBURL", ""); url != "" {
		db, err := pg.Open(ctx, pg.Config{
			URL:      url,
			MaxConns: int32(leaseCfg.MayInt("MAX_CONNS", 2)),
			SlowMs:   leaseCfg.MayInt("SLOW_MS", 500),
		}, pg.Tracer(*l), nil)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfig, "open lease database")
		}
		deps.PG = db
	}

	a := &app{deps: deps}
	m, err := syncmod.New(deps)
	if err != nil {
		a.close()
		return nil, err
	}
	modkit.Register(m)
	ports, ok := modkit.PortsAs[syncmod.Ports](syncmod.Name)
	if !ok {
		a.close()
		return nil, perr.Newf(perr.ErrorCodeUnknown, "module %s registered no ports", syncmod.Name)
	}
	a.ports = ports
	return a, nil
}

func runSync(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.ports.Runner.Run(ctx)
	return err
}

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runner := a.ports.Runner
	interval := a.deps.Cfg.Prefix("SYNC_").MayDuration("INTERVAL", 15*time.Minute)
	if interval <= 0 {
		return perr.WithField(perr.Configf("SYNC_INTERVAL must be positive"), "SYNC_INTERVAL")
	}

	statusCfg := a.deps.Cfg.Prefix("STATUS_")
	srv := phttp.NewServer(statusCfg.MayString("ADDR", ":4000"))
	st, err := statusmod.New(a.deps,
		modkit.WithMiddlewares(middleware.Defaults(statusCfg.MayCSV("CORS_ORIGINS", nil))...),
		modkit.WithPorts(statusmod.Ports{Runner: runner}),
	)
	if err != nil {
		return err
	}
	st.MountRoutes(srv.Router())
	modkit.Register(st)

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	log := logger.Named("serve")
	log.Info().Dur("interval", interval).Msg("serve mode started")

	var wg sync.WaitGroup
	defer wg.Wait()
	tick := func() {
		if runner.Running() {
			log.Warn().Msg("previous run still in progress, skipping tick")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runScheduled(ctx, runner)
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	tick()
	for {
		select {
		case <-ctx.Done():
			return <-srvErr
		case err := <-srvErr:
			return err
		case <-ticker.C:
			tick()
		}
	}
}

// runScheduled runs once and logs the outcome; a scheduled run never stops the process
func runScheduled(ctx context.Context, runner domain.RunnerPort) {
	_, err := runner.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case perr.IsCode(err, perr.ErrorCodeConflict):
		logger.C(ctx).Warn().Err(err).Msg("run skipped")
	case perr.Retryable(err):
		logger.C(ctx).Warn().Err(err).Msg("scheduled run failed transiently; next tick retries")
	default:
		logger.C(ctx).Error().Err(err).Msg("scheduled run failed")
	}
}

func runSchema(ctx context.Context, w io.Writer) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.ports.Schema.FetchSchema(ctx)
	if err != nil {
		return err
	}
	return printSchema(w, s)
}

// printSchema writes one line per property sorted by name, options indented below
func printSchema(w io.Writer, s domain.Schema) error {
	var b strings.Builder
	fmt.Fprintf(&b, "database %s\n", s.DatabaseID)
	for _, n := range s.Names() {
		p := s.Properties[n]
		fmt.Fprintf(&b, "%-24s %s\n", n, p.Kind)
		for _, o := range p.Options {
			if o.Color != "" {
				fmt.Fprintf(&b, "  - %s (%s)\n", o.Name, o.Color)
				continue
			}
			fmt.Fprintf(&b, "  - %s\n", o.Name)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
