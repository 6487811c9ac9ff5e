package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/tenantrpc/internal/app"
	"github.com/roach88/tenantrpc/internal/config"
	"github.com/roach88/tenantrpc/internal/rpc"
	"github.com/roach88/tenantrpc/internal/session"
	"github.com/roach88/tenantrpc/internal/store"
	"github.com/roach88/tenantrpc/internal/transport"
)

// ServeOptions holds flags for the serve command. Flags override the
// config file.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Listen     string
	Database   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operations over HTTP",
		Long: `Serve every registered operation at POST /rpc/{operation}.

The server opens (creating if needed) the SQLite database, applies the
configured seed file, sweeps expired sessions in the background, and shuts
down gracefully on SIGINT or SIGTERM.

Example:
  tenantrpc serve --config tenantrpc.yaml
  tenantrpc serve --db ./tenantrpc.db --listen :8080 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if cfg.Seed != "" {
		seed, err := config.LoadSeed(cfg.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
		report, err := app.ApplySeed(ctx, st, seed, cfg.BcryptCost)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to apply seed", err)
		}
		slog.Info("seed applied",
			"tenants", report.Tenants, "users", report.Users,
			"invoices", report.Invoices, "skipped", report.Skipped)
	}

	resolver := session.NewResolver(st, st,
		session.WithTTL(cfg.SessionTTL),
		session.WithBcryptCost(cfg.BcryptCost))

	_, reg, err := app.Build(app.Deps{Sessions: resolver, Store: st})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build registry", err)
	}

	var (
		dispatchOpts  []rpc.Option
		transportOpts = []transport.Option{
			transport.WithAddr(cfg.Listen),
			transport.WithLimiter(transport.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0)),
		}
	)
	if cfg.Metrics {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		dispatchOpts = append(dispatchOpts, rpc.WithMetrics(rpc.NewMetrics(promReg)))
		transportOpts = append(transportOpts, transport.WithMetrics(promReg))
	}

	srv := transport.New(rpc.NewDispatcher(reg, resolver, dispatchOpts...), transportOpts...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go resolver.RunSweeper(ctx, cfg.SweepInterval)

	slog.Info("server starting", "addr", cfg.Listen, "operations", len(reg.Operations()))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d operation(s) on %s. Press Ctrl-C to stop.\n", len(reg.Operations()), cfg.Listen)

	if err := srv.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
