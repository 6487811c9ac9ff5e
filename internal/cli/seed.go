package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tenantrpc/internal/app"
	"github.com/roach88/tenantrpc/internal/config"
	"github.com/roach88/tenantrpc/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database   string
	BcryptCost int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <seed-file>",
		Short: "Load tenants, users and invoices from a YAML file",
		Long: `Load demo data into the database. Re-running is safe: existing tenants,
users and invoice numbers are skipped.

Example:
  tenantrpc seed --db ./tenantrpc.db ./seed.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.BcryptCost, "bcrypt-cost", 0, "bcrypt cost for seeded passwords (default bcrypt.DefaultCost)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	seed, err := config.LoadSeed(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailure, err.Error(), nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	report, err := app.ApplySeed(cmd.Context(), st, seed, opts.BcryptCost)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStoreFailure, err.Error(), nil)
	}

	if f.Format == "json" {
		return f.Success(report)
	}
	return f.Success(fmt.Sprintf("✓ Seeded %d tenant(s), %d user(s), %d membership(s), %d invoice(s); skipped %d existing",
		report.Tenants, report.Users, report.Memberships, report.Invoices, report.Skipped))
}
