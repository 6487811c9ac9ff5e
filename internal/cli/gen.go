package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tenantrpc/internal/bindgen"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Out       string // output directory
	Contracts string // contract file; empty selects the built-in contracts
	Check     bool   // compare instead of write
	OpenAPI   bool   // also emit openapi.json
}

// GenResult is the JSON payload of gen.
type GenResult struct {
	Out   string   `json:"out"`
	Files []string `json:"files"`
	Stale []string `json:"stale,omitempty"`
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the typed client and manifest",
		Long: `Generate client.ts and manifest.json from the operation registry.

Output is deterministic, so the generated files can be committed. With
--check nothing is written; the command fails if the files on disk differ
from what the contract would produce.

Example:
  tenantrpc gen --out web/src/api
  tenantrpc gen --out web/src/api --check
  tenantrpc gen --out api --openapi`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "gen", "output directory")
	cmd.Flags().StringVar(&opts.Contracts, "contracts", "", "contract file (default: built-in contracts)")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "fail if generated files are out of date")
	cmd.Flags().BoolVar(&opts.OpenAPI, "openapi", false, "also generate openapi.json")

	return cmd
}

func runGen(opts *GenOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	model, reg, err := loadContract(opts.Contracts)
	if err != nil {
		return contractFailure(f, err)
	}
	arts, err := bindgen.Generate(reg, model)
	if err != nil {
		return contractFailure(f, err)
	}
	if opts.OpenAPI {
		doc, err := bindgen.OpenAPI(cmd.Context(), reg, model)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeContract, err.Error(), nil)
		}
		arts.Files = append(arts.Files, doc)
	}

	result := GenResult{Out: opts.Out}
	for _, file := range arts.Files {
		result.Files = append(result.Files, file.Path)
		f.VerboseLog("%s: %d bytes", file.Path, len(file.Content))
	}

	if opts.Check {
		stale, err := arts.Diff(opts.Out)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if len(stale) > 0 {
			return f.Fail(ExitFailure, ErrCodeStale, "generated files are out of date; run tenantrpc gen", stale)
		}
		if f.Format == "json" {
			return f.Success(result)
		}
		return f.Success(fmt.Sprintf("✓ %s is up to date", opts.Out))
	}

	if err := arts.WriteDir(opts.Out); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}
	if f.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("✓ Wrote %s to %s", strings.Join(result.Files, ", "), opts.Out))
}
