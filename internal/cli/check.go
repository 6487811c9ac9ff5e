package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CheckResult summarizes a contract that passed every check.
type CheckResult struct {
	Shapes     int `json:"shapes"`
	Operations int `json:"operations"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [contract-file]",
		Short: "Validate a contract file",
		Long: `Compile a CUE contract file and verify that every operation and shape
reference resolves. Without an argument the built-in contracts are checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCheck(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	model, reg, err := loadContract(path)
	if err != nil {
		return contractFailure(f, err)
	}

	result := CheckResult{Shapes: len(model.Names()), Operations: len(reg.Operations())}
	if f.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("✓ %d shape(s), %d operation(s)", result.Shapes, result.Operations))
}
