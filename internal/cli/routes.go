package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tenantrpc/internal/registry"
)

// RoutesOptions holds flags for the routes command.
type RoutesOptions struct {
	*RootOptions
	Contracts string
}

// Route is one registry entry as printed by routes.
type Route struct {
	Operation string   `json:"operation"`
	Path      string   `json:"path"`
	Level     string   `json:"level"`
	Input     string   `json:"input"`
	Output    string   `json:"output"`
	Errors    []string `json:"errors,omitempty"`
	Doc       string   `json:"doc,omitempty"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RoutesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Contracts, "contracts", "", "contract file (default: built-in contracts)")
	return cmd
}

func runRoutes(opts *RoutesOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	_, reg, err := loadContract(opts.Contracts)
	if err != nil {
		return contractFailure(f, err)
	}
	routes := routesOf(reg)

	if f.Format == "json" {
		return f.Success(routes)
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tLEVEL\tINPUT\tOUTPUT\tERRORS")
	for _, r := range routes {
		errs := "-"
		if len(r.Errors) > 0 {
			errs = strings.Join(r.Errors, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Operation, r.Level, r.Input, r.Output, errs)
	}
	return tw.Flush()
}

func routesOf(reg *registry.Registry) []Route {
	ops := reg.Operations()
	routes := make([]Route, len(ops))
	for i, op := range ops {
		r := Route{
			Operation: op.Name,
			Path:      "/rpc/" + op.Name,
			Level:     op.Level.String(),
			Input:     op.Input.Name(),
			Output:    op.Output.Name(),
			Doc:       op.Doc,
		}
		for _, v := range op.Errors {
			r.Errors = append(r.Errors, v.Name)
		}
		routes[i] = r
	}
	return routes
}
