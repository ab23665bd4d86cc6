package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tethergrid/tether/internal/caps"
	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/testutil"
)

// ValidationSummary reports what a valid manifest resolves to against the
// native operation tables.
type ValidationSummary struct {
	Valid     bool                `json:"valid"`
	Source    string              `json:"source"`
	Types     map[string][]string `json:"types"`
	Functions []string            `json:"functions"`
	Excluded  []string            `json:"excluded"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest.yaml]",
		Short: "Validate a capability manifest",
		Long: `Validate a capability manifest against the schema and resolve it
against the native operation tables. Without an argument the embedded
default manifest is checked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var (
		m      caps.Manifest
		source string
		err    error
	)
	if path == "" {
		source = "(embedded)"
		m, err = caps.DefaultManifest()
	} else {
		source = path
		m, err = caps.LoadManifest(path)
	}
	if err != nil {
		if ferr := formatter.Error(ErrCodeManifest, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "manifest invalid", err)
	}

	reg := caps.NewRegistry(m, testutil.QuietLogger())
	methods := native.Methods()
	surface := caps.SurfaceFunc(func(name string) bool {
		_, ok := methods[name]
		return ok
	})
	functions := native.Functions()
	funcSurface := caps.SurfaceFunc(func(name string) bool {
		_, ok := functions[name]
		return ok
	})

	summary := ValidationSummary{
		Valid:  true,
		Source: source,
		Types: map[string][]string{
			native.TensorType: reg.Operations(native.TensorType, surface).Sorted(),
		},
		Functions: reg.Functions(funcSurface).Sorted(),
		Excluded:  m.Exclude,
	}

	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "manifest %s: valid\n", source)
	for typeName, ops := range summary.Types {
		fmt.Fprintf(&b, "  %s: %s\n", typeName, strings.Join(ops, ", "))
	}
	fmt.Fprintf(&b, "  functions: %s\n", strings.Join(summary.Functions, ", "))
	fmt.Fprintf(&b, "  excluded: %d names", len(summary.Excluded))
	return formatter.Success(b.String())
}
