package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tethergrid/tether/internal/harness"
	"github.com/tethergrid/tether/internal/testutil"
)

// ScenarioOutcome is one scenario's pass/fail record.
type ScenarioOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
	Steps  int    `json:"steps"`
}

// ScenarioReport is the JSON payload for the scenario command.
type ScenarioReport struct {
	Total   int               `json:"total"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Results []ScenarioOutcome `json:"results"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file-or-dir>",
		Short: "Run dispatch scenario files and report pass/fail",
		Long: `Run one scenario file, or every *.yaml scenario in a directory.
Each scenario executes in a fresh in-memory topology; the command exits
nonzero when any scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args[0], cmd)
		},
	}
}

func runScenarios(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "stat scenario path", err)
	}
	var scenarios []*harness.Scenario
	if info.IsDir() {
		scenarios, err = harness.LoadScenarioDir(path)
	} else {
		var s *harness.Scenario
		s, err = harness.LoadScenario(path)
		scenarios = []*harness.Scenario{s}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}
	if len(scenarios) == 0 {
		return WrapExitError(ExitCommandError, "no scenarios found", nil)
	}

	h := harness.New(testutil.QuietLogger())
	report := ScenarioReport{Total: len(scenarios)}
	for _, s := range scenarios {
		formatter.VerboseLog("running scenario %s", s.Name)
		result, err := h.Run(cmd.Context(), s)
		outcome := ScenarioOutcome{Name: s.Name, Passed: err == nil}
		if result != nil {
			outcome.Steps = len(result.Trace)
		}
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
		} else {
			report.Passed++
		}
		report.Results = append(report.Results, outcome)
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		for _, r := range report.Results {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(&b, "%s %s (%d steps)\n", status, r.Name, r.Steps)
			if r.Error != "" && opts.Verbose {
				fmt.Fprintf(&b, "     %s\n", r.Error)
			}
		}
		fmt.Fprintf(&b, "%d/%d passed", report.Passed, report.Total)
		if err := formatter.Success(b.String()); err != nil {
			return err
		}
	}

	if report.Failed > 0 {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("%d scenario(s) failed", report.Failed), nil)
	}
	return nil
}
