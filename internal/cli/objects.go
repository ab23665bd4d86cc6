package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/value"
)

// ObjectsResult is the JSON payload for the objects command.
type ObjectsResult struct {
	Worker  string   `json:"worker"`
	Objects []string `json:"objects"`
}

// NewObjectsCommand creates the objects command.
func NewObjectsCommand(rootOpts *RootOptions) *cobra.Command {
	var workerName string

	cmd := &cobra.Command{
		Use:           "objects <database>",
		Short:         "List a worker's persisted object table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			st, err := store.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			ids, err := st.ListObjects(cmd.Context(), value.WorkerID(workerName))
			if err != nil {
				return WrapExitError(ExitCommandError, "list objects", err)
			}

			if rootOpts.Format == "json" {
				out := ObjectsResult{Worker: workerName, Objects: make([]string, len(ids))}
				for i, id := range ids {
					out.Objects[i] = string(id)
				}
				return formatter.Success(out)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%s: %d object(s)", workerName, len(ids))
			for _, id := range ids {
				fmt.Fprintf(&b, "\n  %s", id)
			}
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().StringVar(&workerName, "worker", "alice", "virtual worker name")
	return cmd
}
