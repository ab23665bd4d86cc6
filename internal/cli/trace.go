package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/value"
)

// TraceEntry is one command-log row in JSON output.
type TraceEntry struct {
	Seq      int64  `json:"seq"`
	Op       string `json:"op"`
	Receiver string `json:"receiver,omitempty"`
	Digest   string `json:"digest"`
}

// TraceResult is the JSON payload for the trace command.
type TraceResult struct {
	Worker   string       `json:"worker"`
	Commands []TraceEntry `json:"commands"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		workerName string
		opFilter   string
	)

	cmd := &cobra.Command{
		Use:           "trace <database>",
		Short:         "Show the commands a worker has received, in order",
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

			logged, err := st.Commands(cmd.Context(), value.WorkerID(workerName))
			if err != nil {
				return WrapExitError(ExitCommandError, "read command log", err)
			}

			entries := make([]TraceEntry, 0, len(logged))
			for _, lc := range logged {
				if opFilter != "" && lc.Op != opFilter {
					continue
				}
				entries = append(entries, TraceEntry{
					Seq:      lc.Seq,
					Op:       lc.Op,
					Receiver: string(lc.ReceiverID),
					Digest:   lc.Digest,
				})
			}

			if rootOpts.Format == "json" {
				return formatter.Success(TraceResult{Worker: workerName, Commands: entries})
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%s: %d command(s)", workerName, len(entries))
			for _, e := range entries {
				recv := e.Receiver
				if recv == "" {
					recv = "(function)"
				}
				fmt.Fprintf(&b, "\n  [%d] %s %s %s", e.Seq, e.Op, recv, e.Digest[:12])
			}
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().StringVar(&workerName, "worker", "alice", "virtual worker name")
	cmd.Flags().StringVar(&opFilter, "op", "", "only show commands with this operation")
	return cmd
}
