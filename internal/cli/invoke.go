package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tethergrid/tether/internal/caps"
	"github.com/tethergrid/tether/internal/engine"
	"github.com/tethergrid/tether/internal/harness"
	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/testutil"
	"github.com/tethergrid/tether/internal/value"
	"github.com/tethergrid/tether/internal/worker"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Database string
	Worker   string
	Seed     []string // worker/object=csv preloads before invoking
}

// InvokeResult is the JSON payload for a completed invocation.
type InvokeResult struct {
	Op     string `json:"op"`
	Result string `json:"result"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <op> <worker/object|$literal> [args...]",
		Short: "Invoke one operation against a worker-held object",
		Long: `Invoke a method on an object held by a virtual worker backed by the
database, or a qualified free function (e.g. "tensor.cat"). Arguments
are integer literals, booleans, or worker/object references.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "sqlite database path (default in-memory)")
	cmd.Flags().StringVar(&opts.Worker, "worker", "alice", "virtual worker name")
	cmd.Flags().StringArrayVar(&opts.Seed, "seed", nil,
		"seed object before invoking, e.g. --seed obj-1=1,2,3 (repeatable)")

	return cmd
}

func runInvoke(opts *InvokeOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = ":memory:"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	m, err := caps.DefaultManifest()
	if err != nil {
		return WrapExitError(ExitCommandError, "load manifest", err)
	}
	reg := caps.NewRegistry(m, testutil.QuietLogger())
	router := worker.NewRouter()

	workerID := value.WorkerID(opts.Worker)
	hk, err := newInstalledHook(reg, workerID, router)
	if err != nil {
		return WrapExitError(ExitCommandError, "install hook", err)
	}
	w := worker.NewVirtualWorker(workerID, hk,
		worker.WithStore(st),
		worker.WithWorkerLogger(testutil.QuietLogger()))
	router.Register(w)

	client, err := newInstalledHook(reg, "client", router)
	if err != nil {
		return WrapExitError(ExitCommandError, "install hook", err)
	}

	for _, seed := range opts.Seed {
		name, csv, ok := strings.Cut(seed, "=")
		if !ok {
			return WrapExitError(ExitCommandError,
				fmt.Sprintf("seed %q: want object=1,2,3", seed), nil)
		}
		t, err := parseTensor(csv)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("seed %q", seed), err)
		}
		if err := w.RegisterObject(ctx, value.ObjectID(name), t); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("seed %q", seed), err)
		}
		formatter.VerboseLog("seeded %s/%s = %s", opts.Worker, name, t)
	}

	op := args[0]
	operands := make([]value.Value, 0, len(args)-1)
	var recv value.Value
	rest := args[1:]
	if !strings.Contains(op, ".") {
		if len(rest) == 0 {
			return WrapExitError(ExitCommandError, "method invocation needs a receiver", nil)
		}
		recv, err = parseOperand(rest[0], workerID)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse receiver", err)
		}
		rest = rest[1:]
	}
	for _, a := range rest {
		v, err := parseOperand(a, workerID)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse argument", err)
		}
		operands = append(operands, v)
	}

	var res value.Value
	if recv == nil {
		res, err = client.Call(ctx, op, operands...)
	} else {
		res, err = client.Invoke(ctx, recv, op, operands...)
	}
	if err != nil {
		if ferr := formatter.Error(ErrCodeDispatch, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "dispatch failed", err)
	}

	rendered := harness.RenderValue(res)
	if opts.Format == "json" {
		return formatter.Success(InvokeResult{Op: op, Result: rendered})
	}
	return formatter.Success(rendered)
}

func newInstalledHook(reg *caps.Registry, id value.WorkerID, sender engine.CommandSender) (*engine.Hook, error) {
	h := engine.New(reg,
		engine.WithLogger(testutil.QuietLogger()),
		engine.WithLocalWorker(id),
		engine.WithSender(sender))
	if err := h.Install(native.TensorType); err != nil {
		return nil, err
	}
	if err := h.InstallFunctions(); err != nil {
		return nil, err
	}
	return h, nil
}

// parseOperand reads an invocation operand: "worker/object" pointer
// references, integers, or booleans.
func parseOperand(s string, defaultWorker value.WorkerID) (value.Value, error) {
	if loc, obj, ok := strings.Cut(s, "/"); ok {
		location := value.WorkerID(loc)
		if loc == "" {
			location = defaultWorker
		}
		p := value.NewRemoteProxy(&value.Pointer{
			Location:     location,
			IDAtLocation: value.ObjectID(obj),
			Owner:        "client",
		}, value.WithID(value.ObjectID(obj)), value.WithOwner("client"))
		return value.ProxyValue{Proxy: p}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(n), nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return value.Bool(b), nil
	}
	return nil, fmt.Errorf("cannot parse operand %q", s)
}

// parseTensor reads "1,2,3" into a tensor.
func parseTensor(csv string) (*native.Tensor, error) {
	if csv == "" {
		return native.New(), nil
	}
	parts := strings.Split(csv, ",")
	data := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		data[i] = n
	}
	return native.New(data...), nil
}
