package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/graphspec"
	"github.com/roach88/nodegraph/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	RunID    string
	Failed   bool
}

// RunsList is the JSON payload for a run listing.
type RunsList struct {
	Runs []store.RunRecord `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a database, oldest first.

With --run, show one run and the outcome of each of its tasks. Add
--failed to show only the tasks that failed.

Example:
  nodegraph runs --db ./nodegraph.db
  nodegraph runs --db ./nodegraph.db --run 0190a3c4-...
  nodegraph runs --db ./nodegraph.db --run 0190a3c4-... --failed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default NODEGRAPH_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "with --run, show only failed tasks")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Failed && opts.RunID == "" {
		_ = sess.out.Error(graphspec.ErrCodeGeneric, "--failed requires --run", nil)
		return NewExitError(ExitCommandError, "--failed requires --run")
	}
	st, err := sess.requireStore(opts.Database)
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	ctx := commandContext(cmd)

	if opts.RunID != "" {
		read := st.ReadRun
		if opts.Failed {
			read = st.ReadRunFailures
		}
		run, err := read(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			_ = sess.out.Error(graphspec.ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		if err != nil {
			return sess.commandError("failed to read run", err)
		}
		if sess.out.JSON() {
			return sess.out.Success(run)
		}
		outputRunText(sess.out, run)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return sess.commandError("failed to list runs", err)
	}
	if sess.out.JSON() {
		if runs == nil {
			runs = []store.RunRecord{}
		}
		return sess.out.Success(RunsList{Runs: runs})
	}

	w := sess.out.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%4d  %-9s  %s  %s/%s  %d tasks, %d failed, %d skipped\n",
			r.Seq, r.Status, r.ID, r.Mode, r.Policy, r.Tasks, r.Failed, r.Skipped)
	}
	return nil
}
