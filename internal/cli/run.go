package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/graphspec"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/scheduler"
	"github.com/roach88/nodegraph/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database        string
	Parallel        bool
	Workers         int
	ContinueOnError bool

	// TokenGenerator allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGenerator scheduler.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Compile and execute a graph",
		Long: `Compile every marked boundary, then execute the plan with the builtin
node kinds and print each task's outputs.

By default tasks run one at a time and the run stops at the first failure.
--parallel runs each layer's tasks concurrently; --continue-on-error keeps
running everything that does not depend on a failed task.

With --db (or NODEGRAPH_DB) the run and its task results are recorded, and
compiled manifests are shared across runs.

Example:
  nodegraph run ./graphs/pipeline.cue
  nodegraph run --parallel --workers 4 --db ./nodegraph.db ./graphs/pipeline.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run history")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "run each layer's tasks concurrently")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "max concurrent tasks per layer (0 = no limit)")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "keep running tasks that do not depend on a failure")

	return cmd
}

func runGraph(opts *RunOptions, path string, cmd *cobra.Command) error {
	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Workers < 0 {
		_ = sess.out.Error(graphspec.ErrCodeGeneric, "--workers must not be negative", nil)
		return NewExitError(ExitCommandError, "invalid --workers")
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = sess.cfg.DBPath
	}
	st, err := sess.openStore(dbPath)
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	comp, err := sess.compiler(st)
	if err != nil {
		return err
	}
	schedOpts := []scheduler.Option{scheduler.WithCompiler(comp)}
	if st != nil {
		schedOpts = append(schedOpts, scheduler.WithRunRecorder(st))
	}
	if opts.TokenGenerator != nil {
		schedOpts = append(schedOpts, scheduler.WithTokenGenerator(opts.TokenGenerator))
	}
	sched, err := sess.load(path, schedOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := sched.CompileMarkedSubgraphs(ctx); err != nil {
		return sess.graphFailure("failed to compile boundaries", err)
	}

	execOpts := scheduler.ExecOptions{
		Mode:    scheduler.ModeSequential,
		Policy:  scheduler.PolicyAbort,
		Workers: sess.cfg.Workers,
	}
	if opts.Parallel {
		execOpts.Mode = scheduler.ModeParallel
	}
	if opts.ContinueOnError {
		execOpts.Policy = scheduler.PolicyContinue
	}
	if cmd.Flags().Changed("workers") {
		execOpts.Workers = opts.Workers
	}

	result, runErr := sched.ExecutePlan(ctx, execOpts)
	if result == nil {
		return sess.graphFailure("failed to build plan", runErr)
	}
	record := result.Record()

	if runErr != nil {
		failed := WrapExitError(ExitFailure, fmt.Sprintf("run %s failed", record.ID), runErr)
		if sess.out.JSON() {
			if err := sess.out.Failure(errorCode(runErr), firstLine(runErr), record); err != nil {
				return err
			}
			return failed
		}
		outputRunText(sess.out, record)
		return failed
	}

	if sess.out.JSON() {
		return sess.out.Success(record)
	}
	outputRunText(sess.out, record)
	return nil
}

// outputRunText prints a run summary followed by one line per task.
func outputRunText(formatter *OutputFormatter, run store.RunRecord) {
	w := formatter.Writer
	mark := "✓"
	if run.Status != "succeeded" {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Run %s %s: %d tasks, %d failed, %d skipped\n",
		mark, run.ID, run.Status, run.Tasks, run.Failed, run.Skipped)
	writeTaskLines(formatter, run.Results)
}

func writeTaskLines(formatter *OutputFormatter, tasks []store.TaskRecord) {
	width := 0
	for _, t := range tasks {
		width = max(width, len(t.Label))
	}
	for _, t := range tasks {
		detail := t.Error
		if t.Status == "succeeded" {
			data, err := ir.MarshalCanonical(t.Outputs)
			if err != nil {
				detail = err.Error()
			} else {
				detail = string(data)
			}
		}
		line := fmt.Sprintf("  %-*s  %-9s  %s", width, t.Label, t.Status, detail)
		fmt.Fprintln(formatter.Writer, strings.TrimRight(line, " "))
	}
}

// firstLine returns the first line of a possibly joined error.
func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
