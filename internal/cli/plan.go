package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/scheduler"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Database string
}

// PlanReport is the output of the plan command.
type PlanReport struct {
	Hash   string       `json:"hash"`
	Layers int          `json:"layers"`
	Tasks  []PlanTask   `json:"tasks"`
	Cache  *CacheReport `json:"cache,omitempty"`
}

// PlanTask is one task of a printed plan.
type PlanTask struct {
	Position int      `json:"position"`
	Kind     string   `json:"kind"`
	Label    string   `json:"label"`
	Layer    int      `json:"layer"`
	Covers   []string `json:"covers"`
	Deps     []int    `json:"deps"`
	Key      string   `json:"key,omitempty"`
}

// CacheReport summarizes compiler cache activity.
type CacheReport struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Loads   uint64 `json:"loads"`
	Entries int    `json:"entries"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <graph>",
		Short: "Compile boundaries and print the execution plan",
		Long: `Compile every marked boundary and print the resulting execution plan.

Each compiled boundary appears as one task covering all of its members.
With --db, compiled manifests are read from and saved to the database.

Example:
  nodegraph plan ./graphs/pipeline.cue
  nodegraph plan --db ./nodegraph.db ./graphs/pipeline.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for compiled manifests")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
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
	sched, err := sess.load(path, scheduler.WithCompiler(comp))
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if _, err := sched.CompileMarkedSubgraphs(ctx); err != nil {
		return sess.graphFailure("failed to compile boundaries", err)
	}
	plan, err := sched.GetExecutionPlan()
	if err != nil {
		return sess.graphFailure("failed to build plan", err)
	}

	report := planReport(plan)
	stats := comp.Cache().Stats()
	report.Cache = &CacheReport{Hits: stats.Hits, Misses: stats.Misses, Loads: stats.Loads, Entries: stats.Entries}

	if sess.out.JSON() {
		return sess.out.Success(report)
	}
	outputPlanText(sess.out, report)
	return nil
}

func planReport(plan *scheduler.Plan) PlanReport {
	report := PlanReport{
		Hash:   plan.Hash,
		Layers: len(plan.Layers),
		Tasks:  make([]PlanTask, plan.Len()),
	}
	for i := range plan.Tasks {
		t := &plan.Tasks[i]
		pt := PlanTask{
			Position: i,
			Kind:     string(t.Kind),
			Label:    t.Label(),
			Layer:    t.Layer,
			Covers:   refStrings(t.Covers()),
			Deps:     t.Deps,
		}
		if t.Kind == scheduler.TaskCompiled {
			pt.Key = t.Compiled.Key
		}
		report.Tasks[i] = pt
	}
	return report
}

func outputPlanText(formatter *OutputFormatter, report PlanReport) {
	w := formatter.Writer
	fmt.Fprintf(w, "Plan %s: %d tasks in %d layers\n", report.Hash[:12], len(report.Tasks), report.Layers)
	for _, t := range report.Tasks {
		line := fmt.Sprintf("  [%d] layer %d  %-8s  %s", t.Position, t.Layer, t.Kind, t.Label)
		if t.Key != "" {
			line += " (" + strings.Join(t.Covers, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	if formatter.Verbose && report.Cache != nil {
		fmt.Fprintf(formatter.GetErrWriter(), "cache: %d hit(s), %d miss(es), %d load(s)\n",
			report.Cache.Hits, report.Cache.Misses, report.Cache.Loads)
	}
}
