package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/graph"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool      `json:"valid"`
	Nodes      int       `json:"nodes"`
	Boundaries int       `json:"boundaries"`
	Problems   []Problem `json:"problems,omitempty"`
}

// Problem is one reason a graph cannot be scheduled.
type Problem struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Nodes    []string `json:"nodes,omitempty"`
	Boundary string   `json:"boundary,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Check a graph for cycles and unschedulable boundaries",
		Long: `Check a graph without running it.

Reports every dependency cycle (not only the first) and every compilation
boundary that cannot be scheduled as a single unit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	sess, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	sched, err := sess.load(path)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Nodes:      len(sched.Nodes()),
		Boundaries: len(sched.Boundaries()),
	}
	for _, c := range sched.Cycles() {
		result.Problems = append(result.Problems, Problem{
			Code:    string(graph.ErrCodeCyclicDependency),
			Message: "cycle " + graph.FormatPath(c.Path),
			Nodes:   refStrings(c.Members),
		})
	}
	for _, e := range sched.ValidateBoundaries() {
		p := Problem{Code: string(e.Code), Message: e.Message, Boundary: e.Boundary}
		if e.Node != "" {
			p.Nodes = []string{string(e.Node)}
		}
		result.Problems = append(result.Problems, p)
	}
	result.Valid = len(result.Problems) == 0
	sess.out.VerboseLog("Checked %d node(s) and %d boundary(ies)", result.Nodes, result.Boundaries)

	if result.Valid {
		return outputValidateSuccess(sess.out, result)
	}
	return outputValidationProblems(sess.out, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Graph valid: %d nodes, %d boundaries\n", result.Nodes, result.Boundaries)
	return nil
}

// outputValidationProblems outputs every problem found.
func outputValidationProblems(formatter *OutputFormatter, result ValidationResult) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", len(result.Problems)))

	if formatter.JSON() {
		first := result.Problems[0]
		if err := formatter.Failure(first.Code, first.Message, result); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range result.Problems {
		if p.Boundary != "" {
			fmt.Fprintf(formatter.Writer, "boundary %s\n", p.Boundary)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", p.Code, p.Message)
	}
	return failed
}
