package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// OrderResult is the output of the order command.
type OrderResult struct {
	Order []string `json:"order"`
}

// LayersResult is the output of the layers command.
type LayersResult struct {
	Layers [][]string `json:"layers"`
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order <graph>",
		Short: "Print the execution order",
		Long: `Print a topological execution order of every node in the graph.

The order is deterministic: nodes are visited in declaration order and each
node is printed after everything it depends on.

Example:
  nodegraph order ./graphs/pipeline.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(rootOpts, args[0], cmd)
		},
	}
}

// NewLayersCommand creates the layers command.
func NewLayersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layers <graph>",
		Short: "Print the nodes grouped by layer",
		Long: `Print the graph's layers. Layer 0 holds nodes with no dependencies; every
other node sits one layer above its deepest dependency. Nodes within a layer
are independent of each other.

Example:
  nodegraph layers --format json ./graphs/pipeline.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayers(rootOpts, args[0], cmd)
		},
	}
}

func runOrder(opts *RootOptions, path string, cmd *cobra.Command) error {
	sess, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	sched, err := sess.load(path)
	if err != nil {
		return err
	}

	order, err := sched.GetExecutionOrder()
	if err != nil {
		return sess.graphFailure("graph has no execution order", err)
	}

	if sess.out.JSON() {
		return sess.out.Success(OrderResult{Order: refStrings(order)})
	}
	for _, ref := range order {
		fmt.Fprintln(sess.out.Writer, ref)
	}
	return nil
}

func runLayers(opts *RootOptions, path string, cmd *cobra.Command) error {
	sess, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	sched, err := sess.load(path)
	if err != nil {
		return err
	}

	layering, err := sched.GetLayers()
	if err != nil {
		return sess.graphFailure("graph cannot be layered", err)
	}

	result := LayersResult{Layers: make([][]string, len(layering.Layers))}
	for i, layer := range layering.Layers {
		result.Layers[i] = refStrings(layer)
	}
	if sess.out.JSON() {
		return sess.out.Success(result)
	}
	for i, layer := range result.Layers {
		fmt.Fprintf(sess.out.Writer, "layer %d: %s\n", i, strings.Join(layer, ", "))
	}
	return nil
}
