package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/graphspec"
	"github.com/roach88/nodegraph/internal/store"
)

// ManifestsOptions holds flags for the manifests command.
type ManifestsOptions struct {
	*RootOptions
	Database string
	Boundary string
	Delete   bool
}

// ManifestsResult is the JSON payload for the manifests command.
type ManifestsResult struct {
	Manifests []store.ManifestRecord `json:"manifests,omitempty"`
	Deleted   int64                  `json:"deleted,omitempty"`
}

// NewManifestsCommand creates the manifests command.
func NewManifestsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ManifestsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "manifests",
		Short: "List or delete stored compiled manifests",
		Long: `List the compiled subgraph manifests stored in a database.

--boundary restricts the listing to one boundary. --delete removes every
manifest stored for that boundary, forcing the next run to recompile it.

Example:
  nodegraph manifests --db ./nodegraph.db
  nodegraph manifests --db ./nodegraph.db --boundary hot --delete`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifests(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default NODEGRAPH_DB)")
	cmd.Flags().StringVar(&opts.Boundary, "boundary", "", "boundary identifier")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete manifests for --boundary")

	return cmd
}

func runManifests(opts *ManifestsOptions, cmd *cobra.Command) error {
	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Delete && opts.Boundary == "" {
		_ = sess.out.Error(graphspec.ErrCodeGeneric, "--delete requires --boundary", nil)
		return NewExitError(ExitCommandError, "--delete requires --boundary")
	}
	st, err := sess.requireStore(opts.Database)
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	ctx := commandContext(cmd)
	w := sess.out.Writer

	if opts.Delete {
		n, err := st.DeleteManifests(ctx, opts.Boundary)
		if err != nil {
			return sess.commandError("failed to delete manifests", err)
		}
		if sess.out.JSON() {
			return sess.out.Success(ManifestsResult{Deleted: n})
		}
		fmt.Fprintf(w, "Deleted %d manifest(s) for boundary %s\n", n, opts.Boundary)
		return nil
	}

	manifests, err := st.ListManifests(ctx, opts.Boundary)
	if err != nil {
		return sess.commandError("failed to list manifests", err)
	}
	if sess.out.JSON() {
		return sess.out.Success(ManifestsResult{Manifests: manifests})
	}
	if len(manifests) == 0 {
		fmt.Fprintln(w, "No manifests stored")
		return nil
	}
	for _, m := range manifests {
		fmt.Fprintf(w, "%4d  %-12s  %s\n", m.Seq, m.Identifier, m.Key)
	}
	return nil
}
