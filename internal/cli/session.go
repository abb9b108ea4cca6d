package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/compiler"
	"github.com/roach88/nodegraph/internal/config"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/graphspec"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/scheduler"
	"github.com/roach88/nodegraph/internal/store"
)

// session is the per-invocation state shared by the graph commands.
type session struct {
	out    *OutputFormatter
	cfg    *config.Config
	logger *slog.Logger
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	cfg, err := opts.settings()
	if err != nil {
		_ = out.Error(graphspec.ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	return &session{out: out, cfg: cfg, logger: opts.logger(cmd.ErrOrStderr(), cfg)}, nil
}

// load reads the graph at path into a new scheduler. Load and build problems
// are command errors.
func (s *session) load(path string, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	g, err := graphspec.Load(path)
	if err != nil {
		return nil, s.commandError("failed to load graph", err)
	}
	s.out.VerboseLog("Loaded %d node(s), %d wire(s), %d boundary(ies) from %s",
		len(g.Nodes), len(g.Wires), len(g.Boundaries), path)

	opts = append([]scheduler.Option{scheduler.WithLogger(s.logger)}, opts...)
	sched, err := g.NewScheduler(node.Builtins(), opts...)
	if err != nil {
		return nil, s.commandError("failed to build graph", err)
	}
	return sched, nil
}

// commandError reports err and returns exit code 2.
func (s *session) commandError(message string, err error) error {
	code := errorCode(err)
	_ = s.out.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, message, err)
}

// graphFailure reports a problem with the graph itself (a cycle, an
// unschedulable boundary) and returns exit code 1.
func (s *session) graphFailure(message string, err error) error {
	code := errorCode(err)
	_ = s.out.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, message, err)
}

// errorCode picks the most specific code carried by err.
func errorCode(err error) string {
	if code := graphspec.CodeOf(err); code != "" {
		return code
	}
	if code := graph.CodeOf(err); code != "" {
		return string(code)
	}
	return graphspec.ErrCodeGeneric
}

func refStrings(refs []graph.NodeRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = string(ref)
	}
	return out
}

// openStore opens the database at path, or returns nil when path is empty.
func (s *session) openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	s.logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		_ = s.out.Error(graphspec.ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func (s *session) closeStore(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// compiler builds the subgraph compiler, backed by st when it is not nil.
func (s *session) compiler(st *store.Store) (*compiler.Compiler, error) {
	opts := []compiler.Option{
		compiler.WithLogger(s.logger),
		compiler.WithCacheSize(s.cfg.CacheSize),
	}
	if st != nil {
		opts = append(opts, compiler.WithStore(st))
	}
	c, err := compiler.New(opts...)
	if err != nil {
		return nil, s.commandError("failed to create compiler", err)
	}
	return c, nil
}

// requireStore opens the database named by path or NODEGRAPH_DB and fails
// when neither is set.
func (s *session) requireStore(path string) (*store.Store, error) {
	if path == "" {
		path = s.cfg.DBPath
	}
	if path == "" {
		_ = s.out.Error(graphspec.ErrCodeGeneric, "no database: pass --db or set "+config.EnvDB, nil)
		return nil, NewExitError(ExitCommandError, "no database")
	}
	return s.openStore(path)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
