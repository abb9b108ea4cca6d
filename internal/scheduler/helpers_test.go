package scheduler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithTokenGenerator(testutil.NewFixedTokenGenerator("run-test")),
	}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

// chain registers recording nodes and wires each one's "in" port from the
// next: chain(s, log, "A", "B", "C") makes A depend on B and B on C.
func chain(t *testing.T, s *Scheduler, log *testutil.ExecutionLog, refs ...graph.NodeRef) {
	t.Helper()
	for i, ref := range refs {
		if i == len(refs)-1 {
			require.NoError(t, s.Register(ref, testutil.RecordingNode(log, ref)))
		} else {
			require.NoError(t, s.Register(ref, testutil.RecordingNode(log, ref, "in")))
		}
	}
	for i := 0; i+1 < len(refs); i++ {
		require.NoError(t, s.Connect(graph.Wire{From: refs[i+1], FromPort: "value", To: refs[i], ToPort: "in"}))
	}
}

func labels(p *Plan) []string {
	out := make([]string, p.Len())
	for i := range p.Tasks {
		out[i] = string(p.Tasks[i].Kind) + ":" + p.Tasks[i].Label()
	}
	return out
}
