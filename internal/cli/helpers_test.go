package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/config"
)

var graphsDir = filepath.Join("..", "..", "testdata", "graphs")

func graphPath(name string) string {
	return filepath.Join(graphsDir, name)
}

// isolateEnv clears every NODEGRAPH_* setting for the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvDB, config.EnvCacheSize, config.EnvWorkers, config.EnvLogLevel} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// execute runs cmd with args and returns stdout. Logs on stderr are dropped.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	isolateEnv(t)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

var hexRun = regexp.MustCompile(`[0-9a-f]{12,}`)

// normalizeHashes replaces content hashes so golden files do not depend on
// manifest encoding details.
func normalizeHashes(s string) string {
	return hexRun.ReplaceAllString(s, "<hash>")
}

func assertGolden(t *testing.T, name, output string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(output))
}
