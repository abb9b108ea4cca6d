// Command nodegraph orders, layers, compiles and runs node graphs.
package main

import (
	"os"

	"github.com/roach88/nodegraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
