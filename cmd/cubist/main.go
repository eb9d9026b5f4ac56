// Command cubist compiles and runs multidimensional expressions against
// in-memory cubes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cubist/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cubist:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
