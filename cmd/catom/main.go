// Command catom compiles CUE entity schemas and runs change-trace
// scenarios against them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/catom/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "catom:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
