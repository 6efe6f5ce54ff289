// Command mpcompat validates integration groups, simulates multi-peer
// scenarios, and inspects operation journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mpcompat/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
