// Command leakguard compiles leak criteria and drives the shutoff valve
// controller.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/leakguard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
