// Command puget merges, reconciles, links and clusters HMIS records.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/puget/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own errors; cobra usage errors are not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
