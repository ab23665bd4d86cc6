package main

import (
	"fmt"
	"os"

	"github.com/tethergrid/tether/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tether: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
