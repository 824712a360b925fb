package main

import (
	"fmt"
	"os"

	"github.com/roach88/opsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "opsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
