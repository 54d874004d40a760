package main

import (
	"fmt"
	"os"

	"github.com/roach88/triggersim/internal/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
