// Package main provides the quell command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/quellstream/quell/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
