// Package main provides the entry point for credgate-cli.
//
// credgate-cli is the command-line client for CredGate, supporting both
// single-command mode and interactive shell mode.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/credgate/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
