package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/repl"
)

// ShellCommand starts an interactive shell. Each line is dispatched
// through the same command tree as a one-shot invocation, so anything
// that works on the command line works in the shell.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"sh"},
		Usage:   "Start an interactive shell",
		Action: func(c *cli.Context) error {
			app := c.App

			runner := func(args []string) error {
				// Prepend program name and sticky global flags so each
				// line runs as a full invocation against the same
				// session store.
				argv := []string{app.Name}
				if c.IsSet("server") {
					argv = append(argv, "--server", c.String("server"))
				}
				if c.IsSet("output") {
					argv = append(argv, "--output", c.String("output"))
				}
				if c.Bool("insecure") {
					argv = append(argv, "--insecure")
				}
				argv = append(argv, args...)

				if err := app.Run(argv); err != nil {
					fmt.Println("error:", err)
				}
				return nil
			}

			return repl.New(runner).Run()
		},
	}
}
