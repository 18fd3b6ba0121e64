// Package repl provides the interactive REPL mode for credgate-cli.
package repl

import "strings"

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	return &Completer{
		commands: []string{
			"login", "logout", "whoami",
			"session", "session list", "session get", "session renew", "session revoke", "session revoke-all",
			"user", "user add", "user list", "user get", "user status", "user reset-password",
			"status", "status summary", "status health", "status gc",
			"backup", "backup create", "backup list",
			"config", "config cli", "config server",
			"help", "exit", "quit",
		},
	}
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// TopLevel returns the top-level command names.
func (c *Completer) TopLevel() []string {
	var top []string
	for _, cmd := range c.commands {
		if cmd == "exit" || cmd == "quit" || cmd == "help" {
			continue
		}
		if !strings.Contains(cmd, " ") {
			top = append(top, cmd)
		}
	}
	return top
}
