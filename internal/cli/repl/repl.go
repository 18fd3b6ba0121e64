// Package repl provides the interactive REPL mode for credgate-cli.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Runner executes one parsed command line. The CLI wires this to its
// regular command dispatch so shell commands behave exactly like
// single-shot invocations.
type Runner func(args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	runner    Runner

	// persist controls history file load/save. Enabled for real
	// sessions, left off when the REPL is driven by tests.
	persist bool
}

// New creates a new REPL instance.
func New(runner Runner) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(),
		history:   NewHistory(),
		runner:    runner,
		persist:   true,
	}
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	if r.persist {
		// A missing or unreadable history file is not fatal.
		r.history.Load()
		defer r.history.Save()
	}

	reader := bufio.NewReader(r.input)

	for {
		// Print prompt
		fmt.Fprint(r.output, "credgate> ")

		// Read line
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		// Trim and skip empty lines
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Add to history
		r.history.Add(line)

		// Handle special commands
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "help" {
			r.printHelp()
			continue
		}

		// Execute command
		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(line string) error {
	if r.runner == nil {
		return fmt.Errorf("no command runner configured")
	}
	return r.runner(strings.Fields(line))
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.output, "Available commands:")
	for _, cmd := range r.completer.TopLevel() {
		fmt.Fprintf(r.output, "  %s\n", cmd)
	}
	fmt.Fprintln(r.output, "  exit")
}
