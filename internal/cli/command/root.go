// Package command provides CLI command definitions for credgate-cli.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/credgate/internal/cli/config"
	"github.com/yndnr/credgate/internal/cli/connection"
	"github.com/yndnr/credgate/internal/cli/state"
	"github.com/yndnr/credgate/internal/infra/buildinfo"
	"github.com/yndnr/credgate/internal/infra/tlsroots"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "credgate",
		Usage:   "CredGate authentication gateway client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoAmICommand(),
			SessionCommand(),
			UserCommand(),
			StatusCommand(),
			BackupCommand(),
			ConfigCommand(),
			ShellCommand(),
			LocalCommand(),
		},
		Before: func(c *cli.Context) error {
			// Initialize connection manager
			mgr := connection.NewManager()
			c.App.Metadata["connMgr"] = mgr

			// CLI config supplies defaults when flags are absent.
			if _, ok := c.App.Metadata["cliConfig"]; !ok {
				cfg, err := cliconfig.Load("")
				if err != nil {
					return err
				}
				c.App.Metadata["cliConfig"] = cfg
			}

			// The session store is injected by tests; real runs use
			// ~/.credgate.
			if _, ok := c.App.Metadata["stateStore"]; !ok {
				store, err := state.NewStore()
				if err != nil {
					return err
				}
				c.App.Metadata["stateStore"] = store
			}
			return nil
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "CredGate server address (e.g., localhost:5080)",
			EnvVars: []string{"CREDGATE_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Server connection
	Server   string
	Insecure bool

	// Output format
	Output string // table, json, yaml
	Wide   bool

	// Other
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context, falling back to
// the CLI config file for the server address and output format.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	flags := &GlobalFlags{
		Server:   c.String("server"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
		Verbose:  c.Bool("verbose"),
		Insecure: c.Bool("insecure"),
	}

	if cfg := CLIConfig(c); cfg != nil {
		if flags.Server == "" {
			flags.Server = cfg.DefaultServer
		}
		if !c.IsSet("output") && cfg.DefaultOutput != "" {
			flags.Output = cfg.DefaultOutput
		}
		if !flags.Insecure {
			flags.Insecure = cfg.Insecure
		}
	}
	if flags.Server == "" {
		flags.Server = "localhost:5080"
	}

	return flags
}

// CLIConfig retrieves the loaded CLI configuration from context.
func CLIConfig(c *cli.Context) *cliconfig.CLIConfig {
	if cfg, ok := c.App.Metadata["cliConfig"].(*cliconfig.CLIConfig); ok {
		return cfg
	}
	return nil
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata["connMgr"].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// StateStore retrieves the client session store from context.
func StateStore(c *cli.Context) *state.Store {
	if store, ok := c.App.Metadata["stateStore"].(*state.Store); ok {
		return store
	}
	return nil
}

// Client builds an HTTP client from flags and the saved session, if
// any. Commands that work unauthenticated (health checks, login) use
// this directly.
func Client(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)

	server := flags.Server
	token := ""
	if store := StateStore(c); store != nil {
		if sess, err := store.Load(); err == nil {
			token = sess.Token
			// The saved session pins the server unless overridden.
			if !c.IsSet("server") && sess.Server != "" {
				server = sess.Server
			}
		}
	}

	client := connection.NewHTTPClient(server, token, flags.Insecure)
	applyTrustRoots(c, client)
	return client
}

// EnsureAuthed returns a client carrying the saved session credential,
// or an error telling the user to log in first.
func EnsureAuthed(c *cli.Context) (*connection.HTTPClient, error) {
	store := StateStore(c)
	if store == nil {
		return nil, fmt.Errorf("session store not initialized")
	}

	sess, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("not logged in (run 'credgate login' first)")
	}

	flags := ParseGlobalFlags(c)
	server := flags.Server
	if !c.IsSet("server") && sess.Server != "" {
		server = sess.Server
	}

	client := connection.NewHTTPClient(server, sess.Token, flags.Insecure)
	applyTrustRoots(c, client)
	return client, nil
}

// applyTrustRoots extends the client's trusted roots with the CA file
// from the CLI config, if one is set. Errors are reported but not
// fatal; the TLS handshake will produce its own failure.
func applyTrustRoots(c *cli.Context, client *connection.HTTPClient) {
	cfg := CLIConfig(c)
	if cfg == nil || cfg.CAFile == "" {
		return
	}

	pool, err := tlsroots.NewPool()
	if err != nil {
		PrintError("load system roots: %v", err)
		return
	}
	if err := pool.AddCertFile(cfg.CAFile); err != nil {
		PrintError("load ca_file: %v", err)
		return
	}
	client.SetTLSConfig(pool.TLSConfig())
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
