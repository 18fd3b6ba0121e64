package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/credgate/internal/cli/config"
	"github.com/yndnr/credgate/internal/cli/connection"
)

// ConfigCommand groups configuration subcommands for both the CLI's
// own config file and the server's runtime configuration.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage CLI and server configuration",
		Subcommands: []*cli.Command{
			configShowCommand(),
			configSetCommand(),
			configValidateCommand(),
			configReloadCommand(),
		},
	}
}

func configShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the CLI configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Config file path",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := cliconfig.Load(c.String("file"))
			if err != nil {
				return err
			}
			return printData(c, cfg)
		},
	}
}

func configSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a CLI configuration value",
		ArgsUsage: "<key> <value>",
		Description: "Keys: default_server, default_output, timeout, insecure",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Config file path",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("key and value required")
			}
			path := c.String("file")
			cfg, err := cliconfig.Load(path)
			if err != nil {
				return err
			}

			key, value := c.Args().Get(0), c.Args().Get(1)
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cliconfig.Save(cfg, path); err != nil {
				return err
			}
			fmt.Printf("Set %s = %s\n", key, value)
			return nil
		},
	}
}

func configValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate the CLI configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Config file path",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := cliconfig.Load(c.String("file"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid.")
			return nil
		},
	}
}

func configReloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Ask the server to reload its configuration (admin)",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/config/reload", nil)
			if err != nil {
				return err
			}
			if err := connection.ParseResponse(resp, nil); err != nil {
				return err
			}
			fmt.Println("Server configuration reloaded.")
			return nil
		},
	}
}
