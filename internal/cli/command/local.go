package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/connection"
)

// DefaultSocketPath is where credgate-server listens when the local
// management socket is enabled.
const DefaultSocketPath = "/tmp/credgate-server.sock"

// LocalCommand groups management-socket subcommands. They talk to a
// server on the same host and bypass HTTP auth entirely; access
// control is the socket's file permissions.
func LocalCommand() *cli.Command {
	return &cli.Command{
		Name:  "local",
		Usage: "Manage a credgate-server on this host via its Unix socket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Path to the management socket",
				Value: DefaultSocketPath,
			},
		},
		Subcommands: []*cli.Command{
			localSimpleCommand("ping", "Check the server is responding"),
			localStatusCommand(),
			localSimpleCommand("reload", "Reload the server configuration"),
			localSimpleCommand("drain", "Stop accepting new connections"),
			localSimpleCommand("shutdown", "Shut the server down gracefully"),
		},
	}
}

func localStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show server status",
		Action: func(c *cli.Context) error {
			reply, err := localExec(c, "status")
			if err != nil {
				return err
			}

			data := make(map[string]any, len(reply.Fields))
			for k, v := range reply.Fields {
				data[k] = v
			}
			return printData(c, data)
		},
	}
}

// localSimpleCommand covers the commands whose reply is just an
// acknowledgement line.
func localSimpleCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			reply, err := localExec(c, name)
			if err != nil {
				return err
			}
			for detail := range reply.Fields {
				fmt.Fprintln(c.App.Writer, detail)
			}
			if len(reply.Fields) == 0 {
				fmt.Fprintln(c.App.Writer, "OK")
			}
			return nil
		},
	}
}

func localExec(c *cli.Context, cmd string) (*connection.Reply, error) {
	client := connection.NewSocketClient(c.String("socket"))

	raw, err := client.Execute(cmd)
	if err != nil {
		return nil, err
	}
	reply, err := connection.ParseReply(raw)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, fmt.Errorf("server refused %s: %s", cmd, reply.Reason)
	}
	return reply, nil
}
