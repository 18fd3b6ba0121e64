package command

import (
	"fmt"
	"io"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/connection"
)

// StatusCommand groups server status subcommands.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Inspect server status",
		Subcommands: []*cli.Command{
			statusSummaryCommand(),
			statusHealthCommand(),
			statusGCCommand(),
		},
	}
}

func statusSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show server status summary (admin)",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, "/admin/v1/status/summary")
			if err != nil {
				return err
			}

			var summary statusSummaryPayload
			if err := connection.ParseResponse(resp, &summary); err != nil {
				return err
			}
			return printData(c, &summary)
		},
	}
}

func statusHealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health (no authentication)",
		Action: func(c *cli.Context) error {
			client := Client(c)

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, "/health")
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server unhealthy (status %d)", resp.StatusCode)
			}
			fmt.Printf("Server %s is healthy\n", client.BaseURL())
			return nil
		},
	}
}

func statusGCCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Trigger expired-session collection (admin)",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/gc/trigger", nil)
			if err != nil {
				return err
			}

			var result gcResultPayload
			if err := connection.ParseResponse(resp, &result); err != nil {
				return err
			}
			fmt.Printf("Removed %d expired sessions\n", result.RemovedCount)
			return nil
		},
	}
}
