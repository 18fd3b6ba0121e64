package command

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/connection"
)

// SessionCommand groups session management subcommands.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Manage server-side sessions",
		Subcommands: []*cli.Command{
			sessionListCommand(),
			sessionGetCommand(),
			sessionRenewCommand(),
			sessionRevokeCommand(),
			sessionRevokeAllCommand(),
		},
	}
}

func sessionListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "Filter by user ID",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Filter by device ID",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status: active, expired",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Results per page",
				Value: 50,
			},
		},
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			q := url.Values{}
			if v := c.String("user"); v != "" {
				q.Set("user_id", v)
			}
			if v := c.String("device"); v != "" {
				q.Set("device_id", v)
			}
			if v := c.String("status"); v != "" {
				q.Set("status", v)
			}
			q.Set("page", strconv.Itoa(c.Int("page")))
			q.Set("page_size", strconv.Itoa(c.Int("page-size")))

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, "/api/v1/sessions?"+q.Encode())
			if err != nil {
				return err
			}

			var list sessionListPayload
			if err := connection.ParseResponse(resp, &list); err != nil {
				return err
			}

			if err := printData(c, list.Items); err != nil {
				return err
			}
			if ParseGlobalFlags(c).Output == "table" {
				fmt.Printf("\n%d of %d sessions (page %d)\n",
					len(list.Items), list.Total, list.Page)
			}
			return nil
		},
	}
}

func sessionGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one session",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("session ID required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, "/api/v1/sessions/"+c.Args().First())
			if err != nil {
				return err
			}

			var sess sessionPayload
			if err := connection.ParseResponse(resp, &sess); err != nil {
				return err
			}
			return printData(c, &sess)
		},
	}
}

func sessionRenewCommand() *cli.Command {
	return &cli.Command{
		Name:      "renew",
		Usage:     "Extend a session's expiry",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "New time-to-live from now (default: server policy)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("session ID required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			req := renewSessionRequest{}
			if ttl := c.Duration("ttl"); ttl > 0 {
				req.TTLSeconds = int64(ttl.Seconds())
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/api/v1/sessions/"+c.Args().First()+"/renew", req)
			if err != nil {
				return err
			}

			var renewed renewSessionPayload
			if err := connection.ParseResponse(resp, &renewed); err != nil {
				return err
			}
			fmt.Printf("Session renewed, expires %s\n",
				renewed.NewExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func sessionRevokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke",
		Usage:     "Revoke a session",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("session ID required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/api/v1/sessions/"+c.Args().First()+"/revoke", nil)
			if err != nil {
				return err
			}
			if err := connection.ParseResponse(resp, nil); err != nil {
				return err
			}
			fmt.Printf("Session %s revoked\n", c.Args().First())
			return nil
		},
	}
}

func sessionRevokeAllCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke-all",
		Usage:     "Revoke all sessions for a user",
		ArgsUsage: "<user-id>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("user ID required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/api/v1/users/"+c.Args().First()+"/sessions/revoke", nil)
			if err != nil {
				return err
			}

			var result revokeSessionsPayload
			if err := connection.ParseResponse(resp, &result); err != nil {
				return err
			}
			fmt.Printf("Revoked %d sessions\n", result.RevokedCount)
			return nil
		},
	}
}

func sessionCtx(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, 30*time.Second)
}
