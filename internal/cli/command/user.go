package command

import (
	"fmt"
	"net/url"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/credgate/internal/cli/connection"
)

// UserCommand groups user directory administration subcommands. These
// hit the admin API and require an administrator session.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage directory accounts (admin)",
		Subcommands: []*cli.Command{
			userAddCommand(),
			userListCommand(),
			userGetCommand(),
			userStatusCommand(),
			userResetPasswordCommand(),
		},
	}
}

func userAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a new account",
		ArgsUsage: "<username>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "display-name",
				Usage: "Human-readable name",
			},
			&cli.StringFlag{
				Name:  "role",
				Usage: "Role: admin, operator, user",
				Value: "user",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Initial password (prompted if not given)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("username required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			password := c.String("password")
			if password == "" {
				password, err = promptPassword("Initial password: ")
				if err != nil {
					return err
				}
			}

			req := createUserRequest{
				Username:    c.Args().First(),
				Password:    password,
				DisplayName: c.String("display-name"),
				Role:        c.String("role"),
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/users", req)
			if err != nil {
				return err
			}

			var user userPayload
			if err := connection.ParseResponse(resp, &user); err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
}

func userListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "role",
				Usage: "Filter by role",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status: active, disabled",
			},
		},
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			q := url.Values{}
			if v := c.String("role"); v != "" {
				q.Set("role", v)
			}
			if v := c.String("status"); v != "" {
				q.Set("status", v)
			}
			path := "/admin/v1/users"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, path)
			if err != nil {
				return err
			}

			var list userListPayload
			if err := connection.ParseResponse(resp, &list); err != nil {
				return err
			}
			return printData(c, list.Users)
		},
	}
}

func userGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one account",
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

			resp, err := client.Get(ctx, "/admin/v1/users/"+c.Args().First())
			if err != nil {
				return err
			}

			var user userPayload
			if err := connection.ParseResponse(resp, &user); err != nil {
				return err
			}
			return printData(c, &user)
		},
	}
}

func userStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Enable or disable an account",
		ArgsUsage: "<user-id> <active|disabled>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("user ID and status required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			req := setUserStatusRequest{Status: c.Args().Get(1)}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/users/"+c.Args().First()+"/status", req)
			if err != nil {
				return err
			}

			var result setUserStatusPayload
			if err := connection.ParseResponse(resp, &result); err != nil {
				return err
			}
			fmt.Printf("User %s is now %s", result.User.Username, result.User.Status)
			if result.RevokedSessions > 0 {
				fmt.Printf(" (%d sessions revoked)", result.RevokedSessions)
			}
			fmt.Println()
			return nil
		},
	}
}

func userResetPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset-password",
		Usage:     "Set a new password for an account",
		ArgsUsage: "<user-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "password",
				Usage: "New password (prompted if not given)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("user ID required")
			}
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			password := c.String("password")
			if password == "" {
				password, err = promptPassword("New password: ")
				if err != nil {
					return err
				}
			}

			req := resetPasswordRequest{NewPassword: password}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/users/"+c.Args().First()+"/password/reset", req)
			if err != nil {
				return err
			}

			var result resetPasswordPayload
			if err := connection.ParseResponse(resp, &result); err != nil {
				return err
			}
			fmt.Printf("Password reset, %d sessions revoked\n", result.RevokedSessions)
			return nil
		},
	}
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(raw), nil
}
