package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/authflow"
	"github.com/yndnr/credgate/internal/cli/connection"
	"github.com/yndnr/credgate/internal/cli/output"
	"github.com/yndnr/credgate/internal/cli/state"
)

// LoginCommand authenticates against the server and persists the
// resulting session for subsequent commands.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Authenticate and save a session",
		ArgsUsage: "[username]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Username (prompted if not given)",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password (prompted if not given; prefer the prompt)",
			},
			&cli.BoolFlag{
				Name:  "no-whoami",
				Usage: "Skip the post-login identity check",
			},
		},
		Action: runLogin,
	}
}

func runLogin(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	store := StateStore(c)
	if store == nil {
		return fmt.Errorf("session store not initialized")
	}

	username := c.String("username")
	if username == "" && c.Args().Len() > 0 {
		username = c.Args().First()
	}
	password := c.String("password")

	// Prompt for whatever was not passed on the command line.
	if username == "" || password == "" {
		creds, err := authflow.ReadCredentials(os.Stdin, os.Stderr, username)
		if err != nil {
			return err
		}
		if username == "" {
			username = creds.Username
		}
		if password == "" {
			password = creds.Password
		}
	}

	deviceID, err := store.DeviceID()
	if err != nil {
		return fmt.Errorf("device id: %w", err)
	}

	client := connection.NewHTTPClient(flags.Server, "", flags.Insecure)
	applyTrustRoots(c, client)

	var nav authflow.Navigator
	if !c.Bool("no-whoami") {
		nav = &dashboardNavigator{insecure: flags.Insecure}
	}

	flow, err := authflow.New(authflow.Config{
		Transport: client,
		Store:     store,
		Navigator: nav,
		Server:    flags.Server,
		DeviceID:  deviceID,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	// The spinner goes to stderr so piped stdout stays clean.
	spin := output.NewSpinner(os.Stderr, "Authenticating...")
	spin.Start()

	sess, err := flow.Submit(ctx, authflow.Credentials{
		Username: username,
		Password: password,
	})
	spin.Stop()
	if err != nil {
		if errors.Is(err, authflow.ErrLoginFailed) && flags.Verbose {
			// The generic message is deliberate; verbose mode reveals
			// the underlying cause for operators debugging connectivity.
			PrintError("%v (cause: %v)", err, flow.LastError())
			return cli.Exit("", 1)
		}
		return err
	}

	fmt.Printf("Logged in as %s (session saved to %s)\n", sess.User.Username, store.Path())
	return nil
}

// dashboardNavigator is the post-login hop: it confirms the fresh
// token works by fetching the caller's identity, standing in for the
// dashboard a browser client would land on.
type dashboardNavigator struct {
	insecure bool
}

func (n *dashboardNavigator) Navigate(ctx context.Context, sess *state.Session) error {
	client := connection.NewHTTPClient(sess.Server, sess.Token, n.insecure)

	resp, err := client.Get(ctx, "/api/v1/auth/whoami")
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}

	var who whoAmIPayload
	if err := connection.ParseResponse(resp, &who); err != nil {
		return fmt.Errorf("whoami: %w", err)
	}

	if who.Session != nil && !who.Session.ExpiresAt.IsZero() {
		fmt.Printf("Session %s expires %s\n",
			who.Session.ID, who.Session.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// LogoutCommand revokes the current session server-side and removes
// the local session file.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Revoke the current session and clear saved credentials",
		Action: func(c *cli.Context) error {
			store := StateStore(c)
			if store == nil {
				return fmt.Errorf("session store not initialized")
			}

			client, err := EnsureAuthed(c)
			if err != nil {
				// Nothing saved locally; nothing to do.
				fmt.Println("Not logged in.")
				return nil
			}

			ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
			defer cancel()

			resp, err := client.Post(ctx, "/api/v1/auth/logout", nil)
			if err != nil {
				// Server unreachable: still clear the local file so the
				// client forgets the credential.
				PrintError("server logout failed: %v", err)
			} else if err := connection.ParseResponse(resp, nil); err != nil {
				var apiErr *connection.APIError
				// An already-expired token is fine; the session is gone
				// either way.
				if !errors.As(err, &apiErr) || resp.StatusCode != http.StatusUnauthorized {
					PrintError("server logout failed: %v", err)
				}
			}

			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

// WhoAmICommand shows the identity and session behind the saved
// credential.
func WhoAmICommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current user and session",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
			defer cancel()

			resp, err := client.Get(ctx, "/api/v1/auth/whoami")
			if err != nil {
				return err
			}

			var who whoAmIPayload
			if err := connection.ParseResponse(resp, &who); err != nil {
				return err
			}
			return printData(c, &who)
		},
	}
}
