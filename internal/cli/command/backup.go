package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/connection"
	"github.com/yndnr/credgate/internal/cli/output"
)

// BackupCommand groups storage snapshot subcommands.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage storage snapshots (admin)",
		Subcommands: []*cli.Command{
			backupCreateCommand(),
			backupListCommand(),
		},
	}
}

func backupCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a snapshot of the session store",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			spinner := output.NewSpinner(os.Stderr, "Creating snapshot...")
			spinner.Start()

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Post(ctx, "/admin/v1/backups/snapshots", nil)
			if err != nil {
				spinner.Fail("snapshot failed")
				return err
			}

			var snap snapshotPayload
			if err := connection.ParseResponse(resp, &snap); err != nil {
				spinner.Fail("snapshot failed")
				return err
			}

			spinner.Success(fmt.Sprintf("Snapshot %s created (%d sessions, %s)",
				snap.ID, snap.SessionCount, output.FormatBytes(snap.SizeBytes)))
			return nil
		},
	}
}

func backupListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List snapshots",
		Action: func(c *cli.Context) error {
			client, err := EnsureAuthed(c)
			if err != nil {
				return err
			}

			ctx, cancel := sessionCtx(c)
			defer cancel()

			resp, err := client.Get(ctx, "/admin/v1/backups/snapshots")
			if err != nil {
				return err
			}

			var list snapshotListPayload
			if err := connection.ParseResponse(resp, &list); err != nil {
				return err
			}
			return printData(c, list.Snapshots)
		},
	}
}
