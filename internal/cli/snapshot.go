package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/internal/config"
	"github.com/hupe1980/vecspace/snapshot"
)

// newSnapshotCommand creates the snapshot command with subcommands
func newSnapshotCommand() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage snapshots",
		Long: `Manage the snapshots of the configured snapshot backend.

The server must not be running against the same change log while these
commands run.`,
	}

	snapshotCmd.AddCommand(newSnapshotSaveCommand())
	snapshotCmd.AddCommand(newSnapshotListCommand())
	snapshotCmd.AddCommand(newSnapshotPruneCommand())

	return snapshotCmd
}

func newSnapshotSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Fold the change log into a new snapshot",
		Long: `Restore the latest snapshot, replay the change log on top of it and save
the result as a new snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadOffline()
			if err != nil {
				return err
			}
			m, err := saveSnapshot(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s saved: %d namespaces, %d records\n", m.ID, len(m.Namespaces), m.TotalRecords())
			return nil
		},
	}
}

func saveSnapshot(ctx context.Context, cfg *config.Config, logger *vecspace.Logger) (m *snapshot.Manifest, err error) {
	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, d.close(ctx, false)) }()

	if err := d.start(ctx); err != nil {
		return nil, err
	}
	return d.snapshot(ctx)
}

func newSnapshotListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadOffline()
			if err != nil {
				return err
			}
			return listSnapshots(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func listSnapshots(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, err := openSnapshotStore(ctx, cfg.Snapshot)
	if err != nil {
		return err
	}
	if store == nil {
		return errSnapshotsDisabled
	}

	ids, err := snapshot.List(ctx, store)
	if err != nil {
		return err
	}
	var current string
	if m, err := snapshot.LoadManifest(ctx, store); err == nil {
		current = m.ID
	} else if !errors.Is(err, snapshot.ErrNotFound) {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAMESPACES\tRECORDS\tLSN\t")
	for _, id := range ids {
		m, err := snapshot.LoadManifestByID(ctx, store, id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", id, err)
			continue
		}
		mark := ""
		if id == current {
			mark = "current"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			id, m.CreatedAt.Format(time.RFC3339), len(m.Namespaces), m.TotalRecords(), m.LSN, mark)
	}
	return tw.Flush()
}

func newSnapshotPruneCommand() *cobra.Command {
	var keep int

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Example: `  # Keep the three newest snapshots
  vecspaced snapshot prune --keep 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadOffline()
			if err != nil {
				return err
			}
			store, err := openSnapshotStore(cmd.Context(), cfg.Snapshot)
			if err != nil {
				return err
			}
			if store == nil {
				return errSnapshotsDisabled
			}
			removed, err := snapshot.Prune(cmd.Context(), store, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d snapshots removed\n", removed)
			return nil
		},
	}

	pruneCmd.Flags().IntVarP(&keep, "keep", "k", 3, "number of snapshots to keep")

	return pruneCmd
}

func loadOffline() (*config.Config, *vecspace.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
