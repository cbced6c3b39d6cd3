package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewjhunter/dossier"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance and cloud sync",
	}
	cmd.AddCommand(dbUploadCmd())
	cmd.AddCommand(dbDownloadCmd())
	cmd.AddCommand(dbStatsCmd())
	cmd.AddCommand(dbBackupCmd())
	cmd.AddCommand(dbOptimizeCmd())
	return cmd
}

func dbUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload the database file to the object store now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				res, err := engine.SyncNow(ctx)
				if outErr := formatter.OutputSyncResult("upload", res); outErr != nil {
					return outErr
				}
				return err
			})
		},
	}
}

func dbDownloadCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Replace the local database with the copy in the object store",
		Long: "Downloads the remote database file and atomically replaces the local one.\n" +
			"Stop any running server first. Without --force an existing local\n" +
			"database is left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfg.Database.Path); err == nil && !force {
				return fmt.Errorf("database already exists at %s (use --force to replace it)", cfg.Database.Path)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := dossier.DownloadDatabase(ctx, dossier.EngineConfig{Config: cfg, Logger: log}); err != nil {
				return err
			}
			fmt.Printf("Restored database to %s\n", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing local database")
	return cmd
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table counts, file sizes and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				stats, err := engine.Stats(ctx)
				if err != nil {
					return err
				}
				return formatter.OutputStats(stats)
			})
		},
	}
}

func dbBackupCmd() *cobra.Command {
	var (
		dir    string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent snapshot of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				res, err := engine.Backup(ctx, dir, upload)
				if res != nil {
					if outErr := formatter.OutputBackup(res); outErr != nil {
						return outErr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "backup directory (default: <database dir>/backups)")
	cmd.Flags().BoolVar(&upload, "upload", false, "also store the snapshot in the object store")
	return cmd
}

func dbOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Refresh planner statistics, merge the search index and vacuum",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				if err := engine.Optimize(ctx); err != nil {
					return err
				}
				stats, err := engine.Stats(ctx)
				if err != nil {
					return err
				}
				return formatter.OutputStats(stats)
			})
		},
	}
}
