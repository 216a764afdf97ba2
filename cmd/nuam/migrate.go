package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/nuam/internal/cli"
	"github.com/Veraticus/nuam/internal/config"
	"github.com/Veraticus/nuam/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures the database has all the tables, indexes and seeded
roles the application needs.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.Info("Starting database migration",
		"driver", cfg.Database.Driver,
		"status_only", status)

	store, err := storage.Open(cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if status {
		states, err := store.MigrationStatus(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(states))
		for _, st := range states {
			applied := "pending"
			if st.Applied {
				applied = "applied"
			}
			rows = append(rows, []string{strconv.FormatInt(st.Version, 10), st.Description, applied})
		}
		fmt.Println(cli.FormatTitle("Database Migration Status"))
		fmt.Println(cli.RenderTable([]string{"Version", "Description", "State"}, rows))
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Database migrations completed successfully"))
	return nil
}
