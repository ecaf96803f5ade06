package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/deskgate/internal/config"
)

var migrationsDir string

func resolveMigrationsDir() string {
	if migrationsDir != "" {
		return migrationsDir
	}
	if v := os.Getenv("DESKGATE_MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "migrations"
}

func newMigrator() (*migrate.Migrate, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dsn := cfg.Database.PostgresDSN
	if dsn == "" {
		return nil, fmt.Errorf("DESKGATE_POSTGRES_DSN environment variable is not set")
	}
	m, err := migrate.New("file://"+resolveMigrationsDir(), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration management",
	}

	cmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "path to migrations directory (default: ./migrations)")

	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateVersionCmd())
	cmd.AddCommand(migrateForceCmd())

	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			m, err := newMigrator()
			if err != nil {
				slog.Error("migrate", "error", err)
				os.Exit(1)
			}
			defer m.Close()
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				slog.Error("migrate up failed", "error", err)
				os.Exit(1)
			}
			slog.Info("migrations applied")
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Run: func(cmd *cobra.Command, args []string) {
			m, err := newMigrator()
			if err != nil {
				slog.Error("migrate", "error", err)
				os.Exit(1)
			}
			defer m.Close()
			if err := m.Steps(-1); err != nil {
				slog.Error("migrate down failed", "error", err)
				os.Exit(1)
			}
			slog.Info("rolled back one migration")
		},
	}
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			m, err := newMigrator()
			if err != nil {
				slog.Error("migrate", "error", err)
				os.Exit(1)
			}
			defer m.Close()
			version, dirty, err := m.Version()
			if err != nil {
				slog.Error("migrate version failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("version: %d dirty: %v\n", version, dirty)
		},
	}
}

func migrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force-set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				slog.Error("invalid version", "arg", args[0])
				os.Exit(1)
			}
			m, err := newMigrator()
			if err != nil {
				slog.Error("migrate", "error", err)
				os.Exit(1)
			}
			defer m.Close()
			if err := m.Force(v); err != nil {
				slog.Error("migrate force failed", "error", err)
				os.Exit(1)
			}
			slog.Info("migration version forced", "version", v)
		},
	}
}
