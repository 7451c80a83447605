package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/corvusHold/courier/migrations"
)

var migrateRunner = realMigrateRunner

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, roll back or inspect the database schema",
		ValidArgs: []string{"up", "down", "status"},
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return withCode(exitUsage, fmt.Errorf("missing migrate subcommand (up|down|status)"))
			}
			switch args[0] {
			case "up", "down", "status":
				return nil
			}
			return withCode(exitUsage, fmt.Errorf("unknown migrate subcommand: %s", args[0]))
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrateRunner(args[0], cfg.DatabaseURL); err != nil {
				return withCode(exitMigrate, fmt.Errorf("migrate %s failed: %w", args[0], err))
			}
			return nil
		},
	}
}

func realMigrateRunner(subcmd, databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	switch subcmd {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "status":
		return goose.Status(db, ".")
	default:
		return fmt.Errorf("unsupported migrate subcommand %q", subcmd)
	}
}
