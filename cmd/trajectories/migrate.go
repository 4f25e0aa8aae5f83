package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/trajectory.report/internal/db"
)

const migrateHelp = `Usage: trajectories migrate <action> -db FILE

Actions:
  up           apply all pending migrations
  down         roll back one migration
  status       show the current schema version
  version N    migrate up or down to version N
  help         show this message
`

// migrateAction runs one migrate action against store, reporting to out.
func migrateAction(out io.Writer, store *db.DB, args []string) error {
	switch action := args[0]; action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Fprintln(out, "all migrations applied")
		return printVersion(out, store)

	case "down":
		if err := store.MigrateDown(); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		fmt.Fprintln(out, "rolled back one migration")
		return printVersion(out, store)

	case "status":
		if err := printVersion(out, store); err != nil {
			return err
		}
		if _, dirty, _ := store.MigrateVersion(); dirty {
			fmt.Fprintln(out, "WARNING: a migration failed mid-execution; inspect the database before continuing")
		}
		return nil

	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: trajectories migrate version <version_number>")
		}
		target, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := store.MigrateTo(uint(target)); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", target, err)
		}
		fmt.Fprintf(out, "migrated to version %d\n", target)
		return nil

	case "help":
		fmt.Fprint(out, migrateHelp)
		return nil

	default:
		fmt.Fprint(out, migrateHelp)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(out io.Writer, store *db.DB) error {
	version, dirty, err := store.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "current version: %d (dirty: %v)\n", version, dirty)
	return nil
}
