package cli

import (
	"flag"
	"fmt"
	"io"
	"io/fs"

	"github.com/sitebooks/sitebooks/internal/platform/db"
)

// MigrateCommand implements `sitebooks migrate <up|down|version>` over the
// embedded schema migrations.
type MigrateCommand struct {
	Migrations fs.FS
	DSN        string
	Stdout     io.Writer
	Stderr     io.Writer
}

const migrateUsage = `usage: sitebooks migrate <command>

commands:
  up              apply every pending migration
  down [-steps N] revert the last N migrations (default 1)
  version         print the applied schema version`

// Run executes the subcommand and returns the process exit code.
func (c MigrateCommand) Run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.Stderr, migrateUsage)
		return 2
	}
	switch args[0] {
	case "up":
		if err := db.Migrate(c.Migrations, c.DSN); err != nil {
			fmt.Fprintf(c.Stderr, "migrate up: %v\n", err)
			return 1
		}
		fmt.Fprintln(c.Stdout, "migrations applied")
	case "down":
		flags := flag.NewFlagSet("migrate down", flag.ContinueOnError)
		flags.SetOutput(c.Stderr)
		steps := flags.Int("steps", 1, "number of migrations to revert")
		if err := flags.Parse(args[1:]); err != nil {
			return 2
		}
		if *steps <= 0 {
			fmt.Fprintf(c.Stderr, "steps must be positive, got %d\n", *steps)
			return 2
		}
		if err := db.Rollback(c.Migrations, c.DSN, *steps); err != nil {
			fmt.Fprintf(c.Stderr, "migrate down: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.Stdout, "reverted %d migration(s)\n", *steps)
	case "version":
		version, dirty, err := db.Version(c.Migrations, c.DSN)
		if err != nil {
			fmt.Fprintf(c.Stderr, "migrate version: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.Stdout, "version=%d dirty=%t\n", version, dirty)
	default:
		fmt.Fprintf(c.Stderr, "unknown migrate command %q\n%s\n", args[0], migrateUsage)
		return 2
	}
	return 0
}
