package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront/pkg/config"
)

// DefaultDir is the on-disk migration root used by the create/validate commands.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// DialectDir returns the migration sub-directory for a configured DB driver.
func DialectDir(driver string) string {
	if driver == config.DBDriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

func dialectFor(driver string) goose.Dialect {
	if driver == config.DBDriverSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// NewProvider builds a goose provider over the embedded migrations for driver.
func NewProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, err := fs.Sub(embedded, "migrations/"+DialectDir(driver))
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialectFor(driver), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run executes a goose command (up, down, status, reset) and reports progress to out.
func Run(ctx context.Context, db *sql.DB, driver string, command string, out io.Writer) error {
	provider, err := NewProvider(db, driver)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		writeResults(out, results...)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		result, err := provider.Down(ctx)
		if result != nil {
			writeResults(out, result)
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case "reset":
		results, err := provider.DownTo(ctx, 0)
		writeResults(out, results...)
		if err != nil {
			return fmt.Errorf("goose reset: %w", err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %d %s\n", applied, st.Source.Version, st.Source.Path)
		}
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := NewProvider(db, driver)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if _, err := provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

func writeResults(out io.Writer, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%s %d %s (%s)\n", res.Direction, res.Source.Version, res.Source.Path, res.Duration)
	}
}
