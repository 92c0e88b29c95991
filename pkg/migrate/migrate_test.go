package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/config"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:migrate_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestRunUpCreatesStorefrontTables(t *testing.T) {
	sqlDB := openSQLite(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Run(ctx, sqlDB, config.DBDriverSQLite, "up", &out))
	require.Contains(t, out.String(), "create_orders_tables")

	for _, table := range []string{"users", "products", "orders", "order_products", "outbox_events"} {
		var name string
		err := sqlDB.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	out.Reset()
	require.NoError(t, Run(ctx, sqlDB, config.DBDriverSQLite, "status", &out))
	require.NotContains(t, out.String(), "pending")
}

func TestMigrateToVersionDown(t *testing.T) {
	sqlDB := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, sqlDB, config.DBDriverSQLite, "up", nil))
	require.NoError(t, MigrateToVersion(ctx, sqlDB, config.DBDriverSQLite, "20250301120100"))

	var count int
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='orders'").Scan(&count))
	require.Equal(t, 0, count)

	require.Error(t, MigrateToVersion(ctx, sqlDB, config.DBDriverSQLite, "not-a-version"))
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	sqlDB := openSQLite(t)
	require.Error(t, Run(context.Background(), sqlDB, config.DBDriverSQLite, "explode", nil))
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateDirDetectsDialectDrift(t *testing.T) {
	root := t.TempDir()
	_, err := CreateSQLMigration(root, "Add Widgets", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, ValidateDir(root))

	extra := filepath.Join(root, "postgres", "20250502100000_only_postgres.sql")
	require.NoError(t, os.WriteFile(extra, []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	err = ValidateDir(root)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "differ"))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	root := t.TempDir()
	paths, err := CreateSQLMigration(root, "  Add Order Notes!! ", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, "20250501100000_add_order_notes.sql", filepath.Base(paths[0]))

	_, err = CreateSQLMigration(root, "!!!", time.Now())
	require.Error(t, err)
}
