package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/db/dbtest"
)

type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	CreatedAt time.Time
}

func seed(t *testing.T, conn *gorm.DB, rows ...row) {
	t.Helper()
	require.NoError(t, conn.AutoMigrate(&row{}))
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}
}

func names(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestBaseDBBindsContext(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	assert.Equal(t, ctx, base.DB(ctx).Statement.Context)
	assert.Same(t, conn, base.DB(nil))
}

func TestKeysetAscendingResumesAfterTies(t *testing.T) {
	conn := dbtest.Open(t)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	seed(t, conn,
		row{ID: high, Name: "bread"},
		row{ID: low, Name: "bread"},
		row{ID: uuid.New(), Name: "cake"},
		row{ID: uuid.New(), Name: "apple"},
	)

	var first []row
	require.NoError(t, Keyset(conn.Model(&row{}), Sort{Column: "name"}, nil, 2).Find(&first).Error)
	assert.Equal(t, []string{"apple", "bread", "bread"}, names(first), "limit+1 rows are requested")

	var next []row
	seek := &Seek{Key: "bread", ID: low}
	require.NoError(t, Keyset(conn.Model(&row{}), Sort{Column: "name"}, seek, 2).Find(&next).Error)
	assert.Equal(t, []string{"bread", "cake"}, names(next))
	assert.Equal(t, high, next[0].ID)
}

func TestKeysetDescending(t *testing.T) {
	conn := dbtest.Open(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newest := uuid.New()
	seed(t, conn,
		row{ID: uuid.New(), Name: "old", CreatedAt: base},
		row{ID: uuid.New(), Name: "mid", CreatedAt: base.Add(time.Hour)},
		row{ID: newest, Name: "new", CreatedAt: base.Add(2 * time.Hour)},
	)

	var rows []row
	seek := &Seek{Key: base.Add(2 * time.Hour), ID: newest}
	sort := Sort{Column: "created_at", Desc: true}
	require.NoError(t, Keyset(conn.Model(&row{}), sort, seek, 5).Find(&rows).Error)
	assert.Equal(t, []string{"mid", "old"}, names(rows))
}

func TestForUpdateLeavesSQLiteQueryAlone(t *testing.T) {
	conn := dbtest.Open(t)
	query := conn.Model(&row{})
	assert.Same(t, query, ForUpdate(query))
}
