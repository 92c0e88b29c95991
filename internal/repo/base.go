// Package repo holds the query helpers shared by the domain repositories.
package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront/pkg/pagination"
)

// Base is embedded by repositories that may be bound to a transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection scoped to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate adds a row lock on Postgres. sqlite has no row locks and runs
// with a single connection, so the query is returned unchanged there.
func ForUpdate(query *gorm.DB) *gorm.DB {
	if query.Dialector != nil && query.Dialector.Name() == "postgres" {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

// Sort names the keyset column. id is always the tiebreaker.
type Sort struct {
	Column string
	Desc   bool
}

// Seek is the (key, id) pair of the last row of the previous page.
type Seek struct {
	Key any
	ID  uuid.UUID
}

// Keyset orders query by sort, resumes after seek when set, and requests one
// extra row so the caller can tell whether another page exists.
func Keyset(query *gorm.DB, sort Sort, seek *Seek, limit int) *gorm.DB {
	op, dir := ">", "ASC"
	if sort.Desc {
		op, dir = "<", "DESC"
	}
	if seek != nil {
		cond := fmt.Sprintf("(%[1]s %[2]s ?) OR (%[1]s = ? AND id %[2]s ?)", sort.Column, op)
		query = query.Where(cond, seek.Key, seek.Key, seek.ID)
	}
	return query.
		Order(sort.Column + " " + dir).
		Order("id " + dir).
		Limit(pagination.LimitWithBuffer(limit))
}
