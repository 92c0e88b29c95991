package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

// Repository persists catalogue products.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// Create inserts p.
func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.DB(ctx).Create(p).Error
}

// FindByID loads a product regardless of stock state.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByIDs loads every product in ids, keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// ListInStock returns up to limit+1 in-stock products ordered by name then id,
// starting after cursor.
func (r *Repository) ListInStock(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	var seek *repo.Seek
	if cursor != nil {
		seek = &repo.Seek{Key: cursor.Key, ID: cursor.ID}
	}
	var rows []models.Product
	query := r.DB(ctx).Where("in_stock = ?", true)
	err := repo.Keyset(query, repo.Sort{Column: "name"}, seek, limit).Find(&rows).Error
	return rows, err
}

// Save writes the editable columns of p.
func (r *Repository) Save(ctx context.Context, p *models.Product) error {
	return r.DB(ctx).Model(p).Select("name", "description", "price", "updated_at").Updates(p).Error
}

// SetInStock flips the stock flag without touching other columns.
func (r *Repository) SetInStock(ctx context.Context, id uuid.UUID, inStock bool) error {
	res := r.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Update("in_stock", inStock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
