package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

// Repository persists orders and their line items.
type Repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// Create inserts an order without its lines.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusNew
	}
	return r.DB(ctx).Omit(clause.Associations).Create(order).Error
}

// CreateItem inserts one line.
func (r *Repository) CreateItem(ctx context.Context, item *models.OrderProduct) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.DB(ctx).Omit(clause.Associations).Create(item).Error
}

// FindByID loads an order with its lines and their products.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Products.Product").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate loads an order without lines, locking the row on Postgres.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := repo.ForUpdate(r.DB(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns up to limit+1 orders newest first. A nil owner lists every order.
func (r *Repository) List(ctx context.Context, owner *uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.DB(ctx).Model(&models.Order{}).Preload("Products.Product")
	if owner != nil {
		query = query.Where("user_id = ?", *owner)
	}
	var seek *repo.Seek
	if cursor != nil {
		at, err := cursor.Time()
		if err != nil {
			return nil, err
		}
		seek = &repo.Seek{Key: at, ID: cursor.ID}
	}
	var rows []models.Order
	err := repo.Keyset(query, repo.Sort{Column: "created_at", Desc: true}, seek, limit).Find(&rows).Error
	return rows, err
}

// UpdateCustomer writes the contact columns.
func (r *Repository) UpdateCustomer(ctx context.Context, id uuid.UUID, input CustomerInput) error {
	return r.DB(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"phone":      input.Phone,
		"email":      input.Email,
	}).Error
}

// UpdateStatus sets the status column.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.DB(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error
}

// FindItem loads a line that belongs to orderID.
func (r *Repository) FindItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderProduct, error) {
	var item models.OrderProduct
	err := r.DB(ctx).
		Preload("Product").
		Where("order_id = ?", orderID).
		First(&item, "id = ?", itemID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem writes product and amount of a line.
func (r *Repository) UpdateItem(ctx context.Context, item *models.OrderProduct) error {
	return r.DB(ctx).Model(&models.OrderProduct{}).Where("id = ?", item.ID).Updates(map[string]any{
		"product_id": item.ProductID,
		"amount":     item.Amount,
	}).Error
}

// DeleteItem removes a line from orderID.
func (r *Repository) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	res := r.DB(ctx).Where("order_id = ? AND id = ?", orderID, itemID).Delete(&models.OrderProduct{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ProductExists reports whether a product row with id exists, in stock or not.
func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
