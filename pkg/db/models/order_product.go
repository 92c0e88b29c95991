package models

import (
	"github.com/google/uuid"
)

// OrderProduct is one line of an order. Several lines may reference the same product.
type OrderProduct struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Amount    int       `gorm:"column:amount;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
}
