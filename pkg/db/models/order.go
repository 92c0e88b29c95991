package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// Order is a placed basket plus the customer's contact details.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FirstName string            `gorm:"column:first_name;not null"`
	LastName  string            `gorm:"column:last_name;not null"`
	Phone     string            `gorm:"column:phone;not null"`
	Email     string            `gorm:"column:email;not null;default:''"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'new'"`
	UserID    *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	Products  []OrderProduct    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// IsOwnedBy reports whether the order was placed by userID.
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	if o == nil || o.UserID == nil || userID == uuid.Nil {
		return false
	}
	return *o.UserID == userID
}
