package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/validation"
)

// CustomerInput holds the contact details captured on an order.
type CustomerInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,max=20"`
	Email     string `json:"email" validate:"omitempty,max=254,email"`
}

// Normalize trims surrounding whitespace from every field.
func (c CustomerInput) Normalize() CustomerInput {
	return CustomerInput{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Phone:     strings.TrimSpace(c.Phone),
		Email:     strings.TrimSpace(c.Email),
	}
}

// ValidateCustomer normalizes input and reports field errors.
func ValidateCustomer(input CustomerInput) (CustomerInput, error) {
	input = input.Normalize()
	if err := validation.Struct(input); err != nil {
		return input, err
	}
	return input, nil
}

func customerFromModel(o *models.Order) CustomerInput {
	return CustomerInput{FirstName: o.FirstName, LastName: o.LastName, Phone: o.Phone, Email: o.Email}
}

// ItemInput is the editable part of an order line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Amount    int       `json:"amount" validate:"min=1"`
}

// OrderItemDTO is one line of an order.
type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Amount      int             `json:"amount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the order shape returned to clients.
type OrderDTO struct {
	ID        uuid.UUID         `json:"id"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Email     string            `json:"email"`
	Status    enums.OrderStatus `json:"status"`
	UserID    *uuid.UUID        `json:"user_id,omitempty"`
	Items     []OrderItemDTO    `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ItemFromModel converts a line. The product association may be absent.
func ItemFromModel(item *models.OrderProduct) OrderItemDTO {
	dto := OrderItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Amount:    item.Amount,
		Price:     decimal.Zero,
		LineTotal: decimal.Zero,
	}
	if item.Product != nil {
		dto.ProductName = item.Product.Name
		dto.Price = item.Product.Price.Round(2)
		dto.LineTotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Amount))).Round(2)
	}
	return dto
}

// FromModel converts an order with its lines.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:        o.ID,
		FirstName: o.FirstName,
		LastName:  o.LastName,
		Phone:     o.Phone,
		Email:     o.Email,
		Status:    o.Status,
		UserID:    o.UserID,
		Items:     make([]OrderItemDTO, 0, len(o.Products)),
		Total:     decimal.Zero,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for i := range o.Products {
		item := ItemFromModel(&o.Products[i])
		dto.Items = append(dto.Items, item)
		dto.Total = dto.Total.Add(item.LineTotal)
	}
	return dto
}

// ListResult is one page of orders, newest first.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
