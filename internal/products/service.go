package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 2000
)

// maxPrice is the largest value a numeric(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// Service exposes catalogue reads and privileged product management.
type Service interface {
	ListInStock(ctx context.Context, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Form(ctx context.Context, subject permissions.Subject, id *uuid.UUID) (*ProductInput, error)
	Create(ctx context.Context, subject permissions.Subject, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, subject permissions.Subject, id uuid.UUID, input ProductInput) (*ProductDTO, error)
	SoftDelete(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*ProductDTO, error)
}

type productRepository interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListInStock(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	Save(ctx context.Context, p *models.Product) error
	SetInStock(ctx context.Context, id uuid.UUID, inStock bool) error
}

type service struct {
	repo productRepository
}

// NewService constructs a product service instance.
func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListInStock(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Validation("invalid cursor", pkgerrors.FieldErrors{"cursor": err.Error()})
	}
	rows, err := s.repo.ListInStock(ctx, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	page := pagination.Trim(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{Key: p.Name, ID: p.ID}
	})
	out := &ListResult{Products: make([]ProductDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Products = append(out.Products, *FromModel(&page.Items[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(p), nil
}

// Form returns the values a create (id nil) or update form starts from.
func (s *service) Form(ctx context.Context, subject permissions.Subject, id *uuid.UUID) (*ProductInput, error) {
	if id == nil {
		if err := permissions.Check(subject, permissions.ActionAddProduct, nil); err != nil {
			return nil, err
		}
		return &ProductInput{Price: decimal.Zero}, nil
	}
	if err := permissions.Check(subject, permissions.ActionChangeProduct, nil); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, *id)
	if err != nil {
		return nil, err
	}
	form := FormFromModel(p)
	return &form, nil
}

func (s *service) Create(ctx context.Context, subject permissions.Subject, input ProductInput) (*ProductDTO, error) {
	if err := permissions.Check(subject, permissions.ActionAddProduct, nil); err != nil {
		return nil, err
	}
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	p := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		InStock:     true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return FromModel(p), nil
}

func (s *service) Update(ctx context.Context, subject permissions.Subject, id uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := permissions.Check(subject, permissions.ActionChangeProduct, nil); err != nil {
		return nil, err
	}
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = input.Name
	p.Description = input.Description
	p.Price = input.Price
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return FromModel(p), nil
}

// SoftDelete clears the stock flag; the row stays retrievable by id.
func (s *service) SoftDelete(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*ProductDTO, error) {
	if err := permissions.Check(subject, permissions.ActionDeleteProduct, nil); err != nil {
		return nil, err
	}
	if err := s.repo.SetInStock(ctx, id, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return s.Get(ctx, id)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return p, nil
}

func normalizeInput(input ProductInput) (ProductInput, error) {
	fields := pkgerrors.FieldErrors{}

	input.Name = strings.TrimSpace(input.Name)
	switch {
	case input.Name == "":
		fields["name"] = "this field is required"
	case utf8.RuneCountInString(input.Name) > maxNameLen:
		fields["name"] = fmt.Sprintf("ensure this value has at most %d characters", maxNameLen)
	}

	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc == "" {
			input.Description = nil
		} else if utf8.RuneCountInString(desc) > maxDescriptionLen {
			fields["description"] = fmt.Sprintf("ensure this value has at most %d characters", maxDescriptionLen)
		} else {
			input.Description = &desc
		}
	}

	switch {
	case !input.Price.IsPositive():
		fields["price"] = "price must be greater than zero"
	case input.Price.Exponent() < -2 && !input.Price.Equal(input.Price.Round(2)):
		fields["price"] = "ensure there are no more than 2 decimal places"
	case input.Price.GreaterThan(maxPrice):
		fields["price"] = "ensure this value is less than or equal to 99999999.99"
	}

	if len(fields) > 0 {
		return input, pkgerrors.Validation("invalid product", fields)
	}
	input.Price = input.Price.Round(2)
	return input, nil
}
