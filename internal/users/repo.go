package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
)

// Repository persists accounts. Lookups return gorm.ErrRecordNotFound when
// nothing matches.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches on the normalized address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.setColumn(ctx, id, "last_login_at", at)
}

// UpdatePasswordHash stores a hash produced with the current argon cost.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.setColumn(ctx, id, "password_hash", hash)
}

// SetCapabilities replaces the whole capability list.
func (r *Repository) SetCapabilities(ctx context.Context, id uuid.UUID, caps []string) error {
	return r.setColumn(ctx, id, "capabilities", pqArray(caps))
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// setColumn skips hooks and updated_at so bookkeeping writes stay invisible.
func (r *Repository) setColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, value).Error
}
