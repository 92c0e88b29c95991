package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	FirstName    string             `json:"first_name"`
	LastName     string             `json:"last_name"`
	Capabilities []enums.Capability `json:"capabilities"`
	IsActive     bool               `json:"is_active"`
	LastLoginAt  *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Capabilities []enums.Capability
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	caps := make([]enums.Capability, 0, len(u.Capabilities))
	for _, raw := range u.Capabilities {
		if c, err := enums.ParseCapability(raw); err == nil {
			caps = append(caps, c)
		}
	}

	return &UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Capabilities: caps,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	caps := make(pq.StringArray, 0, len(c.Capabilities))
	for _, capability := range c.Capabilities {
		caps = append(caps, capability.String())
	}

	return &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		Capabilities: caps,
		IsActive:     true,
	}
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pqArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}
