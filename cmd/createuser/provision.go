package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/users"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/security"
)

type userStore interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetCapabilities(ctx context.Context, id uuid.UUID, caps []string) error
}

type staffAccount struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Capabilities []enums.Capability
}

// provision creates the account, or replaces the capabilities of an existing
// account with the same email. The password of an existing account is kept.
func provision(ctx context.Context, store userStore, passwordCfg config.PasswordConfig, account staffAccount) (*users.UserDTO, bool, error) {
	email := users.NormalizeEmail(account.Email)
	if email == "" {
		return nil, false, errors.New("email is required")
	}

	existing, err := store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := store.SetCapabilities(ctx, existing.ID, capabilityStrings(account.Capabilities)); err != nil {
			return nil, false, fmt.Errorf("update capabilities: %w", err)
		}
		existing.Capabilities = capabilityStrings(account.Capabilities)
		return users.FromModel(existing), false, nil
	case !db.IsNotFound(err):
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	if err := security.CheckStrength(account.Password); err != nil {
		return nil, false, fmt.Errorf("password: %w", err)
	}
	hash, err := security.HashPassword(account.Password, passwordCfg)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	user, err := store.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		Capabilities: account.Capabilities,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return users.FromModel(user), true, nil
}

func capabilityStrings(caps []enums.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.String()
	}
	return out
}
