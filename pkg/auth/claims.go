package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Capabilities []enums.Capability
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to API clients.
type AccessTokenClaims struct {
	UserID       uuid.UUID          `json:"user_id"`
	Capabilities []enums.Capability `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}
