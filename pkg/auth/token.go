// Package auth mints and verifies the HS256 access tokens handed out at login.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/config"
)

// clockSkew tolerates small drift between the API hosts.
const clockSkew = 5 * time.Second

var (
	signingMethod    = jwt.SigningMethodHS256
	errMissingSecret = errors.New("jwt secret is required")
)

func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", errMissingSecret
	}
	if cfg.Issuer == "" {
		return "", errors.New("jwt issuer is required")
	}
	if err := payload.validate(); err != nil {
		return "", err
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID:       payload.UserID,
		Capabilities: payload.Capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken accepts only HS256 tokens from the configured issuer that
// carry an expiry.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p AccessTokenPayload) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	for _, capability := range p.Capabilities {
		if !capability.IsValid() {
			return fmt.Errorf("invalid capability %q", capability)
		}
	}
	return nil
}
