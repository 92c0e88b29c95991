package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/internal/users"
	pkgAuth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/security"
	"github.com/angelmondragon/storefront/pkg/session"
	"github.com/angelmondragon/storefront/pkg/validation"
)

const invalidCredentialsMessage = "invalid credentials"

// SessionUserKey holds the signed-in user id inside the visitor session.
const SessionUserKey = "_auth_user_id"

// Session is the part of the visitor session the auth flow mutates.
type Session interface {
	session.KV
	CycleID()
	Flush()
}

// Service defines the behavior needed by the auth controller and middleware.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Login(ctx context.Context, sess Session, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sess Session, accessID string) error
	SessionSubject(ctx context.Context, kv session.KV) (permissions.Subject, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type tokenRegistry interface {
	Register(ctx context.Context, accessID, userID string) error
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	Tokens         tokenRegistry
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	users       userRepository
	tokens      tokenRegistry
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token registry is required")
	}
	return &service{
		users:       params.UserRepo,
		tokens:      params.Tokens,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates a customer account without capabilities.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	req.Email = users.NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	fields := pkgerrors.FieldErrors{}
	if err := validation.Struct(req); err != nil {
		if details, ok := pkgerrors.As(err).Details().(pkgerrors.FieldErrors); ok {
			fields = details
		}
	}
	if _, bad := fields["password"]; !bad {
		if err := security.CheckStrength(req.Password); err != nil {
			fields["password"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("validation failed", fields)
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return users.FromModel(user), nil
}

// Login verifies the credentials, binds the user to the session under a new
// session id and issues a bearer token. The basket survives the rotation.
func (s *service) Login(ctx context.Context, sess Session, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.maybeRehash(ctx, user, req.Password)

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	dto := users.FromModel(user)
	accessID := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:       user.ID,
		Capabilities: dto.Capabilities,
		JTI:          accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.tokens.Register(ctx, accessID, user.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register access token")
	}

	if sess != nil {
		sess.CycleID()
		if err := sess.Set(SessionUserKey, user.ID.String()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bind session")
		}
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtCfg.Expiration().Seconds()),
		User:        dto,
	}, nil
}

// Logout flushes the session and revokes the bearer token when one was used.
func (s *service) Logout(ctx context.Context, sess Session, accessID string) error {
	if sess != nil {
		sess.Flush()
	}
	if strings.TrimSpace(accessID) == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke access token")
	}
	return nil
}

// SessionSubject resolves the user bound to the session. A stale binding to a
// missing or inactive user is dropped and the visitor becomes anonymous.
func (s *service) SessionSubject(ctx context.Context, kv session.KV) (permissions.Subject, error) {
	var raw string
	ok, err := kv.Get(SessionUserKey, &raw)
	if err != nil || !ok {
		if err != nil {
			kv.Delete(SessionUserKey)
		}
		return permissions.Anonymous(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		kv.Delete(SessionUserKey)
		return permissions.Anonymous(), nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			kv.Delete(SessionUserKey)
			return permissions.Anonymous(), nil
		}
		return permissions.Anonymous(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session user")
	}
	if !user.IsActive {
		kv.Delete(SessionUserKey)
		return permissions.Anonymous(), nil
	}
	return permissions.NewSubject(user.ID, user.Capabilities), nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// maybeRehash upgrades hashes made with older argon parameters. Failure is
// logged and never blocks the login.
func (s *service) maybeRehash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", user.ID.String()), "password rehash failed")
		}
		return
	}
	user.PasswordHash = hash
}

var _ userRepository = (*users.Repository)(nil)
