package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/permissions"
	pkgAuth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/auth/tokens"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/session"
)

// SessionResolver maps a session to the user bound to it.
type SessionResolver interface {
	SessionSubject(ctx context.Context, kv session.KV) (permissions.Subject, error)
}

// Subject resolves who is making the request: the bearer token when one is
// sent, else the user bound to the session, else an anonymous visitor. A
// bearer token that does not verify or was revoked is rejected with 401.
func Subject(cfg config.JWTConfig, checker tokens.ActiveChecker, resolver SessionResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := permissions.Anonymous()

			token, present, err := validators.BearerToken(r.Header.Get("Authorization"))
			switch {
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			case present:
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				if claims.ID == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token"))
					return
				}
				if checker != nil {
					ok, err := checker.IsActive(ctx, claims.ID)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate token"))
						return
					}
					if !ok {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked"))
						return
					}
				}
				caps := make([]string, len(claims.Capabilities))
				for i, c := range claims.Capabilities {
					caps[i] = c.String()
				}
				subject = permissions.NewSubject(claims.UserID, caps)
				ctx = context.WithValue(ctx, ctxAccessID, claims.ID)
			default:
				if sess := SessionFromContext(ctx); sess != nil && resolver != nil {
					resolved, err := resolver.SessionSubject(ctx, sess)
					if err != nil {
						responses.WriteError(ctx, logg, w, err)
						return
					}
					subject = resolved
				}
			}

			ctx = WithSubject(ctx, subject)
			if logg != nil && subject.IsAuthenticated() {
				ctx = logg.WithUserID(ctx, subject.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
