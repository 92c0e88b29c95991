package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/session"
)

// SessionStore loads and persists visitor sessions.
type SessionStore interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
}

// Session loads the visitor session named by the session cookie and places it
// in the request context. A modified session is saved, and its cookie set,
// right before the first byte of the response is written.
func Session(store SessionStore, cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "sessionid"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookieName); err == nil {
				id = c.Value
			}
			sess, err := store.Load(r.Context(), id)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session"))
				return
			}

			ctx := WithSession(r.Context(), sess)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sess.ID())
			}
			sw := &sessionWriter{ResponseWriter: w, commit: func() {
				if !sess.Modified() && sess.PreviousID() == "" {
					return
				}
				if err := store.Save(ctx, sess); err != nil {
					if logg != nil {
						logg.Error(ctx, "session.save_failed", err)
					}
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sess.ID(),
					Path:     "/",
					Domain:   cfg.CookieDomain,
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}}

			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

type sessionWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (s *sessionWriter) flush() {
	if s.committed {
		return
	}
	s.committed = true
	s.commit()
}

func (s *sessionWriter) WriteHeader(code int) {
	s.flush()
	s.ResponseWriter.WriteHeader(code)
}

func (s *sessionWriter) Write(b []byte) (int, error) {
	s.flush()
	return s.ResponseWriter.Write(b)
}
