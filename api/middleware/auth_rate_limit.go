package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/api/responses"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// maxAuthBody bounds how much of a login/register body is buffered to find the email.
const maxAuthBody = 64 << 10

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one auth surface per client IP and per email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// counter is one fixed window checked for a request. value is what gets
// logged; emails are logged as their hash.
type counter struct {
	scope string
	limit int
	value string
}

// AuthRateLimit rejects a request with 429 once any of its counters exceeds
// the policy limit inside the current window.
func AuthRateLimit(policy AuthRateLimitPolicy, store windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			counters, err := policy.counters(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			for _, c := range counters {
				allowed, count, err := store.FixedWindowAllow(ctx, c.scope, int64(c.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					policy.reject(ctx, logg, w, c, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// counters lists the windows that apply to r. Reading the email rewinds the
// body so the handler can decode it again.
func (p AuthRateLimitPolicy) counters(r *http.Request) ([]counter, error) {
	var out []counter
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, counter{scope: "ip:" + p.name + ":" + ip, limit: p.ipLimit, value: ip})
	}
	if p.emailLimit <= 0 || r.Body == nil {
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if email := emailFromBody(body); email != "" {
		hash := hashValue(email)
		out = append(out, counter{scope: "email:" + p.name + ":" + hash, limit: p.emailLimit, value: hash})
	}
	return out, nil
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, c counter, count int64) {
	if logg != nil {
		kind, _, _ := strings.Cut(c.scope, ":")
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"scope":          kind,
			"subject":        c.value,
			"policy":         p.name,
			"attempts":       count,
			"limit":          c.limit,
			"window_seconds": int(p.window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(p.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop since the service runs
// behind a proxy.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
