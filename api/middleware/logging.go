package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront/pkg/logger"
)

// Logging writes one line per request once the inner chain has returned.
// 5xx responses log at warn so they stand out from routine traffic.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			ctx := r.Context()
			if requestInfoFrom(ctx) == nil {
				ctx = withRequestInfo(ctx, &requestInfo{})
			}
			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.statusCode(),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rec.bytes > 0 {
				fields["bytes"] = rec.bytes
			}
			logCtx := logg.WithFields(ctx, fields)
			if info := requestInfoFrom(ctx); info.userID != "" {
				logCtx = logg.WithUserID(logCtx, info.userID)
			}
			if rec.statusCode() >= http.StatusInternalServerError {
				logg.Warn(logCtx, "request.failed")
				return
			}
			logg.Info(logCtx, "request.complete")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) statusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
