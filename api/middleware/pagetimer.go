package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/internal/pagetimer"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type dwellRecorder interface {
	ObservePageDwell(page string, dwell time.Duration)
}

// PageTimer charges the time since the previous request to the previous page
// and marks the current path. It runs before subject resolution so denied
// requests are still timed.
func PageTimer(recorder dwellRecorder, now func() time.Time, logg *logger.Logger) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			transition, err := pagetimer.OnRequestStart(sess, r.URL.Path, now())
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "pagetimer.update_failed")
				}
			} else if transition != nil && recorder != nil {
				recorder.ObservePageDwell(pageLabel(r, transition.Page), transition.Elapsed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// unroutedPage labels paths the router does not know, so stray URLs share
// one series.
const unroutedPage = "unrouted"

// pageLabel maps a visited path to its route pattern. The session keeps raw
// paths; metric labels must stay bounded.
func pageLabel(r *http.Request, path string) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return unroutedPage
	}
	// The marker does not record the method; pages are mostly GETs.
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		if pattern := rctx.Routes.Find(chi.NewRouteContext(), method, path); pattern != "" {
			return pattern
		}
	}
	return unroutedPage
}
