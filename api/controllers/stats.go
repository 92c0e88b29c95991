package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/pagetimer"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// SessionStats reports the time the visitor spent on each page so far.
func SessionStats(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagetimer.Snapshot(sess))
	}
}
