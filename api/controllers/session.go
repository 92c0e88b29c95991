package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/session"
)

func requireSession(r *http.Request) (*session.Session, error) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session not loaded")
	}
	return sess, nil
}
