package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/basket"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/orders"
	productsvc "github.com/angelmondragon/storefront/internal/products"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const basketActionAdd = "add"

// BasketChange adds or removes one occurrence of ?pk and redirects to ?next.
// Any action other than "add" removes; removing a malformed pk is a no-op since
// it cannot be in the basket.
func BasketChange(products productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := requireSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query := r.URL.Query()
		store := basket.New(sess)
		pk := strings.TrimSpace(query.Get("pk"))
		if strings.TrimSpace(query.Get("action")) == basketActionAdd {
			id, lookupErr := validators.ParseUUIDQuery(pk, "product")
			if lookupErr == nil {
				_, lookupErr = products.Get(ctx, id)
			}
			if lookupErr != nil {
				responses.WriteError(ctx, logg, w, lookupErr)
				return
			}
			err = store.Add(id)
		} else if id, parseErr := uuid.Parse(pk); parseErr == nil {
			err = store.Remove(id)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update basket"))
			return
		}
		http.Redirect(w, r, validators.SafeRedirect(query.Get("next")), http.StatusFound)
	}
}

// BasketPreview returns the basket lines with their totals. It never mutates the basket.
func BasketPreview(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// BasketCheckout turns the basket into an order using the posted customer details.
func BasketCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := requireSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input orders.CustomerInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.Checkout(ctx, sess, middleware.SubjectFromContext(ctx), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
