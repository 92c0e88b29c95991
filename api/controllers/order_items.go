package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// OrderItemForm serves the add form and, with {item_id}, the change form of a line.
func OrderItemForm(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := svc.ItemForm(r.Context(), middleware.SubjectFromContext(r.Context()), orderID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

func AddOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "id", "order")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subject := middleware.SubjectFromContext(ctx)
		if _, err := svc.ItemForm(ctx, subject, orderID, nil); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input orders.ItemInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := svc.AddItem(ctx, subject, orderID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func UpdateOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subject := middleware.SubjectFromContext(ctx)
		if _, err := svc.ItemForm(ctx, subject, orderID, itemID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input orders.ItemInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := svc.UpdateItem(ctx, subject, orderID, *itemID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func DeleteOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, itemID, err := itemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), middleware.SubjectFromContext(r.Context()), orderID, *itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// itemParams reads the order {id} and, when the route has one, the line {item_id}.
func itemParams(r *http.Request) (uuid.UUID, *uuid.UUID, error) {
	orderID, err := validators.ParseUUIDParam(r, "id", "order")
	if err != nil {
		return uuid.Nil, nil, err
	}
	if chi.URLParam(r, "item_id") == "" {
		return orderID, nil, nil
	}
	itemID, err := validators.ParseUUIDParam(r, "item_id", "order item")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return orderID, &itemID, nil
}
