package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// ListOrders returns every order for staff with view_order and only the
// caller's own orders otherwise.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), middleware.SubjectFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", "order")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), middleware.SubjectFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func NewOrderForm(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := svc.CreateForm(r.Context(), middleware.SubjectFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

// CreateOrder is the staff path for entering an order without a basket.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		subject := middleware.SubjectFromContext(ctx)
		if _, err := svc.CreateForm(ctx, subject); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input orders.CustomerInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.Create(ctx, subject, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func EditOrderForm(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", "order")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := svc.UpdateForm(r.Context(), middleware.SubjectFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

func UpdateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "id", "order")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subject := middleware.SubjectFromContext(ctx)
		if _, err := svc.UpdateForm(ctx, subject, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input orders.CustomerInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.Update(ctx, subject, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// DeliverOrder marks the order delivered whatever its current status.
func DeliverOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.Deliver, logg)
}

func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.Cancel, logg)
}

type transitionFunc func(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*orders.OrderDTO, error)

func transitionHandler(apply transitionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", "order")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := apply(r.Context(), middleware.SubjectFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
