package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// stubOrders implements only what each test sets; anything else panics
// through the nil embedded interface.
type stubOrders struct {
	orders.Service
	deliver    func(permissions.Subject, uuid.UUID) (*orders.OrderDTO, error)
	cancel     func(permissions.Subject, uuid.UUID) (*orders.OrderDTO, error)
	updateForm func(permissions.Subject, uuid.UUID) (*orders.CustomerInput, error)
	updated    *orders.CustomerInput
}

func (s *stubOrders) Deliver(_ context.Context, subject permissions.Subject, id uuid.UUID) (*orders.OrderDTO, error) {
	return s.deliver(subject, id)
}

func (s *stubOrders) Cancel(_ context.Context, subject permissions.Subject, id uuid.UUID) (*orders.OrderDTO, error) {
	return s.cancel(subject, id)
}

func (s *stubOrders) UpdateForm(_ context.Context, subject permissions.Subject, id uuid.UUID) (*orders.CustomerInput, error) {
	return s.updateForm(subject, id)
}

func (s *stubOrders) Update(_ context.Context, _ permissions.Subject, id uuid.UUID, input orders.CustomerInput) (*orders.OrderDTO, error) {
	s.updated = &input
	return &orders.OrderDTO{ID: id, FirstName: input.FirstName, Status: enums.OrderStatusNew}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func routed(ctx context.Context, method, target, body string, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return envelope.Error.Code, envelope.Error.Message
}

func TestDeliverOrder(t *testing.T) {
	logg := testLogger()
	orderID := uuid.New()
	courier := permissions.NewSubject(uuid.New(), []string{string(enums.CapabilityDeliverOrder)})

	stub := &stubOrders{deliver: func(subject permissions.Subject, id uuid.UUID) (*orders.OrderDTO, error) {
		if !subject.Has(enums.CapabilityDeliverOrder) {
			return nil, pkgerrors.PermissionDenied(permissions.MsgDeliverOrder)
		}
		return &orders.OrderDTO{ID: id, Status: enums.OrderStatusDelivered}, nil
	}}
	serve := func(ctx context.Context, id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		DeliverOrder(stub, logg).ServeHTTP(rec, routed(ctx, http.MethodGet, "/orders/"+id+"/deliver/", "", map[string]string{"id": id}))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		rec := serve(middleware.WithSubject(context.Background(), courier), orderID.String())
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Data orders.OrderDTO `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Data.ID != orderID || body.Data.Status != enums.OrderStatusDelivered {
			t.Fatalf("unexpected order %+v", body.Data)
		}
	})

	t.Run("denied", func(t *testing.T) {
		rec := serve(context.Background(), orderID.String())
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if _, msg := errorBody(t, rec); msg != permissions.MsgDeliverOrder {
			t.Fatalf("unexpected message %q", msg)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := serve(middleware.WithSubject(context.Background(), courier), "17")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCancelOrderReportsStateConflict(t *testing.T) {
	stub := &stubOrders{cancel: func(permissions.Subject, uuid.UUID) (*orders.OrderDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only new orders can be cancelled")
	}}
	id := uuid.NewString()
	rec := httptest.NewRecorder()
	CancelOrder(stub, testLogger()).ServeHTTP(rec, routed(context.Background(), http.MethodGet, "/orders/"+id+"/cancel/", "", map[string]string{"id": id}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code, _ := errorBody(t, rec); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestUpdateOrderChecksPermissionBeforeBody(t *testing.T) {
	owner := uuid.New()
	stub := &stubOrders{updateForm: func(subject permissions.Subject, id uuid.UUID) (*orders.CustomerInput, error) {
		if subject.UserID == nil || *subject.UserID != owner {
			return nil, pkgerrors.PermissionDenied(permissions.MsgChangeOrder)
		}
		return &orders.CustomerInput{}, nil
	}}
	id := uuid.NewString()
	serve := func(subject permissions.Subject, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		ctx := middleware.WithSubject(context.Background(), subject)
		UpdateOrder(stub, testLogger()).ServeHTTP(rec, routed(ctx, http.MethodPost, "/orders/"+id+"/update/", body, map[string]string{"id": id}))
		return rec
	}

	rec := serve(permissions.Anonymous(), "{not json")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before the body is read, got %d", rec.Code)
	}
	if stub.updated != nil {
		t.Fatalf("update must not run for a denied subject")
	}

	rec = serve(permissions.NewSubject(owner, nil), `{"first_name":"Ada","last_name":"Lovelace","phone":"555"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.updated == nil || stub.updated.FirstName != "Ada" {
		t.Fatalf("expected decoded input to reach the service, got %+v", stub.updated)
	}
}
