package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/session"
)

type memoryIdempotencyStore map[string]string

func (m memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := m[key]; taken {
		return false, nil
	}
	m[key] = value.(string)
	return true, nil
}

func (m memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

// idemCall routes one POST to /basket/ through the middleware.
type idemCall struct {
	key  string
	body string
	ctx  func(context.Context) context.Context
}

func (c idemCall) send(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/basket/", strings.NewReader(c.body))
	if c.key != "" {
		req.Header.Set(idempotencyHeader, c.key)
	}
	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/basket/"}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if c.ctx != nil {
		ctx = c.ctx(ctx)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestRouteTTLSelection(t *testing.T) {
	covered := map[string]time.Duration{
		"POST /basket/":         criticalIdempotencyTTL,
		"POST /orders/create/":  defaultIdempotencyTTL,
		"POST /orders/{id}/add": defaultIdempotencyTTL,
		"POST /auth/register":   defaultIdempotencyTTL,
	}
	for route, want := range covered {
		method, pattern, _ := strings.Cut(route, " ")
		ttl, ok := routeTTL(method, pattern)
		assert.True(t, ok, route)
		assert.Equal(t, want, ttl, route)
	}

	for _, route := range []string{"GET /basket/", "POST /auth/login", "POST /orders/{id}/change/{item_id}"} {
		method, pattern, _ := strings.Cut(route, " ")
		_, ok := routeTTL(method, pattern)
		assert.False(t, ok, route)
	}
}

func TestIdempotencyWithoutKeyAlwaysRunsHandler(t *testing.T) {
	store := memoryIdempotencyStore{}
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusCreated, `{}`))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, idemCall{body: `{"first_name":"A"}`}.send(h).Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := memoryIdempotencyStore{}
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, http.StatusServiceUnavailable, `{}`))

	idemCall{key: "retry-me", body: `{}`}.send(h)
	idemCall{key: "retry-me", body: `{}`}.send(h)
	assert.Empty(t, store)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	var calls int
	h := Idempotency(memoryIdempotencyStore{}, nil)(countingHandler(&calls, http.StatusAccepted, `{"ok":true}`))
	call := idemCall{key: "abc", body: `{"foo":"bar"}`}

	first := call.send(h)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := call.send(h)
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.JSONEq(t, `{"ok":true}`, again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	var calls int
	h := Idempotency(memoryIdempotencyStore{}, nil)(countingHandler(&calls, http.StatusOK, `{}`))

	idemCall{key: "xyz", body: `{"foo":"bar"}`}.send(h)
	rec := idemCall{key: "xyz", body: `{"foo":"diff"}`}.send(h)

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeysAreScopedPerSession(t *testing.T) {
	var calls int
	h := Idempotency(memoryIdempotencyStore{}, nil)(countingHandler(&calls, http.StatusCreated, `{}`))
	asVisitor := func(sess *session.Session) func(context.Context) context.Context {
		return func(ctx context.Context) context.Context { return WithSession(ctx, sess) }
	}

	idemCall{key: "same", body: `{}`, ctx: asVisitor(session.New())}.send(h)
	rec := idemCall{key: "same", body: `{}`, ctx: asVisitor(session.New())}.send(h)

	assert.Empty(t, rec.Header().Get(replayedHeader))
	assert.Equal(t, 2, calls)
}
