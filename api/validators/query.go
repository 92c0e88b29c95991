package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(pkgerrors.FieldErrors{key: "must be numeric"})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(pkgerrors.FieldErrors{key: "out of range"})
	}
	return value, nil
}

// ParsePagination reads limit and cursor from the query string.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

// ParseUUIDParam reads a path parameter. Malformed ids never match a record,
// so they are reported as not found.
func ParseUUIDParam(r *http.Request, name, resource string) (uuid.UUID, error) {
	return ParseUUIDQuery(chi.URLParam(r, name), resource)
}

// ParseUUIDQuery parses a raw id taken from the query string.
func ParseUUIDQuery(raw, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, resource+" not found")
	}
	return id, nil
}
