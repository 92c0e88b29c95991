package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	// status, retryable, details allowed
	want := map[Code][3]any{
		CodeValidation:    {http.StatusBadRequest, false, true},
		CodeUnauthorized:  {http.StatusUnauthorized, false, false},
		CodeForbidden:     {http.StatusForbidden, false, false},
		CodeNotFound:      {http.StatusNotFound, false, false},
		CodeConflict:      {http.StatusConflict, false, false},
		CodeStateConflict: {http.StatusConflict, false, true},
		CodeIdempotency:   {http.StatusConflict, false, true},
		CodeRateLimit:     {http.StatusTooManyRequests, false, false},
		CodeInternal:      {http.StatusInternalServerError, true, false},
		CodeDependency:    {http.StatusServiceUnavailable, true, false},
	}
	for code, w := range want {
		meta := MetadataFor(code)
		got := [3]any{meta.HTTPStatus, meta.Retryable, meta.DetailsAllowed}
		if got != w {
			t.Fatalf("%s: got %v want %v", code, got, w)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("%s: missing public message", code)
		}
	}
	if MetadataFor(CodeForbidden).PublicMessage != "access denied" {
		t.Fatalf("unexpected forbidden message %q", MetadataFor(CodeForbidden).PublicMessage)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	if got := MetadataFor("SOMETHING_UNKNOWN"); got != MetadataFor(CodeInternal) {
		t.Fatalf("expected internal metadata, got %+v", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestNonFieldCarriesReservedKey(t *testing.T) {
	err := NonField("basket empty")
	if err.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", err.Code())
	}
	fields, ok := err.Details().(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors details, got %T", err.Details())
	}
	if fields[NonFieldKey] != "basket empty" {
		t.Fatalf("unexpected non-field message %q", fields[NonFieldKey])
	}
}

func TestPermissionDeniedKeepsMessage(t *testing.T) {
	err := PermissionDenied("you do not have permission to deliver orders")
	if !IsCode(err, CodeForbidden) {
		t.Fatalf("expected forbidden code")
	}
	if err.Message() != "you do not have permission to deliver orders" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if IsCode(stdErrors.New("plain"), CodeNotFound) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpIncludesPostgresFields(t *testing.T) {
	pgErr := &pq.Error{Code: "23505", Constraint: "users_email_key", Table: "users", Message: "duplicate key"}
	err := Wrap(CodeConflict, pgErr, "create user")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "users_email_key" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %v", dump.Chain)
	}
}
