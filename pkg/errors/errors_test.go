package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeTooLarge, status: http.StatusRequestEntityTooLarge, publicMsg: "payload too large"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "idempotency key conflict"},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "too many cart updates", retryable: true},
		{code: CodeStorage, status: http.StatusServiceUnavailable, publicMsg: "cart storage unavailable", retryable: true},
		{code: CodeUpstream, status: http.StatusBadGateway, publicMsg: "reward service unavailable", retryable: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing id")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing id" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "id"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("dial tcp: refused")
	wrapped := Wrap(CodeStorage, cause, "load snapshot")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeStorage || !IsRetryable(wrapped) {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if IsRetryable(New(CodeValidation, "nope")) {
		t.Fatalf("validation errors should not be retryable")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("save cart: %w", Wrap(CodeStorage, stdErrors.New("timeout"), "write snapshot"))
	if !stdErrors.Is(err, New(CodeStorage, "")) {
		t.Fatal("expected storage code to match")
	}
	if stdErrors.Is(err, New(CodeUpstream, "")) {
		t.Fatal("different code must not match")
	}
	if got := Newf(CodeNotFound, "line %d", 3).Error(); got != "NOT_FOUND: line 3" {
		t.Fatalf("unexpected message %q", got)
	}
	if CodeOf(nil) != CodeInternal {
		t.Fatal("nil error should classify as internal")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "no line"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("plain errors should map to internal")
	}
}

func TestDumpIncludesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_snapshots_pkey", TableName: "cart_snapshots", Message: "duplicate key"}
	d := Dump(Wrap(CodeStorage, pgErr, "save snapshot"))
	if d.Code != CodeStorage || d.Store == nil {
		t.Fatalf("unexpected dump %+v", d)
	}
	if d.Store.Backend != "postgres" || d.Store.Code != "23505" || d.Store.Table != "cart_snapshots" {
		t.Fatalf("unexpected store fault %+v", d.Store)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two links in chain, got %v", d.Chain)
	}
	fields := d.Fields()
	if fields["store_constraint"] != "cart_snapshots_pkey" {
		t.Fatalf("expected constraint in log fields, got %v", fields)
	}
}

func TestDumpFlagsDeadlineAndIgnoresMissingKeys(t *testing.T) {
	d := Dump(Wrap(CodeStorage, fmt.Errorf("load: %w", context.DeadlineExceeded), "load snapshot"))
	if !d.Deadline || d.Canceled {
		t.Fatalf("expected deadline flag only, got %+v", d)
	}
	if _, ok := d.Fields()["deadline_exceeded"]; !ok {
		t.Fatalf("expected deadline_exceeded field")
	}

	if miss := Dump(fmt.Errorf("get: %w", redis.Nil)); miss.Store != nil {
		t.Fatalf("redis.Nil is not a store fault: %+v", miss.Store)
	}
}
