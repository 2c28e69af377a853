package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

type quantityBody struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	cases := map[string]struct {
		body string
		code pkgerrors.Code
	}{
		"missing field":  {`{}`, pkgerrors.CodeValidation},
		"unknown field":  {`{"quantity":1,"extra":true}`, pkgerrors.CodeValidation},
		"out of range":   {`{"quantity":5000}`, pkgerrors.CodeValidation},
		"empty body":     {``, pkgerrors.CodeValidation},
		"too large body": {`{"quantity":1,"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, pkgerrors.CodeTooLarge},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tc.body))
		var dest quantityBody
		err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
		if got := pkgerrors.CodeOf(err); got != tc.code {
			t.Fatalf("%s: expected %s, got %s (%v)", name, tc.code, got, err)
		}
	}

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":0}`))
	var dest quantityBody
	if err := DecodeJSONBody(httptest.NewRecorder(), req, &dest); err != nil {
		t.Fatalf("expected zero quantity accepted, got %v", err)
	}
	if dest.Quantity == nil || *dest.Quantity != 0 {
		t.Fatalf("unexpected quantity %v", dest.Quantity)
	}
}

func TestReadJSONBodyRequiresObject(t *testing.T) {
	for _, body := range []string{`[1,2]`, `{"a":`, `"x"`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if _, err := ReadJSONBody(httptest.NewRecorder(), req); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %s, got %v", body, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item":{"id":"a"}}`))
	doc, err := ReadJSONBody(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if doc.Get("item.id").String() != "a" {
		t.Fatalf("unexpected document %s", doc.Raw)
	}
}

func TestBearerToken(t *testing.T) {
	if _, present := BearerToken("  "); present {
		t.Fatal("expected absent header")
	}
	if tok, present := BearerToken("Bearer abc.def"); !present || tok != "abc.def" {
		t.Fatalf("unexpected token %q", tok)
	}
	if tok, present := BearerToken("bearer "); !present || tok != "" {
		t.Fatalf("expected present but empty token, got %q", tok)
	}
	if tok, _ := BearerToken("raw-token"); tok != "raw-token" {
		t.Fatalf("expected raw token passthrough, got %q", tok)
	}
}

func TestPathParam(t *testing.T) {
	if _, err := PathParam("%20%20", "id", 10); err == nil {
		t.Fatal("expected blank param rejected")
	}
	got, err := PathParam("gift%2Dcard", "code", 4)
	if err != nil || got != "gift" {
		t.Fatalf("unexpected param %q err=%v", got, err)
	}
}
