package testkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMustPanic(t *testing.T) {
	t.Parallel()

	MustPanic(t, func() {
		panic("boom")
	})
}

func TestMustNotPanic(t *testing.T) {
	t.Parallel()

	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	t.Parallel()

	MustContain(t, "created=1 updated=2 skipped=0", "updated=2")
}

func TestDecodeBodyAndWriteJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(`{"parent":{"database_id":"db"}}`))
	body := DecodeBody(t, req)
	parent, _ := body["parent"].(map[string]any)
	if parent["database_id"] != "db" {
		t.Fatalf("decoded body mismatch: %#v", body)
	}

	empty := DecodeBody(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(empty) != 0 {
		t.Fatalf("empty body should decode to empty map, got %#v", empty)
	}

	rec := httptest.NewRecorder()
	WriteJSON(t, rec, http.StatusCreated, map[string]string{"id": "page-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	MustContain(t, rec.Body.String(), `"id":"page-1"`)
}
