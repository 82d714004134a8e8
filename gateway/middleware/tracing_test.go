package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bob/gateway"
)

func TestTracingWrapsRequestAndPreservesStatus(t *testing.T) {
	mw, err := Tracing(TracingConfig{
		SpanName:     "test-span",
		Attributes:   map[string]string{"env": "test"},
		OTLPEndpoint: "127.0.0.1:4318",
		Insecure:     true,
	})
	if err != nil {
		t.Fatalf("Tracing: %v", err)
	}

	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		if _, ok := r.Context().Deadline(); ok {
			t.Fatal("unexpected deadline on request context")
		}
		return http.StatusTeapot, nil
	})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodGet, "/brew", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", status, http.StatusTeapot)
	}
}

func TestTracingDefaultsSpanNameWhenUnset(t *testing.T) {
	mw, err := Tracing(TracingConfig{OTLPEndpoint: "127.0.0.1:4318", Insecure: true})
	if err != nil {
		t.Fatalf("Tracing: %v", err)
	}

	called := false
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		called = true
		return http.StatusOK, nil
	})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	if _, err := h.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("inner handler was never invoked")
	}
}
