package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bob/gateway"
	"bob/internal/obslog"
)

func init() {
	if _, err := obslog.Init(obslog.Config{Disable: true}); err != nil {
		panic(err)
	}
}

func TestLoggerPassesThroughStatusAndBody(t *testing.T) {
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
		return 0, nil
	})
	h := Logger(LoggerConfig{})(inner)

	r := httptest.NewRequest(http.MethodGet, "/brew", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if w.Code != http.StatusTeapot {
		t.Fatalf("recorder status = %d, want 418", w.Code)
	}
	if w.Body.String() != "short and stout" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestLoggerUsesEffectivePeerWhenConfigured(t *testing.T) {
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		if _, ok := EffectivePeer(r); !ok {
			t.Fatal("expected effective peer to be set on context")
		}
		return http.StatusOK, nil
	})
	h := Logger(LoggerConfig{UseIPWare: true})(inner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(r.Context(), effectivePeerKey{}, "203.0.113.9")
	r = r.WithContext(ctx)
	w := httptest.NewRecorder()
	if _, err := h.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
