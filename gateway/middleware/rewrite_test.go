package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"bob/gateway"
)

func TestRewriteSubstitutesCaptureGroups(t *testing.T) {
	var gotPath string
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		gotPath = r.URL.Path
		return http.StatusOK, nil
	})
	cfg := RewriteConfig{
		Rules: []RewriteRule{
			{Match: regexp.MustCompile(`^/old/(.+)$`), To: "/new/$1"},
		},
	}
	h := Rewrite(cfg)(inner)

	r := httptest.NewRequest(http.MethodGet, "/old/thing", nil)
	w := httptest.NewRecorder()
	if _, err := h.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/new/thing" {
		t.Fatalf("path = %q, want %q", gotPath, "/new/thing")
	}
}

func TestRewriteStatusShortCircuitsWithoutCallingInner(t *testing.T) {
	called := false
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		called = true
		return http.StatusOK, nil
	})
	cfg := RewriteConfig{
		Rules: []RewriteRule{
			{Match: regexp.MustCompile(`^/gone$`), Status: http.StatusGone},
		},
	}
	h := Rewrite(cfg)(inner)

	r := httptest.NewRequest(http.MethodGet, "/gone", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0 (already written)", status)
	}
	if w.Code != http.StatusGone {
		t.Fatalf("recorder status = %d, want 410", w.Code)
	}
	if called {
		t.Fatal("inner handler should not run after a Status short-circuit")
	}
}

func TestRewriteChainsAcrossRounds(t *testing.T) {
	var gotPath string
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		gotPath = r.URL.Path
		return http.StatusOK, nil
	})
	cfg := RewriteConfig{
		Rules: []RewriteRule{
			{Match: regexp.MustCompile(`^/a$`), To: "/b"},
			{Match: regexp.MustCompile(`^/b$`), To: "/c"},
		},
		MaxRounds: 10,
	}
	h := Rewrite(cfg)(inner)

	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	w := httptest.NewRecorder()
	if _, err := h.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/c" {
		t.Fatalf("path = %q, want %q (rule output should feed the next round)", gotPath, "/c")
	}
}

func TestRewriteHeadersAppliedBeforeForwarding(t *testing.T) {
	var gotHeader string
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		gotHeader = r.Header.Get("X-Rewritten")
		return http.StatusOK, nil
	})
	cfg := RewriteConfig{
		Rules: []RewriteRule{
			{Match: regexp.MustCompile(`^/$`), SetHeaders: map[string]string{"X-Rewritten": "yes"}},
		},
	}
	h := Rewrite(cfg)(inner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	if _, err := h.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHeader != "yes" {
		t.Fatalf("header = %q, want %q", gotHeader, "yes")
	}
}
