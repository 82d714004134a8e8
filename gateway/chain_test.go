package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChainEmptyReturnsZeroAfterWritingNotFound(t *testing.T) {
	c := &Chain{}
	c.Compile()
	w := httptest.NewRecorder()
	status, err := c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0 (response already written)", status)
	}
	if w.Code != http.StatusNotFound {
		t.Fatalf("recorder status = %d, want 404", w.Code)
	}
}

func TestChainExhaustedLinksReturnsZeroAfterWritingNotFound(t *testing.T) {
	c := &Chain{
		Links: []*Link{
			{Handler: handlerReturning(http.StatusNotFound)},
		},
	}
	c.Compile()
	w := httptest.NewRecorder()
	status, err := c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0 (response already written)", status)
	}
	if w.Code != http.StatusNotFound {
		t.Fatalf("recorder status = %d, want 404", w.Code)
	}
}

func TestChainFallsThroughToSecondLink(t *testing.T) {
	c := &Chain{
		Links: []*Link{
			{Handler: handlerReturning(http.StatusNotFound)},
			{Handler: HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("second"))
				return 0, nil
			})},
		},
	}
	c.Compile()
	w := httptest.NewRecorder()
	status, err := c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if w.Body.String() != "second" {
		t.Fatalf("body = %q, want %q", w.Body.String(), "second")
	}
}

func TestChainReplaysBodyAcrossLinks(t *testing.T) {
	var firstSaw, secondSaw string
	c := &Chain{
		Links: []*Link{
			{Handler: HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
				b, _ := io.ReadAll(r.Body)
				firstSaw = string(b)
				return http.StatusNotFound, nil
			})},
			{Handler: HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
				b, _ := io.ReadAll(r.Body)
				secondSaw = string(b)
				w.WriteHeader(http.StatusOK)
				return 0, nil
			})},
		},
	}
	c.Compile()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))
	w := httptest.NewRecorder()
	if _, err := c.ServeHTTP(w, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firstSaw != "payload" || secondSaw != "payload" {
		t.Fatalf("first saw %q, second saw %q, want both %q", firstSaw, secondSaw, "payload")
	}
}

func TestChainMatchesPathStripsPrefix(t *testing.T) {
	c := &Chain{Prefix: "api"}
	sub, ok := c.MatchesPath("/api/widgets")
	if !ok || sub != "/widgets" {
		t.Fatalf("MatchesPath = (%q, %v), want (/widgets, true)", sub, ok)
	}
	if _, ok := c.MatchesPath("/apiextra"); ok {
		t.Fatal("prefix should not match a partial segment")
	}
	if _, ok := c.MatchesPath("/other"); ok {
		t.Fatal("non-matching path should not match")
	}
}

func TestChainNormalizedPrefixRoot(t *testing.T) {
	c := &Chain{}
	if got := c.NormalizedPrefix(); got != "/" {
		t.Fatalf("NormalizedPrefix() = %q, want %q", got, "/")
	}
}
