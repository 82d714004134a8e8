package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bob/gateway"
)

func okHandler(t *testing.T) gateway.Handler {
	return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		return http.StatusOK, nil
	})
}

func TestIpFilterAllowListRejectsNonMembers(t *testing.T) {
	h := IpFilter(IpFilterConfig{Allow: []gateway.DomainMatcher{"10.0.0.*"}})(okHandler(t))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:1234"
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestIpFilterAllowListAdmitsMembers(t *testing.T) {
	h := IpFilter(IpFilterConfig{Allow: []gateway.DomainMatcher{"10.0.0.*"}})(okHandler(t))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
}

func TestIpFilterDenyListWins(t *testing.T) {
	h := IpFilter(IpFilterConfig{Deny: []gateway.DomainMatcher{"10.0.0.5"}})(okHandler(t))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestIpFilterEmptyAllowMeansAllowAll(t *testing.T) {
	h := IpFilter(IpFilterConfig{})(okHandler(t))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
}
