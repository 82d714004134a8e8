package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVirtualServerAssembleRequiresListener(t *testing.T) {
	v := &VirtualServer{Chains: []*Chain{{}}}
	if err := v.Assemble(nil); err == nil {
		t.Fatal("expected an error when no listeners are configured")
	}
}

func TestVirtualServerAssembleRequiresChainsUnlessDisabled(t *testing.T) {
	v := &VirtualServer{Listen: []ListenerBinding{{Host: "0.0.0.0", Port: "8080"}}}
	if err := v.Assemble(nil); err == nil {
		t.Fatal("expected an error when no chains are configured and server is enabled")
	}

	v2 := &VirtualServer{
		Listen:   []ListenerBinding{{Host: "0.0.0.0", Port: "8080"}},
		Disabled: true,
	}
	if err := v2.Assemble(nil); err != nil {
		t.Fatalf("disabled server with no chains should assemble cleanly: %v", err)
	}
}

func TestVirtualServerDispatchesToMatchingChain(t *testing.T) {
	v := &VirtualServer{
		Listen: []ListenerBinding{{Host: "0.0.0.0", Port: "8080"}},
		Chains: []*Chain{
			{
				Prefix: "api",
				Links: []*Link{
					{Handler: HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
						w.WriteHeader(http.StatusOK)
						w.Write([]byte(r.URL.Path))
						return 0, nil
					})},
				},
			},
		},
	}
	if err := v.Assemble(nil); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	w := httptest.NewRecorder()
	status, err := v.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if w.Body.String() != "/widgets" {
		t.Fatalf("body = %q, want %q (prefix should be stripped)", w.Body.String(), "/widgets")
	}
}

func TestVirtualServerFallsBackToNotFoundWithoutDoubleWrite(t *testing.T) {
	v := &VirtualServer{
		Listen: []ListenerBinding{{Host: "0.0.0.0", Port: "8080"}},
		Chains: []*Chain{{Prefix: "only-here", Links: []*Link{{Handler: handlerReturning(http.StatusOK)}}}},
	}
	if err := v.Assemble(nil); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	w := httptest.NewRecorder()
	status, err := v.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0 (already written by dispatchChains)", status)
	}
	if w.Code != http.StatusNotFound {
		t.Fatalf("recorder status = %d, want 404", w.Code)
	}
}

func TestVirtualServerMatchesServerName(t *testing.T) {
	v := &VirtualServer{}
	if !v.MatchesServerName("anything.example.com") {
		t.Fatal("empty ServerName should match any host")
	}

	v2 := &VirtualServer{ServerName: []DomainMatcher{"*.example.com"}}
	if !v2.MatchesServerName("api.example.com") {
		t.Fatal("expected wildcard match")
	}
	if v2.MatchesServerName("example.org") {
		t.Fatal("unexpected match against unrelated host")
	}
}
