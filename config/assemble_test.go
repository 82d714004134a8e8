package config

import (
	"net/http/httptest"
	"testing"

	"bob/gateway/middleware"
)

// TestAssembleOrdersServerWideWrappersOutsideUserMiddleware exercises
// spec §4.6 steps 4-5-6: a server's own middleware[] is wrapped first,
// then sanitizer, then logger -- so the logger ends up outermost and
// the sanitizer sits outside every user-configured middleware and the
// chain itself. A server-level mod_security middleware sits between the sanitizer and a
// static handler that writes a 500 directly (as Proxy/FastCGI do for
// upstream errors); if the sanitizer were nested inside user
// middleware instead of wrapping it, this body would reach the client
// unsanitized.
func TestAssembleOrdersServerWideWrappersOutsideUserMiddleware(t *testing.T) {
	sc := ServerConfig{
		Listen:   []ListenConfig{{Host: "127.0.0.1", Port: "0"}},
		Sanitize: true,
		Middleware: []MiddlewareConfig{
			{Type: "mod_security", Engine: "test"},
		},
		Chains: []ChainConfig{
			{
				Links: []LinkConfig{
					{Handler: HandlerConfig{Type: "static", Status: 500, Body: "boom"}},
				},
			},
		},
	}

	engines := Engines{"test": middleware.NoopEngine{}}
	servers, err := Assemble([]ServerConfig{sc}, engines)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("len(servers) = %d, want 1", len(servers))
	}

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	if _, err := servers[0].ServeHTTP(w, r); err != nil {
		t.Fatalf("ServeHTTP: %v", err)
	}

	if w.Code != 500 {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); body == "boom" {
		t.Fatalf("body was relayed unsanitized past the user middleware: %q", body)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header: request-id middleware must run outermost of all")
	}
}
