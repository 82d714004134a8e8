package fastcgi

import (
	"net"
	"net/http"
	"net/http/fcgi"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startFCGIResponder runs a stdlib FastCGI responder on a loopback
// listener, mirroring how php-fpm would be reached over TCP.
func startFCGIResponder(t *testing.T, h http.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go fcgi.Serve(ln, h)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestHandlerServeHTTP(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.php"), []byte("unused"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	var gotMethod string
	addr := startFCGIResponder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("from upstream"))
	}))

	h, err := NewHandler("tcp://"+addr, dir, []string{"index.php"})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	h.ReadTimeout = 2 * time.Second
	h.SendTimeout = 2 * time.Second

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/index.php", nil)

	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("expected status 0, got %d", status)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "from upstream" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("expected GET forwarded, got %q", gotMethod)
	}
}

func TestHandlerRejectsNonGetHead(t *testing.T) {
	h := &Handler{Root: t.TempDir(), pool: NewPool("tcp", "127.0.0.1:1")}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/x.php", nil)

	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 fall-through for POST, got %d", status)
	}
}

func TestParseConnectAddr(t *testing.T) {
	cases := []struct {
		in, network, address string
	}{
		{"tcp://127.0.0.1:9000", "tcp", "127.0.0.1:9000"},
		{"unix:///var/run/php.sock", "unix", "/var/run/php.sock"},
	}
	for _, c := range cases {
		network, address, err := parseConnectAddr(c.in)
		if err != nil {
			t.Fatalf("parseConnectAddr(%q): %v", c.in, err)
		}
		if network != c.network || address != c.address {
			t.Fatalf("parseConnectAddr(%q) = (%q, %q), want (%q, %q)", c.in, network, address, c.network, c.address)
		}
	}
}
