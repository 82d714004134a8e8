package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bob/gateway"
)

type fakeEngine struct {
	blockReq   bool
	blockResp  bool
	sawReqBody []byte
	sawStatus  int
	sawRespBody []byte
}

func (f *fakeEngine) ScanRequest(r *http.Request, body []byte) (*Intervention, error) {
	f.sawReqBody = body
	if f.blockReq {
		return &Intervention{Block: true, Status: http.StatusForbidden}, nil
	}
	return nil, nil
}

func (f *fakeEngine) ScanResponse(status int, header http.Header, body []byte) (*Intervention, error) {
	f.sawStatus = status
	f.sawRespBody = body
	if f.blockResp {
		return &Intervention{Block: true, Status: http.StatusForbidden}, nil
	}
	return nil, nil
}

func TestModSecurityAllowsCleanRoundTrip(t *testing.T) {
	eng := &fakeEngine{}
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "hello" {
			t.Fatalf("inner handler saw body %q, want %q", body, "hello")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("world"))
		return 0, nil
	})

	mw := ModSecurity(ModSecurityConfig{Engine: eng, RequestBodyCap: 1024, ResponseBodyCap: 1024})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0 (already written)", status)
	}
	if w.Body.String() != "world" {
		t.Fatalf("response body = %q, want %q", w.Body.String(), "world")
	}
	if string(eng.sawReqBody) != "hello" {
		t.Fatalf("engine saw request body %q, want %q", eng.sawReqBody, "hello")
	}
	if string(eng.sawRespBody) != "world" {
		t.Fatalf("engine saw response body %q, want %q", eng.sawRespBody, "world")
	}
	if eng.sawStatus != http.StatusOK {
		t.Fatalf("engine saw status %d, want 200", eng.sawStatus)
	}
}

func TestModSecurityBlocksOnRequestIntervention(t *testing.T) {
	eng := &fakeEngine{blockReq: true}
	calledInner := false
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		calledInner = true
		return 0, nil
	})

	mw := ModSecurity(ModSecurityConfig{Engine: eng, RequestBodyCap: 1024, ResponseBodyCap: 1024})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodGet, "/evil", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
	if calledInner {
		t.Fatal("inner handler should not have been called")
	}
}

func TestModSecurityBlocksOnResponseIntervention(t *testing.T) {
	eng := &fakeEngine{blockResp: true}
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("leaked secret"))
		return 0, nil
	})

	mw := ModSecurity(ModSecurityConfig{Engine: eng, RequestBodyCap: 1024, ResponseBodyCap: 1024})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
	if strings.Contains(w.Body.String(), "leaked secret") {
		t.Fatal("blocked response body leaked to client")
	}
}

func TestModSecurityResponseOverflow(t *testing.T) {
	eng := &fakeEngine{}
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0123456789"))
		return 0, nil
	})

	mw := ModSecurity(ModSecurityConfig{Engine: eng, RequestBodyCap: 1024, ResponseBodyCap: 4})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusInsufficientStorage {
		t.Fatalf("status = %d, want 507", status)
	}
}

func TestModSecurityRequestOverflow(t *testing.T) {
	eng := &fakeEngine{}
	inner := gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		t.Fatal("inner handler should not run when request overflows")
		return 0, nil
	})

	mw := ModSecurity(ModSecurityConfig{Engine: eng, RequestBodyCap: 4, ResponseBodyCap: 1024})
	h := mw(inner)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way too much body"))
	w := httptest.NewRecorder()
	status, err := h.ServeHTTP(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", status)
	}
}
