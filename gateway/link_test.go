package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func handlerReturning(status int) Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
		return status, nil
	})
}

func TestLinkDefaultFallThroughOnNotFound(t *testing.T) {
	l := &Link{Handler: handlerReturning(http.StatusNotFound)}
	status, fallThrough, err := l.Evaluate(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if !fallThrough {
		t.Fatal("expected default NextOn to fall through on 404")
	}
}

func TestLinkDoesNotFallThroughOnSuccess(t *testing.T) {
	l := &Link{Handler: handlerReturning(http.StatusOK)}
	status, fallThrough, err := l.Evaluate(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if fallThrough {
		t.Fatal("200 should never fall through")
	}
}

func TestLinkCustomNextOn(t *testing.T) {
	l := &Link{
		Handler: handlerReturning(http.StatusServiceUnavailable),
		NextOn:  map[int]bool{http.StatusServiceUnavailable: true},
	}
	_, fallThrough, err := l.Evaluate(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fallThrough {
		t.Fatal("expected custom NextOn to trigger fall-through on 503")
	}
}

func TestLinkAppliesMiddlewareOutermostFirst(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
				order = append(order, name)
				return next.ServeHTTP(w, r)
			})
		}
	}
	l := &Link{
		Handler:    handlerReturning(http.StatusOK),
		Middleware: []Middleware{mark("outer"), mark("inner")},
	}
	l.Compile()
	if _, _, err := l.Evaluate(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("middleware order = %v, want [outer inner]", order)
	}
}
