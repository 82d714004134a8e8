package middleware

import (
	"net/http"

	"bob/gateway"
)

// Sanitizer rewrites error response bodies to generic text, leaving
// 2xx/3xx responses untouched, per spec §4.2.
//
// It buffers the response through the same responseRecorder
// ModSecurity uses (see modsecurity.go) rather than inspecting only the
// status next returns, so it can replace a body regardless of which
// layer wrote it: a relayed proxy or FastCGI response writes its
// upstream status and body straight to the ResponseWriter and returns
// (0, nil), and without buffering that body would reach the client
// unsanitized.
func Sanitizer() gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			rec := &responseRecorder{ResponseWriter: w}
			status, err := next.ServeHTTP(rec, r)

			effective := status
			if effective == 0 {
				effective = rec.status
			}
			if effective == 0 {
				effective = http.StatusOK
			}

			if effective >= 400 {
				gateway.DefaultErrorFunc(w, r, effective)
				return 0, err
			}
			flushed, _ := rec.flush(status)
			return flushed, err
		})
	}
}
