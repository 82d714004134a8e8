// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"bob/gateway"
)

// Timeout enforces a wall-clock bound on the inner handler's response
// completion, yielding 504 Gateway Timeout if it is exceeded, per spec
// §4.2. The inner handler writes into a buffer rather than directly to
// w, so a late write racing a timed-out response cannot corrupt it
// (the same technique net/http.TimeoutHandler uses in the standard
// library).
func Timeout(d time.Duration) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			if d <= 0 {
				return next.ServeHTTP(w, r)
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			r = r.WithContext(ctx)

			buf := &bufferedResponseWriter{header: make(http.Header)}

			type result struct {
				status int
				err    error
			}
			done := make(chan result, 1)
			go func() {
				status, err := next.ServeHTTP(buf, r)
				done <- result{status, err}
			}()

			select {
			case res := <-done:
				buf.flushTo(w)
				return res.status, res.err
			case <-ctx.Done():
				return http.StatusGatewayTimeout, ctx.Err()
			}
		})
	}
}

// bufferedResponseWriter collects a response so Timeout can discard it
// if the deadline has already passed by the time the inner handler
// finishes.
type bufferedResponseWriter struct {
	mu     sync.Mutex
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponseWriter) Header() http.Header {
	return b.header
}

func (b *bufferedResponseWriter) WriteHeader(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponseWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponseWriter) flushTo(w http.ResponseWriter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, vv := range b.header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if b.status != 0 {
		w.WriteHeader(b.status)
	}
	w.Write(b.body.Bytes())
}
