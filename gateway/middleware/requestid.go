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
	"context"
	"net/http"

	"github.com/google/uuid"

	"bob/gateway"
)

type requestIDKey struct{}

// RequestID returns the correlation ID RequestID set on this request's
// context, if any.
func RequestID(r *http.Request) (string, bool) {
	v := r.Context().Value(requestIDKey{})
	id, ok := v.(string)
	return id, ok
}

// RequestIDConfig controls where an inbound ID may be read from.
type RequestIDConfig struct {
	// HeaderName, if set, is consulted for a caller-supplied ID before a
	// new one is generated.
	HeaderName string
}

// RequestIDMiddleware tags every request with a v4 UUID correlation ID,
// carried in context and echoed as X-Request-Id on the response, per
// spec §4.2.
func RequestIDMiddleware(cfg RequestIDConfig) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			id := ""
			if cfg.HeaderName != "" {
				if fromHeader := r.Header.Get(cfg.HeaderName); fromHeader != "" {
					if parsed, err := uuid.Parse(fromHeader); err == nil {
						id = parsed.String()
					}
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
			return next.ServeHTTP(w, r)
		})
	}
}
