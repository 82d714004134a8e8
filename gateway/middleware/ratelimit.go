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
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bob/gateway"
	"bob/internal/obsmetrics"
)

// RateLimitConfig configures the per-key token-bucket limiter. A
// bucket refills at Limit events per Period and holds Burst tokens;
// this is the token-bucket equivalent of the sliding window spec §4.2
// describes.
type RateLimitConfig struct {
	ServerName string // for metrics labeling only
	Limit      int
	Period     time.Duration
	Burst      int
	// ByPath additionally keys the bucket by request path, not just the
	// effective peer.
	ByPath bool
	// FailOpen controls behavior when the backing store (here, the
	// in-process map) cannot be consulted; always true for the
	// in-memory store, kept as a field so a future shared store can
	// honor it.
	FailOpen bool
	// ExposeHeaders adds X-RateLimit-* response headers.
	ExposeHeaders bool
}

// RateLimit keys a sliding-window-equivalent token bucket by effective
// peer IP (optionally plus path), rejecting requests once a bucket is
// exhausted, per spec §4.2.
func RateLimit(cfg RateLimitConfig) gateway.Middleware {
	store := &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(cfg.Limit) / cfg.Period.Seconds()),
		burst:    cfg.Burst,
	}
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			key := peerIP(r)
			if cfg.ByPath {
				key += "|" + r.URL.Path
			}

			limiter := store.get(key)
			if cfg.ExposeHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			}

			if !limiter.Allow() {
				obsmetrics.RateLimitRejections.WithLabelValues(cfg.ServerName).Inc()
				if cfg.ExposeHeaders {
					w.Header().Set("X-RateLimit-Remaining", "0")
				}
				return http.StatusTooManyRequests, nil
			}
			if cfg.ExposeHeaders {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(limiter.Tokens(), 'f', 0, 64))
			}
			return next.ServeHTTP(w, r)
		})
	}
}

// limiterStore holds one rate.Limiter per key, created lazily. This is
// the in-process rate-limit store named in spec §5's shared-resources
// list.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	return l
}
