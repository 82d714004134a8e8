// Copyright 2015 Matthew Holt and The Caddy Authors
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
	"net"
	"net/http"
	"strings"

	"bob/gateway"
)

type effectivePeerKey struct{}

// EffectivePeer returns the client address set by IpWare for this
// request, if any.
func EffectivePeer(r *http.Request) (string, bool) {
	v := r.Context().Value(effectivePeerKey{})
	ip, ok := v.(string)
	return ip, ok
}

// IpWareConfig configures the trusted-proxy real-IP extraction
// middleware.
type IpWareConfig struct {
	// TrustedHeaders lists header names to consult, in order, e.g.
	// "X-Forwarded-For".
	TrustedHeaders []string
	// TrustedProxies is a list of glob patterns matched against the
	// direct TCP peer; only requests arriving from a trusted proxy have
	// their headers honored.
	TrustedProxies []gateway.DomainMatcher
	// ProxyCount is how many proxy hops to skip from the right end of a
	// comma-separated X-Forwarded-For chain before taking the client IP.
	ProxyCount int
	// Strict rejects the request with 400 when the extracted value does
	// not parse as an IP address.
	Strict bool
}

// IpWare extracts the real client address from a trusted proxy's
// forwarding header and stores it for downstream consumers (IpFilter,
// RateLimit, Logger), per spec §4.2.
func IpWare(cfg IpWareConfig) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			peer, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				peer = r.RemoteAddr
			}

			effective := peer
			if peerTrusted(peer, cfg.TrustedProxies) {
				for _, header := range cfg.TrustedHeaders {
					if v := r.Header.Get(header); v != "" {
						ip, ok := extractClientIP(v, cfg.ProxyCount)
						if ok {
							effective = ip
						} else if cfg.Strict {
							return http.StatusBadRequest, nil
						}
						break
					}
				}
			}

			if cfg.Strict && net.ParseIP(effective) == nil {
				return http.StatusBadRequest, nil
			}

			ctx := context.WithValue(r.Context(), effectivePeerKey{}, effective)
			return next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func peerTrusted(peer string, trusted []gateway.DomainMatcher) bool {
	if len(trusted) == 0 {
		return true
	}
	for _, m := range trusted {
		if m.Match(peer) {
			return true
		}
	}
	return false
}

// extractClientIP picks the client address out of a comma-separated
// X-Forwarded-For-style chain, skipping proxyCount trusted hops from
// the rightmost (most recently appended) entry.
func extractClientIP(header string, proxyCount int) (string, bool) {
	parts := strings.Split(header, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	idx := len(parts) - 1 - proxyCount
	if idx < 0 {
		idx = 0
	}
	if idx >= len(parts) {
		return "", false
	}
	candidate := parts[idx]
	if net.ParseIP(candidate) == nil {
		return candidate, false
	}
	return candidate, true
}
