package middleware

import (
	"net"
	"net/http"

	"bob/gateway"
)

// IpFilterConfig is an allow-list then deny-list of IP globs evaluated
// against the effective peer, per spec §4.2.
type IpFilterConfig struct {
	Allow []gateway.DomainMatcher // empty means "allow all"
	Deny  []gateway.DomainMatcher
}

// IpFilter rejects requests whose effective peer fails the allow-list
// or matches the deny-list, in that order.
func IpFilter(cfg IpFilterConfig) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			ip := peerIP(r)

			if len(cfg.Allow) > 0 && !matchesAny(cfg.Allow, ip) {
				return http.StatusForbidden, nil
			}
			if matchesAny(cfg.Deny, ip) {
				return http.StatusForbidden, nil
			}
			return next.ServeHTTP(w, r)
		})
	}
}

func peerIP(r *http.Request) string {
	if ip, ok := EffectivePeer(r); ok {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func matchesAny(globs []gateway.DomainMatcher, ip string) bool {
	for _, g := range globs {
		if g.Match(ip) {
			return true
		}
	}
	return false
}
