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
	"regexp"

	"bob/gateway"
)

// RewriteRule is one mod_rewrite-style rule: if Match (a regexp
// against the request path) succeeds, the path and/or query are
// replaced by expanding capture-group references ("$1", "$2", ...) in
// To and ToQuery, headers are added/removed, and if Status is set the
// rule short-circuits with that status instead of continuing.
type RewriteRule struct {
	Match        *regexp.Regexp
	To           string
	ToQuery      string
	SetHeaders   map[string]string
	RemoveHeaders []string
	Status       int
}

// RewriteConfig bounds the rule engine's iteration count, per spec
// §4.2's "bounded iteration count (default 10)".
type RewriteConfig struct {
	Rules     []RewriteRule
	MaxRounds int
}

// Rewrite applies RewriteConfig's rules in order, re-running the whole
// rule set up to MaxRounds times so that one rule's output can feed
// another's match, per spec §4.2.
func Rewrite(cfg RewriteConfig) gateway.Middleware {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			for round := 0; round < maxRounds; round++ {
				changed := false
				for _, rule := range cfg.Rules {
					src := r.URL.Path
					matches := rule.Match.FindStringSubmatchIndex(src)
					if matches == nil {
						continue
					}

					for k, v := range rule.SetHeaders {
						r.Header.Set(k, v)
					}
					for _, k := range rule.RemoveHeaders {
						r.Header.Del(k)
					}

					if rule.Status != 0 {
						w.WriteHeader(rule.Status)
						return 0, nil
					}

					if rule.To != "" {
						newPath := string(rule.Match.ExpandString(nil, rule.To, src, matches))
						if newPath != r.URL.Path {
							r.URL.Path = newPath
							changed = true
						}
					}
					if rule.ToQuery != "" {
						newQuery := string(rule.Match.ExpandString(nil, rule.ToQuery, src, matches))
						if newQuery != r.URL.RawQuery {
							r.URL.RawQuery = newQuery
							changed = true
						}
					}
				}
				if !changed {
					break
				}
			}
			return next.ServeHTTP(w, r)
		})
	}
}
