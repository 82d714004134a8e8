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

package gateway

import (
	"net"
	"path"
	"strings"
)

// DomainMatcher is a compiled glob matched against the full Host header
// value (§3 DomainMatch). It supports "*" as a whole-label wildcard
// (e.g. "*.example.com") as well as general path.Match-style globs
// within a label, matching the same degree of flexibility Caddy's
// vhostTrie uses for SNI/host matching.
type DomainMatcher string

// Match reports whether host (already stripped of any port) satisfies
// the glob. An empty matcher matches every host.
func (d DomainMatcher) Match(host string) bool {
	if d == "" {
		return true
	}
	pattern := strings.ToLower(string(d))
	host = strings.ToLower(host)

	if pattern == host {
		return true
	}

	pLabels := strings.Split(pattern, ".")
	hLabels := strings.Split(host, ".")
	if len(pLabels) != len(hLabels) {
		return false
	}
	for i := range pLabels {
		if pLabels[i] == "*" {
			continue
		}
		if ok, _ := path.Match(pLabels[i], hLabels[i]); !ok {
			return false
		}
	}
	return true
}

// StripPort removes a trailing ":port" from a Host header value, as
// required before matching against server_name or the vhost table.
func StripPort(host string) string {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}
