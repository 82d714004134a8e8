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
	"crypto/tls"
	"fmt"
)

// certEntry pairs a compiled host guard with the certified key produced
// for it, in registration order. Certified keys are created once per
// configured TLS binding and shared by reference across handshakes.
type certEntry struct {
	guards []DomainMatcher
	cert   *tls.Certificate
}

// SNIResolver is built once from the union of (server_name, tls
// material) pairs across every enabled virtual server that declares
// TLS (spec §4.8). It is read-only after construction and safe for
// concurrent handshakes.
type SNIResolver struct {
	entries []certEntry
}

// NewSNIResolver builds a resolver from the given virtual servers,
// visiting only those with at least one TLS listener.
func NewSNIResolver(servers []*VirtualServer) *SNIResolver {
	r := &SNIResolver{}
	for _, v := range servers {
		if v.Disabled {
			continue
		}
		var certs []*tls.Certificate
		for _, l := range v.Listen {
			if l.TLS != nil {
				certs = append(certs, &l.TLS.Certificate)
			}
		}
		for _, c := range certs {
			r.entries = append(r.entries, certEntry{guards: v.ServerName, cert: c})
		}
	}
	return r
}

// GetCertificate implements the signature expected by
// tls.Config.GetCertificate. It finds the first entry whose guards
// match the ClientHello's server name (defaulting to empty string if
// absent, which only an empty-guard-list entry can match), or rejects
// the handshake if nothing matches.
func (r *SNIResolver) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := hello.ServerName
	for _, e := range r.entries {
		if matchesAny(e.guards, name) {
			return e.cert, nil
		}
	}
	return nil, fmt.Errorf("gateway: no certificate configured for server name %q", name)
}

func matchesAny(guards []DomainMatcher, name string) bool {
	if len(guards) == 0 {
		return true
	}
	for _, g := range guards {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Empty reports whether the resolver has no entries, meaning TLS
// should not be enabled for the listener it would be attached to.
func (r *SNIResolver) Empty() bool { return len(r.entries) == 0 }
