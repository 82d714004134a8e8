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
	"errors"
	"fmt"
	"net/http"
)

// ListenerBinding is one (host, port[, tls]) socket a VirtualServer
// should be reachable on.
type ListenerBinding struct {
	Host string
	Port string
	TLS  *TLSMaterial
}

// Addr returns "host:port", suitable for net.Listen.
func (b ListenerBinding) Addr() string {
	return fmt.Sprintf("%s:%s", b.Host, b.Port)
}

// TLSMaterial is one certificate/key pair read from PEM.
type TLSMaterial struct {
	Certificate tls.Certificate
}

// VirtualServer is the assembled, ready-to-serve form of a ServerConfig:
// listeners, host guards, server-global middleware, and the compiled
// chains that answer requests. It is built once at startup and shared
// read-only by all workers.
type VirtualServer struct {
	Listen       []ListenerBinding
	ServerName   []DomainMatcher
	Root, Index  string
	Disabled     bool
	Chains       []*Chain
	handlerChain Handler // chains + server-global middleware, compiled
}

// Assemble builds the VirtualServer's compiled handler per spec §4.6:
//  1. start from an empty chain dispatcher
//  2. each directive already produced its Link(s) into c.Chains
//  3. apply server_name guards (done per-Chain via MatchesHost)
//  4. wrap with middleware[] outer-to-inner
//  5. wrap with sanitizer if configured
//  6. wrap with logger if configured
func (v *VirtualServer) Assemble(globalMiddleware []Middleware) error {
	if len(v.Listen) == 0 {
		return errors.New("gateway: virtual server has no listeners")
	}
	if len(v.Chains) == 0 && !v.Disabled {
		return errors.New("gateway: virtual server has no directives and is not disabled")
	}
	for _, c := range v.Chains {
		c.Compile()
	}

	var base Handler = HandlerFunc(v.dispatchChains)
	v.handlerChain = Compose(base, globalMiddleware...)
	return nil
}

// dispatchChains selects the first Chain whose guards pass and whose
// prefix matches the request path (spec §4.7 step 4), per pipeline
// step, then evaluates it.
func (v *VirtualServer) dispatchChains(w http.ResponseWriter, r *http.Request) (int, error) {
	host := StripPort(r.Host)
	for _, c := range v.Chains {
		if !c.MatchesHost(host) {
			continue
		}
		subpath, ok := c.MatchesPath(r.URL.Path)
		if !ok {
			continue
		}
		r.URL.Path = subpath
		return c.ServeHTTP(w, r)
	}
	WriteNotFound(w)
	return 0, nil
}

// MatchesServerName reports whether host satisfies this server's
// server_name guards. An empty list means "match any" (catch-all).
func (v *VirtualServer) MatchesServerName(host string) bool {
	if len(v.ServerName) == 0 {
		return true
	}
	for _, g := range v.ServerName {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// ServeHTTP dispatches into the compiled middleware+chain stack.
func (v *VirtualServer) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	return v.handlerChain.ServeHTTP(w, r)
}
