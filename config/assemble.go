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

package config

import (
	"crypto/tls"
	"fmt"
	"strings"

	"bob/gateway"
	"bob/gateway/middleware"
)

// Assemble converts a decoded list of ServerConfigs into ready-to-serve
// VirtualServers. engines resolves the names a mod_security link's
// "engine" field may reference; pass nil when no named engines exist.
func Assemble(servers []ServerConfig, engines Engines) ([]*gateway.VirtualServer, error) {
	out := make([]*gateway.VirtualServer, 0, len(servers))
	for i, sc := range servers {
		vs, err := assembleServer(sc, engines)
		if err != nil {
			return nil, fmt.Errorf("config: server %d: %w", i, err)
		}
		out = append(out, vs)
	}
	return out, nil
}

func assembleServer(sc ServerConfig, engines Engines) (*gateway.VirtualServer, error) {
	name := "default"
	if len(sc.ServerName) > 0 {
		name = sc.ServerName[0]
	}
	st := &buildState{engines: engines, serverName: name}

	listeners, err := buildListeners(sc.Listen)
	if err != nil {
		return nil, err
	}

	chains, err := buildChains(st, sc.Chains)
	if err != nil {
		return nil, err
	}

	userMiddleware, err := st.buildMiddlewareChain(sc.Middleware)
	if err != nil {
		return nil, err
	}
	globalMiddleware := append(serverWideWrappers(sc), userMiddleware...)

	vs := &gateway.VirtualServer{
		Listen:     listeners,
		ServerName: domainMatchers(sc.ServerName),
		Root:       sc.Root,
		Index:      sc.Index,
		Disabled:   sc.Disabled,
		Chains:     chains,
	}
	if err := vs.Assemble(globalMiddleware); err != nil {
		return nil, err
	}
	return vs, nil
}

// serverWideWrappers returns the request-ID, logger, and sanitizer
// middleware a ServerConfig implies, outermost first: the request ID
// is tagged before anything else runs so every later wrapper (and the
// access log) can see it, the logger observes the final status, and
// the sanitizer runs inside the logger so the logger always sees the
// status the client actually received.
func serverWideWrappers(sc ServerConfig) []gateway.Middleware {
	wrappers := []gateway.Middleware{middleware.RequestIDMiddleware(middleware.RequestIDConfig{HeaderName: "X-Request-Id"})}
	if !sc.Logging.Disable {
		wrappers = append(wrappers, middleware.Logger(middleware.LoggerConfig{UseIPWare: sc.Logging.UseIPWare}))
	}
	if sc.Sanitize {
		wrappers = append(wrappers, middleware.Sanitizer())
	}
	return wrappers
}

func buildListeners(cfgs []ListenConfig) ([]gateway.ListenerBinding, error) {
	out := make([]gateway.ListenerBinding, len(cfgs))
	for i, c := range cfgs {
		b := gateway.ListenerBinding{Host: c.Host, Port: c.Port}
		if c.TLS != nil {
			cert, err := tls.LoadX509KeyPair(c.TLS.CertificatePath, c.TLS.PrivateKeyPath)
			if err != nil {
				return nil, fmt.Errorf("config: listener %d: loading TLS material: %w", i, err)
			}
			b.TLS = &gateway.TLSMaterial{Certificate: cert}
		}
		out[i] = b
	}
	return out, nil
}

func buildChains(st *buildState, cfgs []ChainConfig) ([]*gateway.Chain, error) {
	out := make([]*gateway.Chain, len(cfgs))
	for i, cc := range cfgs {
		links, err := buildLinks(st, cc.Links)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}
		out[i] = &gateway.Chain{
			Prefix:         strings.TrimPrefix(cc.Prefix, "/"),
			Guards:         domainMatchers(cc.Guards),
			Links:          links,
			BodyBufferSize: cc.BodyBufferSize,
		}
	}
	return out, nil
}

func buildLinks(st *buildState, cfgs []LinkConfig) ([]*gateway.Link, error) {
	out := make([]*gateway.Link, len(cfgs))
	for i, lc := range cfgs {
		h, err := buildHandler(lc.Handler)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		mws, err := st.buildMiddlewareChain(lc.Middleware)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}

		var nextOn map[int]bool
		if len(lc.NextOn) > 0 {
			nextOn = make(map[int]bool, len(lc.NextOn))
			for _, code := range lc.NextOn {
				nextOn[code] = true
			}
		}

		out[i] = &gateway.Link{
			Handler:    h,
			NextOn:     nextOn,
			Middleware: mws,
		}
	}
	return out, nil
}
