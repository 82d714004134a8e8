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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// socketGroup is every VirtualServer sharing one (host, port) listener.
type socketGroup struct {
	addr    string
	tlsOn   bool
	servers []*VirtualServer
}

// Dispatcher binds one socket per unique (host, port) across all
// enabled VirtualServers, routes accepted connections by Host header
// to the right VirtualServer, and supervises every listener as a unit:
// the first to fail cancels the rest (spec §4.7, SPEC_FULL §5).
type Dispatcher struct {
	groups []*socketGroup
	sni    *SNIResolver
	srvs   []*http.Server
}

// NewDispatcher groups servers by (host, port) and validates the rule
// that a socket shared by plaintext and TLS bindings is a startup
// error.
func NewDispatcher(servers []*VirtualServer) (*Dispatcher, error) {
	byAddr := map[string]*socketGroup{}
	var order []string
	for _, v := range servers {
		if v.Disabled {
			continue
		}
		for _, l := range v.Listen {
			addr := l.Addr()
			g, ok := byAddr[addr]
			if !ok {
				g = &socketGroup{addr: addr}
				byAddr[addr] = g
				order = append(order, addr)
			}
			if l.TLS != nil {
				g.tlsOn = true
			}
			g.servers = append(g.servers, v)
		}
	}

	d := &Dispatcher{sni: NewSNIResolver(servers)}
	for _, addr := range order {
		g := byAddr[addr]
		if g.tlsOn {
			for _, v := range g.servers {
				for _, l := range v.Listen {
					if l.Addr() == addr && l.TLS == nil {
						return nil, fmt.Errorf("gateway: %s mixes a TLS and a plaintext listener binding", addr)
					}
				}
			}
		}
		d.groups = append(d.groups, g)
	}
	return d, nil
}

// Serve binds every socket and blocks until ctx is cancelled or one
// listener fails; on either, every listener is gracefully shut down.
func (d *Dispatcher) Serve(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	for _, g := range d.groups {
		g := g
		srv := &http.Server{
			Addr:    g.addr,
			Handler: d.handlerFor(g),
		}
		d.srvs = append(d.srvs, srv)

		if g.tlsOn {
			srv.TLSConfig = &tls.Config{
				GetCertificate: d.sni.GetCertificate,
				NextProtos:     []string{"h2", "http/1.1"},
				MinVersion:     tls.VersionTLS12,
			}
		}

		group.Go(func() error {
			ln, err := net.Listen("tcp", g.addr)
			if err != nil {
				return err
			}
			var serveErr error
			if g.tlsOn {
				serveErr = srv.ServeTLS(ln, "", "")
			} else {
				serveErr = srv.Serve(ln)
			}
			if errors.Is(serveErr, http.ErrServerClosed) {
				return nil
			}
			return serveErr
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range d.srvs {
			srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return group.Wait()
}

// handlerFor returns the http.HandlerFunc that implements spec §4.7's
// per-request pipeline for one socket group: parse Host, select the
// first matching VirtualServer, dispatch into it, and fall back to the
// "site not found" response when nothing matches.
func (d *Dispatcher) handlerFor(g *socketGroup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				DefaultErrorFunc(w, r, http.StatusInternalServerError)
			}
		}()

		w.Header().Set("Server", "bob")

		host := StripPort(r.Host)
		var selected *VirtualServer
		var fallback *VirtualServer
		for _, v := range g.servers {
			if len(v.ServerName) == 0 {
				if fallback == nil {
					fallback = v
				}
				continue
			}
			if v.MatchesServerName(host) {
				selected = v
				break
			}
		}
		if selected == nil {
			selected = fallback
		}
		if selected == nil {
			writeSiteNotFound(w, r)
			return
		}

		status, _ := selected.ServeHTTP(w, r)
		if status >= 400 {
			DefaultErrorFunc(w, r, status)
		}
	}
}

const httpStatusMisdirectedRequest = 421 // RFC 7540 §9.1.2

func writeSiteNotFound(w http.ResponseWriter, r *http.Request) {
	status := http.StatusNotFound
	if r.ProtoMajor >= 2 {
		status = httpStatusMisdirectedRequest
	}
	WriteText(w, status, fmt.Sprintf("%d Site %s is not served on this interface\n", status, r.Host))
}
