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

package handlers

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// hopHeaders are stripped from both the forwarded request and the
// relayed response, per RFC 7230 §6.1. Borrowed verbatim from Caddy's
// reverse proxy handler.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy forwards a request to a single upstream, per spec §4.3.5.
//
// spec.md also names initial_conn_window/initial_stream_window config
// keys; golang.org/x/net/http2.Transport exposes no client-side setter
// for the initial flow-control window, so there is no field for them
// here (see DESIGN.md).
type Proxy struct {
	Resolve           *url.URL
	Timeout           time.Duration
	MaxRedirects      int
	VerifySSL         bool
	ChangeHost        bool
	UpstreamHeaders   map[string]string
	DownstreamHeaders map[string]string

	transportOnce sync.Once
	transport     http.RoundTripper
}

func (p *Proxy) buildTransport() http.RoundTripper {
	t := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !p.VerifySSL,
			NextProtos:         []string{"h2", "http/1.1"},
		},
	}
	http2.ConfigureTransport(t)
	return t
}

func (p *Proxy) roundTripper() http.RoundTripper {
	p.transportOnce.Do(func() {
		p.transport = p.buildTransport()
	})
	return p.transport
}

// targetURL combines Resolve with subpath and merges query strings,
// request keys winning on conflict, per spec §4.3.5.
func (p *Proxy) targetURL(subpath string, reqQuery url.Values) *url.URL {
	u := *p.Resolve
	u.Path = singleJoiningSlash(p.Resolve.Path, subpath)

	merged := url.Values{}
	if p.Resolve.RawQuery != "" {
		if base, err := url.ParseQuery(p.Resolve.RawQuery); err == nil {
			for k, v := range base {
				merged[k] = v
			}
		}
	}
	for k, v := range reqQuery {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()
	return &u
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}

// ServeHTTP implements gateway.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	target := p.targetURL(r.URL.Path, r.URL.Query())

	ctx := r.Context()
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	redirects := 0
	for {
		outreq, err := p.buildRequest(ctx, r, target)
		if err != nil {
			return http.StatusBadGateway, err
		}

		resp, err := p.roundTripper().RoundTrip(outreq)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return http.StatusGatewayTimeout, err
			}
			return http.StatusBadGateway, err
		}

		if isRedirect(resp.StatusCode) && redirects < p.MaxRedirects {
			loc := resp.Header.Get("Location")
			resp.Body.Close()
			next, err := target.Parse(loc)
			if err != nil {
				return http.StatusBadGateway, err
			}
			target = next
			redirects++
			continue
		}

		return p.relay(w, resp)
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func (p *Proxy) buildRequest(ctx context.Context, r *http.Request, target *url.URL) (*http.Request, error) {
	outreq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	outreq.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		outreq.Header.Del(h)
	}
	if p.ChangeHost {
		outreq.Host = p.Resolve.Host
	} else {
		outreq.Host = r.Host
	}
	for k, v := range p.UpstreamHeaders {
		outreq.Header.Set(k, v)
	}
	outreq.ContentLength = r.ContentLength
	return outreq, nil
}

func (p *Proxy) relay(w http.ResponseWriter, resp *http.Response) (int, error) {
	defer resp.Body.Close()

	if c := resp.Header.Get("Connection"); c != "" {
		for _, f := range strings.Split(c, ",") {
			resp.Header.Del(strings.TrimSpace(f))
		}
	}
	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	for k, v := range p.DownstreamHeaders {
		resp.Header.Set(k, v)
	}

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	if err != nil {
		return http.StatusBadGateway, err
	}
	return 0, nil
}
