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
	"net/http"
	"strings"

	"bob/gateway/bodybuffer"
)

// Chain is an ordered sequence of Links bound to a URL prefix and
// guarded by host matchers. Per spec §3, prefix is stored with its
// leading slash trimmed and re-added at match time.
type Chain struct {
	Prefix         string
	Guards         []DomainMatcher
	Links          []*Link
	BodyBufferSize int64
}

// Compile prepares every Link for evaluation. Call once after
// construction, before the Chain is used to serve requests.
func (c *Chain) Compile() {
	for _, l := range c.Links {
		l.Compile()
	}
}

// MatchesHost reports whether host satisfies every guard. An empty
// guard list matches any host.
func (c *Chain) MatchesHost(host string) bool {
	for _, g := range c.Guards {
		if !g.Match(host) {
			return false
		}
	}
	return true
}

// NormalizedPrefix re-adds the leading slash trimmed at storage time.
func (c *Chain) NormalizedPrefix() string {
	if c.Prefix == "" {
		return "/"
	}
	return "/" + c.Prefix
}

// MatchesPath reports whether reqPath is prefixed by this chain's
// location, and returns the resolved subpath (reqPath with the prefix
// stripped) when it is.
func (c *Chain) MatchesPath(reqPath string) (subpath string, ok bool) {
	prefix := c.NormalizedPrefix()
	if prefix == "/" {
		return reqPath, true
	}
	if !strings.HasPrefix(reqPath, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(reqPath, prefix)
	if rest == "" {
		rest = "/"
	} else if !strings.HasPrefix(rest, "/") {
		// prefix matched a partial segment, e.g. prefix "/foo" against
		// "/foobar" -- not a real match.
		return "", false
	}
	return rest, true
}

// ServeHTTP walks Links in order. On a fall-through status, the request
// body is replayed (via a shared bodybuffer.Buffer) and the next Link is
// tried; the first non-fall-through response wins. If every Link falls
// through, a 404 is returned per spec §4.5.4.
func (c *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	if len(c.Links) == 0 {
		WriteNotFound(w)
		return 0, nil
	}

	// Only install a replayable body when more than one link might
	// actually need to read it more than once.
	if r.Body != nil && len(c.Links) > 1 {
		soft := c.BodyBufferSize
		if soft <= 0 {
			soft = 4 << 20
		}
		buf := bodybuffer.New(r.Body, soft)
		r.Body = &readCloser{buf}
	}

	for i, link := range c.Links {
		if i > 0 {
			if rc, ok := r.Body.(*readCloser); ok {
				if err := rc.buf.Reset(); err != nil {
					return http.StatusRequestEntityTooLarge, nil
				}
			}
		}

		status, fallThrough, err := link.Evaluate(w, r)
		if !fallThrough {
			return status, err
		}
	}

	WriteNotFound(w)
	return 0, nil
}

// readCloser adapts a *bodybuffer.Buffer (an io.Reader) to io.ReadCloser
// so it can be assigned to http.Request.Body.
type readCloser struct {
	buf *bodybuffer.Buffer
}

func (r *readCloser) Read(p []byte) (int, error) { return r.buf.Read(p) }
func (r *readCloser) Close() error                { return nil }
