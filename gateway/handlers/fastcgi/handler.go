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

package fastcgi

import (
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"bob/internal/pathsafety"
)

// Handler bridges requests to a FastCGI application server (e.g.
// php-fpm), per spec §4.3.4.
type Handler struct {
	ConnectAddr string // "tcp://host:port" or "unix:///path/to.sock"
	Root        string
	Index       []string
	HiddenFiles bool

	ReadTimeout  time.Duration
	SendTimeout  time.Duration

	pool *Pool
}

// Pool exposes the backing connection pool so callers can tune its
// sizing and lifetime parameters after construction.
func (h *Handler) Pool() *Pool {
	return h.pool
}

// NewHandler parses ConnectAddr and constructs the backing pool.
func NewHandler(connectAddr, root string, index []string) (*Handler, error) {
	network, address, err := parseConnectAddr(connectAddr)
	if err != nil {
		return nil, err
	}
	return &Handler{
		ConnectAddr: connectAddr,
		Root:        root,
		Index:       index,
		pool:        NewPool(network, address),
	}, nil
}

func parseConnectAddr(addr string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(addr, "tcp://"):
		return "tcp", strings.TrimPrefix(addr, "tcp://"), nil
	case strings.HasPrefix(addr, "unix://"):
		return "unix", strings.TrimPrefix(addr, "unix://"), nil
	default:
		return "tcp", addr, nil
	}
}

// ServeHTTP implements gateway.Handler. Only GET and HEAD are bridged;
// every other method falls through to the default 404, per spec
// §4.3.4.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return http.StatusNotFound, nil
	}

	scriptPath, err := pathsafety.Resolve(h.Root, r.URL.Path, h.HiddenFiles)
	if err != nil {
		return http.StatusBadRequest, nil
	}

	urlPath := r.URL.Path
	if info, statErr := os.Stat(scriptPath); statErr == nil && info.IsDir() {
		found := false
		for _, idx := range h.Index {
			candidate := path.Join(scriptPath, idx)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				scriptPath = candidate
				urlPath = path.Join(r.URL.Path, idx)
				found = true
				break
			}
		}
		if !found {
			return http.StatusNotFound, nil
		}
	} else if statErr != nil {
		return http.StatusNotFound, nil
	}

	params := h.buildParams(r, scriptPath, urlPath)

	client, err := h.pool.Get(r.Context())
	if err != nil {
		return http.StatusBadGateway, err
	}

	if err := client.SetReadTimeout(h.ReadTimeout); err != nil {
		h.pool.Discard(client)
		return http.StatusBadGateway, err
	}
	if err := client.SetWriteTimeout(h.SendTimeout); err != nil {
		h.pool.Discard(client)
		return http.StatusBadGateway, err
	}

	var body io.Reader
	if r.Method != http.MethodHead {
		body = r.Body
	}

	resp, err := client.Request(params, body)
	if err != nil {
		h.pool.Discard(client)
		return http.StatusBadGateway, err
	}
	defer resp.Body.Close()
	defer h.pool.Put(client)

	for k, vv := range resp.Header {
		if k == "Status" {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return http.StatusBadGateway, err
		}
	}
	return 0, nil
}

func (h *Handler) buildParams(r *http.Request, scriptFilename, scriptName string) map[string]string {
	remoteAddr, remotePort := splitHostPort(r.RemoteAddr)
	serverAddr, serverPort := splitHostPort(r.Host)

	params := map[string]string{
		"DOCUMENT_URI":    r.URL.Path,
		"DOCUMENT_ROOT":   h.Root,
		"REQUEST_METHOD":  r.Method,
		"REQUEST_URI":     r.URL.RequestURI(),
		"SCRIPT_NAME":     scriptName,
		"SCRIPT_FILENAME": scriptFilename,
		"SERVER_PROTOCOL": r.Proto,
		"SERVER_SOFTWARE": "bob",
		"SERVER_ADDR":     serverAddr,
		"SERVER_PORT":     serverPort,
		"SERVER_NAME":     stripPort(r.Host),
		"REMOTE_ADDR":     remoteAddr,
		"REMOTE_PORT":     remotePort,
		"CONTENT_LENGTH":  strconv.FormatInt(r.ContentLength, 10),
		"CONTENT_TYPE":    r.Header.Get("Content-Type"),
		"GATEWAY_INTERFACE": "CGI/1.1",
		"HTTPS":           "",
	}
	if r.TLS != nil {
		params["HTTPS"] = "on"
	}
	for k, v := range r.Header {
		if k == "Content-Type" || k == "Content-Length" {
			continue
		}
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		params[key] = strings.Join(v, ", ")
	}
	return params
}

func splitHostPort(hostport string) (host, port string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return host, port
}

func stripPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
