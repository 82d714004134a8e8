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

// Package handlers implements the content-producing leaves of the
// request pipeline: file, redirect, static, FastCGI, and reverse-proxy.
package handlers

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"bob/internal/pathsafety"
)

// File serves static files from disk, adapted from Caddy's FileServer.
type File struct {
	Root        string
	HiddenFiles bool
	IndexFiles  []string // server-level "index" default documents
	ListDir     bool     // show a directory listing when no index matches (the "browse" flag)
	AsyncThreshold int64 // files at or above this size are streamed rather than buffered
}

// ServeHTTP implements gateway.Handler.
func (f File) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return http.StatusNotFound, nil
	}

	diskPath, err := pathsafety.Resolve(f.Root, r.URL.Path, f.HiddenFiles)
	if err != nil {
		return http.StatusBadRequest, nil
	}

	fh, err := os.Open(diskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return http.StatusNotFound, nil
		}
		if os.IsPermission(err) {
			return http.StatusForbidden, err
		}
		backoff := 3 + rand.Intn(3)
		w.Header().Set("Retry-After", strconv.Itoa(backoff))
		return http.StatusServiceUnavailable, err
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return http.StatusInternalServerError, err
	}

	if info.IsDir() {
		return f.serveDir(w, r, diskPath, info)
	}

	if f.AsyncThreshold > 0 && info.Size() < f.AsyncThreshold {
		// small enough to buffer fully before replying, avoiding a
		// half-written response if a later read fails partway through.
		data, err := io.ReadAll(fh)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(data))
		return 0, nil
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), fh)
	return 0, nil
}

func (f File) serveDir(w http.ResponseWriter, r *http.Request, diskPath string, info os.FileInfo) (int, error) {
	for _, idx := range f.IndexFiles {
		idxPath := path.Join(diskPath, idx)
		idxFile, err := os.Open(idxPath)
		if err != nil {
			continue
		}
		defer idxFile.Close()
		idxInfo, err := idxFile.Stat()
		if err != nil || idxInfo.IsDir() {
			continue
		}
		http.ServeContent(w, r, idxInfo.Name(), idxInfo.ModTime(), idxFile)
		return 0, nil
	}

	if !f.ListDir {
		return http.StatusNotFound, nil
	}
	return f.writeListing(w, diskPath, r.URL.Path)
}

func (f File) writeListing(w http.ResponseWriter, diskPath, urlPath string) (int, error) {
	entries, err := os.ReadDir(diskPath)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><body><ul>\n")
	if urlPath != "/" {
		sb.WriteString(`<li><a href="../">../</a></li>` + "\n")
	}
	for _, e := range entries {
		name := e.Name()
		if !f.HiddenFiles && strings.HasPrefix(name, ".") {
			continue
		}
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		}
		sb.WriteString(fmt.Sprintf(`<li><a href="%s%s">%s%s</a></li>`+"\n", name, suffix, name, suffix))
	}
	sb.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sb.String()))
	return 0, nil
}
