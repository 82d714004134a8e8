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

// Package pathsafety centralizes the URL-to-filesystem-path resolution
// rules shared by the file handler and the FastCGI handler: decoding,
// segment rejection, and root-jailed traversal. Grounded on Caddy's
// httpserver.SafePath, generalized to the segment rules spec.md names.
package pathsafety

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrEncodedSlash is returned when a path segment contains an encoded
// slash ("%2F"), which must never be treated as a path separator.
var ErrEncodedSlash = errors.New("pathsafety: encoded slash not allowed in path segment")

// ErrBadSegment is returned when a decoded path segment violates one of
// the naming rules in spec.md §4.3.1.
var ErrBadSegment = errors.New("pathsafety: disallowed path segment")

// Resolve decodes and validates reqPath (as found on an incoming
// request's URL, already stripped of any chain prefix), then joins it
// onto root, guaranteeing the result never escapes root.
//
// hiddenFiles, when false, rejects segments beginning with ".".
func Resolve(root, reqPath string, hiddenFiles bool) (string, error) {
	if strings.Contains(reqPath, "%2f") || strings.Contains(reqPath, "%2F") {
		return "", ErrEncodedSlash
	}

	decoded, err := url.PathUnescape(reqPath)
	if err != nil {
		return "", err
	}

	for _, seg := range strings.Split(decoded, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue // handled by segment-bounded popping below
		}
		if !hiddenFiles && strings.HasPrefix(seg, ".") {
			return "", ErrBadSegment
		}
		if strings.HasPrefix(seg, "*") {
			return "", ErrBadSegment
		}
		if strings.HasSuffix(seg, ":") || strings.HasSuffix(seg, "<") || strings.HasSuffix(seg, ">") {
			return "", ErrBadSegment
		}
		if runtime.GOOS == "windows" && (strings.ContainsAny(seg, `\:`)) {
			return "", ErrBadSegment
		}
	}

	clean := segmentBoundedClean(decoded)
	if root == "" {
		root = "."
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// segmentBoundedClean applies ".." popping one path segment at a time,
// never letting the result escape above "/": it is equivalent to
// path.Clean("/"+p) which already has this property, but is spelled out
// here because the property ("segment-bounded popping, never escaping
// root") is an explicit spec invariant worth naming.
func segmentBoundedClean(p string) string {
	return path.Clean("/" + p)
}
