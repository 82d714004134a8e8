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

import "net/http"

// DefaultFallThrough is the next_on set used when a Link's configuration
// does not specify one: file-server-then-proxy composition on a single
// location tries the files first and falls through to the next link
// only on 404.
var DefaultFallThrough = map[int]bool{http.StatusNotFound: true}

// Link is one handler plus its personal middleware stack and the set
// of status codes on which the enclosing Chain should retry the next
// Link instead of returning this one's response.
type Link struct {
	Handler    Handler
	NextOn     map[int]bool
	Middleware []Middleware

	wrapped Handler // compiled once at assembly time
}

// Compile wraps Handler with Middleware, outermost first, and caches
// the result. Call once after all Middleware has been appended.
func (l *Link) Compile() {
	l.wrapped = Compose(l.Handler, l.Middleware...)
	if l.NextOn == nil {
		l.NextOn = DefaultFallThrough
	}
}

// Evaluate invokes the compiled handler and reports whether the
// resulting status means the Chain should fall through to the next
// Link (true) or return this response as final (false).
func (l *Link) Evaluate(w http.ResponseWriter, r *http.Request) (status int, fallThrough bool, err error) {
	if l.wrapped == nil {
		l.Compile()
	}
	status, err = l.wrapped.ServeHTTP(w, r)
	return status, l.NextOn[status], err
}
