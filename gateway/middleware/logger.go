// Copyright 2015 Matthew Holt and The Caddy Authors
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

// Package middleware implements the cross-cutting wrapper variants of
// spec §4.2: logging, error sanitizing, authentication, IP extraction
// and filtering, rule-engine scanning, rewriting, rate limiting, and
// timeouts.
package middleware

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"bob/gateway"
	"bob/internal/obslog"
)

// LoggerConfig controls the Logger middleware's behavior.
type LoggerConfig struct {
	// UseIPWare, when true, logs the effective peer IP set by the
	// IpWare middleware instead of the raw TCP peer address.
	UseIPWare bool
}

// Logger observes each request's outcome without altering the
// response body, per spec §4.2.
func Logger(cfg LoggerConfig) gateway.Middleware {
	log := obslog.For("logger")
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			start := time.Now()
			cw := &countingWriter{ResponseWriter: w}

			status, err := next.ServeHTTP(cw, r)
			elapsed := time.Since(start)

			finalStatus := status
			if finalStatus == 0 {
				finalStatus = cw.status
				if finalStatus == 0 {
					finalStatus = http.StatusOK
				}
			}

			ip := r.RemoteAddr
			if cfg.UseIPWare {
				if real, ok := EffectivePeer(r); ok {
					ip = real
				}
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.Int("status", finalStatus),
				zap.String("bytes", humanize.Bytes(uint64(cw.written))),
				zap.String("referer", r.Referer()),
				zap.String("user_agent", r.UserAgent()),
				zap.String("client_ip", ip),
				zap.Duration("elapsed", elapsed),
			}
			if reqID, ok := RequestID(r); ok {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
				log.Error("request", fields...)
			} else {
				log.Info("request", fields...)
			}
			return status, err
		})
	}
}

// countingWriter tracks the status and byte count an inner handler
// wrote, for the Logger middleware's own bookkeeping without altering
// the bytes sent to the client.
type countingWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *countingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}
