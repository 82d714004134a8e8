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
	"fmt"
	"net/url"

	"bob/gateway"
	"bob/gateway/handlers"
	"bob/gateway/handlers/fastcgi"
)

// buildHandler constructs the one gateway.Handler named by cfg.Type.
func buildHandler(cfg HandlerConfig) (gateway.Handler, error) {
	switch cfg.Type {
	case "file":
		return handlers.File{
			Root:           cfg.Root,
			HiddenFiles:    cfg.HiddenFiles,
			IndexFiles:     cfg.IndexFiles,
			ListDir:        cfg.Browse,
			AsyncThreshold: cfg.AsyncThreshold,
		}, nil

	case "redirect":
		return handlers.Redirect{
			TargetURI: cfg.TargetURI,
			Status:    cfg.Status,
		}, nil

	case "static":
		return handlers.Static{
			Body:        cfg.Body,
			ContentType: cfg.ContentType,
			Headers:     cfg.Headers,
			Status:      cfg.Status,
		}, nil

	case "fastcgi":
		h, err := fastcgi.NewHandler(cfg.ConnectAddr, cfg.Root, cfg.IndexFiles)
		if err != nil {
			return nil, fmt.Errorf("config: fastcgi handler: %w", err)
		}
		h.HiddenFiles = cfg.HiddenFiles
		h.ReadTimeout = cfg.ReadTimeout.value()
		h.SendTimeout = cfg.SendTimeout.value()
		if p := cfg.Pool; p != (FastCGIPoolConfig{}) {
			pool := h.Pool()
			if p.MinIdle > 0 {
				pool.MinIdle = p.MinIdle
			}
			if p.MaxSize > 0 {
				pool.MaxSize = p.MaxSize
			}
			if p.IdleTimeout > 0 {
				pool.IdleTimeout = p.IdleTimeout.value()
			}
			if p.ConnectTimeout > 0 {
				pool.ConnectTimeout = p.ConnectTimeout.value()
			}
			if p.MaxLifetime > 0 {
				pool.MaxLifetime = p.MaxLifetime.value()
			}
		}
		return h, nil

	case "proxy":
		target, err := url.Parse(cfg.Resolve)
		if err != nil {
			return nil, fmt.Errorf("config: proxy handler: invalid resolve URL %q: %w", cfg.Resolve, err)
		}
		verifySSL := true
		if cfg.VerifySSL != nil {
			verifySSL = *cfg.VerifySSL
		}
		return &handlers.Proxy{
			Resolve:           target,
			Timeout:           cfg.Timeout.value(),
			MaxRedirects:      cfg.MaxRedirects,
			VerifySSL:         verifySSL,
			ChangeHost:        cfg.ChangeHost,
			UpstreamHeaders:   cfg.UpstreamHeaders,
			DownstreamHeaders: cfg.DownstreamHeaders,
		}, nil

	default:
		return nil, fmt.Errorf("config: unknown handler type %q", cfg.Type)
	}
}
