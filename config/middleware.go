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
	"regexp"

	"bob/gateway"
	"bob/gateway/middleware"
	"bob/internal/htpasswdengine"
)

// Engines names the external rule engines ModSecurity links may refer
// to by name (the "engine" key). A link naming no engine at all gets
// middleware.NoopEngine; naming an engine absent from this map is a
// configuration error.
type Engines map[string]middleware.RuleEngine

// buildState carries the assembly state of one virtual server. Its
// signer is shared by every auth_basic_session middleware of that
// virtual server, so a cookie issued by one location is honored by the
// others. assembleServer creates a fresh buildState, and with it a
// fresh signing key, for each virtual server: a cookie issued by one
// virtual server is not honored by another.
type buildState struct {
	engines    Engines
	signer     *middleware.SessionSigner
	serverName string
}

func domainMatchers(patterns []string) []gateway.DomainMatcher {
	out := make([]gateway.DomainMatcher, len(patterns))
	for i, p := range patterns {
		out[i] = gateway.DomainMatcher(p)
	}
	return out
}

func loadStores(paths []string, cacheSize int) ([]*htpasswdengine.Store, error) {
	stores := make([]*htpasswdengine.Store, 0, len(paths))
	for _, p := range paths {
		s, err := htpasswdengine.Load(p, cacheSize)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// buildMiddleware constructs the one gateway.Middleware named by
// cfg.Type.
func (st *buildState) buildMiddleware(cfg MiddlewareConfig) (gateway.Middleware, error) {
	switch cfg.Type {
	case "logger":
		return middleware.Logger(middleware.LoggerConfig{UseIPWare: cfg.UseIPWare}), nil

	case "sanitizer":
		return middleware.Sanitizer(), nil

	case "auth_basic":
		stores, err := loadStores(cfg.HtpasswdFiles, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("config: auth_basic: %w", err)
		}
		return middleware.AuthBasic(middleware.AuthBasicConfig{Realm: cfg.Realm, Stores: stores}), nil

	case "auth_basic_session":
		stores, err := loadStores(cfg.HtpasswdFiles, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("config: auth_basic_session: %w", err)
		}
		if st.signer == nil {
			signer, err := middleware.NewSessionSigner()
			if err != nil {
				return nil, fmt.Errorf("config: auth_basic_session: generating session signer: %w", err)
			}
			st.signer = signer
		}
		return middleware.AuthBasicSession(middleware.AuthBasicSessionConfig{
			AuthBasicConfig: middleware.AuthBasicConfig{Realm: cfg.Realm, Stores: stores},
			Signer:          st.signer,
		}), nil

	case "ip_ware":
		return middleware.IpWare(middleware.IpWareConfig{
			TrustedHeaders: cfg.TrustedHeaders,
			TrustedProxies: domainMatchers(cfg.TrustedProxies),
			ProxyCount:     cfg.ProxyCount,
			Strict:         cfg.Strict,
		}), nil

	case "ip_filter":
		return middleware.IpFilter(middleware.IpFilterConfig{
			Allow: domainMatchers(cfg.Allow),
			Deny:  domainMatchers(cfg.Deny),
		}), nil

	case "mod_security":
		engine := middleware.RuleEngine(middleware.NoopEngine{})
		if cfg.Engine != "" {
			e, ok := st.engines[cfg.Engine]
			if !ok {
				return nil, fmt.Errorf("config: mod_security: unknown engine %q", cfg.Engine)
			}
			engine = e
		}
		return middleware.ModSecurity(middleware.ModSecurityConfig{
			Engine:          engine,
			RequestBodyCap:  cfg.RequestBodyCap,
			ResponseBodyCap: cfg.ResponseBodyCap,
		}), nil

	case "rewrite":
		rules := make([]middleware.RewriteRule, len(cfg.Rules))
		for i, r := range cfg.Rules {
			re, err := regexp.Compile(r.Match)
			if err != nil {
				return nil, fmt.Errorf("config: rewrite: rule %d: %w", i, err)
			}
			rules[i] = middleware.RewriteRule{
				Match:         re,
				To:            r.To,
				ToQuery:       r.ToQuery,
				SetHeaders:    r.SetHeaders,
				RemoveHeaders: r.RemoveHeaders,
				Status:        r.Status,
			}
		}
		return middleware.Rewrite(middleware.RewriteConfig{Rules: rules, MaxRounds: cfg.MaxRounds}), nil

	case "rate_limit":
		return middleware.RateLimit(middleware.RateLimitConfig{
			ServerName:    st.serverName,
			Limit:         cfg.Limit,
			Period:        cfg.Period.value(),
			Burst:         cfg.Burst,
			ByPath:        cfg.ByPath,
			FailOpen:      cfg.FailOpen,
			ExposeHeaders: cfg.ExposeHeaders,
		}), nil

	case "timeout":
		return middleware.Timeout(cfg.Duration.value()), nil

	case "tracing":
		mw, err := middleware.Tracing(middleware.TracingConfig{
			SpanName:     cfg.Span,
			Attributes:   cfg.SpanAttributes,
			OTLPEndpoint: cfg.OTLPEndpoint,
			Insecure:     cfg.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("config: tracing: %w", err)
		}
		return mw, nil

	default:
		return nil, fmt.Errorf("config: unknown middleware type %q", cfg.Type)
	}
}

func (st *buildState) buildMiddlewareChain(cfgs []MiddlewareConfig) ([]gateway.Middleware, error) {
	out := make([]gateway.Middleware, len(cfgs))
	for i, c := range cfgs {
		mw, err := st.buildMiddleware(c)
		if err != nil {
			return nil, err
		}
		out[i] = mw
	}
	return out, nil
}
