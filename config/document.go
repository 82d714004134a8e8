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

// Package config decodes the YAML document describing a set of
// virtual servers and assembles it into the running gateway types
// (VirtualServer, Chain, Link, handlers, middleware).
package config

import (
	"fmt"
	"time"
)

// Document is the top-level YAML shape: a list of independently
// configured virtual servers.
type Document struct {
	Servers []ServerConfig `yaml:"servers"`
}

// Duration decodes a Go duration string ("5s", "2m30s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) value() time.Duration { return time.Duration(d) }

// ListenConfig is one socket a ServerConfig should be bound to.
type ListenConfig struct {
	Host string     `yaml:"host"`
	Port string     `yaml:"port"`
	TLS  *TLSConfig `yaml:"tls"`
}

// TLSConfig names the PEM files backing one TLS listener.
type TLSConfig struct {
	CertificatePath string `yaml:"certificate_path"`
	PrivateKeyPath  string `yaml:"private_key_path"`
}

// LoggingConfig controls the per-server access log.
type LoggingConfig struct {
	Disable         bool     `yaml:"disable"`
	UseIPWare       bool     `yaml:"use_ipware"`
	TrustedHeaders  []string `yaml:"trusted_headers"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
	ProxyCount      int      `yaml:"proxy_count"`
	Strict          bool     `yaml:"strict"`
}

// ServerConfig is one virtual server: its listeners, host guards,
// server-global middleware stack, and the location chains answering
// requests.
type ServerConfig struct {
	Listen     []ListenConfig     `yaml:"listen"`
	ServerName []string           `yaml:"server_name"`
	Root       string             `yaml:"root"`
	Index      string             `yaml:"index"`
	Disabled   bool               `yaml:"disabled"`
	Sanitize   bool               `yaml:"sanitize"`
	Logging    LoggingConfig      `yaml:"logging"`
	Middleware []MiddlewareConfig `yaml:"middleware"`
	Chains     []ChainConfig      `yaml:"chains"`
}

// ChainConfig is one URL-prefixed, host-guarded sequence of links.
type ChainConfig struct {
	Prefix         string       `yaml:"prefix"`
	Guards         []string     `yaml:"guards"`
	BodyBufferSize int64        `yaml:"body_buffer_size"`
	Links          []LinkConfig `yaml:"links"`
}

// LinkConfig is one handler plus its own middleware stack and the
// status codes on which the chain should fall through to the next
// link instead of returning this one's response.
type LinkConfig struct {
	Handler    HandlerConfig      `yaml:"handler"`
	NextOn     []int              `yaml:"next_on"`
	Middleware []MiddlewareConfig `yaml:"middleware"`
}

// HandlerConfig is a tagged union over the five handler variants;
// Type selects which of the remaining fields apply.
type HandlerConfig struct {
	Type string `yaml:"type"` // file | redirect | static | fastcgi | proxy

	// file
	Root           string   `yaml:"root"`
	HiddenFiles    bool     `yaml:"hidden_files"`
	IndexFiles     []string `yaml:"index_files"`
	Browse         bool     `yaml:"browse"` // maps to File.ListDir; user-facing name kept distinct from the internal field
	AsyncThreshold int64    `yaml:"async_threshold"`

	// redirect
	TargetURI string `yaml:"target_uri"`
	Status    int    `yaml:"status"`

	// static
	Body        string            `yaml:"body"`
	ContentType string            `yaml:"content_type"`
	Headers     map[string]string `yaml:"headers"`

	// fastcgi
	ConnectAddr string           `yaml:"connect_addr"`
	ReadTimeout Duration         `yaml:"read_timeout"`
	SendTimeout Duration         `yaml:"send_timeout"`
	Pool        FastCGIPoolConfig `yaml:"pool"`

	// proxy
	Resolve           string            `yaml:"resolve"`
	Timeout           Duration          `yaml:"timeout"`
	MaxRedirects      int               `yaml:"max_redirects"`
	VerifySSL         *bool             `yaml:"verify_ssl"`
	ChangeHost        bool              `yaml:"change_host"`
	UpstreamHeaders   map[string]string `yaml:"upstream_headers"`
	DownstreamHeaders map[string]string `yaml:"downstream_headers"`
}

// FastCGIPoolConfig tunes a FastCGI handler's connection pool.
type FastCGIPoolConfig struct {
	MinIdle        int      `yaml:"min_idle"`
	MaxSize        int      `yaml:"max_size"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	MaxLifetime    Duration `yaml:"max_lifetime"`
}

// MiddlewareConfig is a tagged union over the eleven middleware
// variants; Type selects which of the remaining fields apply.
type MiddlewareConfig struct {
	Type string `yaml:"type"`

	// auth_basic / auth_basic_session
	HtpasswdFiles []string `yaml:"htpasswd_files"`
	Realm         string   `yaml:"realm"`
	CacheSize     int      `yaml:"cache_size"`

	// ip_ware
	TrustedHeaders []string `yaml:"trusted_headers"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	ProxyCount     int      `yaml:"proxy_count"`
	Strict         bool     `yaml:"strict"`

	// ip_filter
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`

	// mod_security
	Engine          string `yaml:"engine"`
	RequestBodyCap  int64  `yaml:"request_body_cap"`
	ResponseBodyCap int64  `yaml:"response_body_cap"`

	// rewrite
	Rules     []RewriteRuleConfig `yaml:"rules"`
	MaxRounds int                 `yaml:"max_rounds"`

	// rate_limit
	Limit         int      `yaml:"limit"`
	Period        Duration `yaml:"period"`
	Burst         int      `yaml:"burst"`
	ByPath        bool     `yaml:"by_path"`
	FailOpen      bool     `yaml:"fail_open"`
	ExposeHeaders bool     `yaml:"expose_headers"`

	// timeout
	Duration Duration `yaml:"duration"`

	// logger
	UseIPWare bool `yaml:"use_ipware"`

	// tracing
	Span           string            `yaml:"span"`
	SpanAttributes map[string]string `yaml:"span_attributes"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint"`
	Insecure       bool              `yaml:"insecure"`
}

// RewriteRuleConfig is one rewrite rule as YAML sees it, before its
// Match pattern is compiled into a *regexp.Regexp.
type RewriteRuleConfig struct {
	Match         string            `yaml:"match"`
	To            string            `yaml:"to"`
	ToQuery       string            `yaml:"to_query"`
	SetHeaders    map[string]string `yaml:"set_headers"`
	RemoveHeaders []string          `yaml:"remove_headers"`
	Status        int               `yaml:"status"`
}
