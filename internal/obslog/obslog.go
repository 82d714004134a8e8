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

// Package obslog sets up bob's structured logger, adapted from
// Caddy's logging.go: a zap logger whose default level is overridable
// per-scope by the BOB_LOG environment variable, optionally writing to
// a rotated file via timberjack.
package obslog

import (
	"os"
	"strings"
	"sync"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes where and how bob logs, sourced from the loaded
// ServerConfig set (spec §6's logging keys) and the BOB_LOG env var.
type Config struct {
	Disable bool
	// Filter is the BOB_LOG-style string, e.g. "info,bob=debug". A bare
	// token (no "=") sets the default level, the last one winning; every
	// "scope=level" token overrides one named scope.
	Filter string

	// File, when set, directs output to a rotated log file instead of
	// stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// scopeLevel is one override parsed out of a filter string.
type scopeLevel struct {
	scope string
	level zapcore.Level
}

var (
	mu      sync.Mutex
	loggers = map[string]*zap.Logger{}
	root    *zap.Logger
)

// Init builds the root logger from cfg. A non-empty BOB_LOG
// environment variable replaces cfg.Filter, matching spec §6's
// "BOB_LOG overrides the logger's filter string".
func Init(cfg Config) (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if cfg.Disable {
		root = zap.NewNop()
		return root, nil
	}

	filter := cfg.Filter
	if env := os.Getenv("BOB_LOG"); env != "" {
		filter = env
	}
	defaultLevel, overrides := parseFilter(filter)

	var ws zapcore.WriteSyncer
	if cfg.File != "" {
		rotator := &timberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    firstNonZero(cfg.MaxSizeMB, 100),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		ws = zapcore.AddSync(rotator)
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, defaultLevel)

	root = zap.New(core)
	loggers = map[string]*zap.Logger{"": root}
	for _, o := range overrides {
		loggers[o.scope] = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, o.level))
	}
	return root, nil
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// For returns the logger for a named scope (e.g. a middleware or
// handler kind), falling back to the root logger when no override for
// that scope exists.
func For(scope string) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = zap.NewNop()
	}
	if l, ok := loggers[scope]; ok {
		return l.Named(scope)
	}
	return root.Named(scope)
}

// parseFilter parses a BOB_LOG-style string: "info,bob=debug,
// sanitizer=warn". A bare token with no "=" sets the default level;
// everything else scopes an override to one logger name.
func parseFilter(filter string) (zapcore.Level, []scopeLevel) {
	defaultLevel := zapcore.InfoLevel
	var overrides []scopeLevel

	for _, tok := range strings.Split(filter, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if eq := strings.IndexByte(tok, '='); eq >= 0 {
			scope, lvlStr := tok[:eq], tok[eq+1:]
			if lvl, err := zapcore.ParseLevel(lvlStr); err == nil {
				overrides = append(overrides, scopeLevel{scope: scope, level: lvl})
			}
			continue
		}
		if lvl, err := zapcore.ParseLevel(tok); err == nil {
			defaultLevel = lvl
		}
	}
	return defaultLevel, overrides
}
