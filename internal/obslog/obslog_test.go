package obslog

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseFilterDefaultOnly(t *testing.T) {
	lvl, overrides := parseFilter("debug")
	if lvl != zapcore.DebugLevel {
		t.Fatalf("expected debug default, got %v", lvl)
	}
	if len(overrides) != 0 {
		t.Fatalf("expected no overrides, got %v", overrides)
	}
}

func TestParseFilterWithScopeOverrides(t *testing.T) {
	lvl, overrides := parseFilter("info,bob=debug,sanitizer=warn")
	if lvl != zapcore.InfoLevel {
		t.Fatalf("expected info default, got %v", lvl)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}
	byScope := map[string]zapcore.Level{}
	for _, o := range overrides {
		byScope[o.scope] = o.level
	}
	if byScope["bob"] != zapcore.DebugLevel {
		t.Fatalf("expected bob=debug override, got %v", byScope["bob"])
	}
	if byScope["sanitizer"] != zapcore.WarnLevel {
		t.Fatalf("expected sanitizer=warn override, got %v", byScope["sanitizer"])
	}
}

func TestParseFilterEmptyDefaultsToInfo(t *testing.T) {
	lvl, overrides := parseFilter("")
	if lvl != zapcore.InfoLevel {
		t.Fatalf("expected info default for empty filter, got %v", lvl)
	}
	if len(overrides) != 0 {
		t.Fatalf("expected no overrides, got %v", overrides)
	}
}

func TestInitDisabledProducesNopLogger(t *testing.T) {
	logger, err := Init(Config{Disable: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	// A nop-core logger's Check should report not-enabled for any level.
	if ce := logger.Check(zapcore.ErrorLevel, "should not log"); ce != nil {
		t.Fatal("expected disabled logger to never be enabled")
	}
}
