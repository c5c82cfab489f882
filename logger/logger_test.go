package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "injectkit", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return out
}

func TestGlobalLoggerFromEnv(t *testing.T) {
	prev := globalLogger
	defer func() { globalLogger = prev }()
	globalLogger = nil
	t.Setenv("LOG_LEVEL", "warn")

	l := GetGlobalLogger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if got := l.logger.GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn level from env, got %v", got)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	l := New(&Config{Level: "invalid-level", Format: "json"}, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "debug").WithComponent("di")

	l.Debug("dependency registered", Fields(FieldKey, "*app.Repo", FieldScope, 0))

	line := decodeLine(t, &buf)
	if line["message"] != "dependency registered" {
		t.Errorf("unexpected message %v", line["message"])
	}
	if line[FieldComponent] != "di" {
		t.Errorf("expected component=di, got %v", line[FieldComponent])
	}
	if line[FieldKey] != "*app.Repo" {
		t.Errorf("expected key field, got %v", line[FieldKey])
	}
	if line[FieldService] != "injectkit" {
		t.Errorf("expected service field, got %v", line[FieldService])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered at info level, got %q", buf.String())
	}

	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info").WithError(errors.New("boom"))
	l.Error("failed")

	line := decodeLine(t, &buf)
	if line["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", line["error"])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info").WithFields(map[string]interface{}{FieldContainerID: "abc"})
	l.Info("hello")

	line := decodeLine(t, &buf)
	if line[FieldContainerID] != "abc" {
		t.Errorf("expected container_id=abc, got %v", line[FieldContainerID])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "injectkit", &buf)
	l.Info("ready")

	out := buf.String()
	if !strings.Contains(out, "[INJ][INF]") {
		t.Errorf("expected service and level tags, got %q", out)
	}
	if !strings.Contains(out, "ready") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.WithComponent("x").Error("discarded too")
}

func TestGlobalLogger(t *testing.T) {
	prev := globalLogger
	defer func() { globalLogger = prev }()

	var buf bytes.Buffer
	SetGlobalLogger(newJSONLogger(&buf, "debug"))

	Info("global info")
	if !strings.Contains(buf.String(), "global info") {
		t.Errorf("expected global logger output, got %q", buf.String())
	}

	buf.Reset()
	WithComponent("resolver").Warn("tagged")
	line := decodeLine(t, &buf)
	if line[FieldComponent] != "resolver" {
		t.Errorf("expected component tag, got %v", line[FieldComponent])
	}
}

func TestRoute(t *testing.T) {
	named := NewNop()
	Route("custom", named)
	defer Route("custom", nil)

	if WithComponent("custom") != named {
		t.Error("expected routed logger to be returned")
	}
	if WithComponent("unrouted-name") == nil {
		t.Error("expected fallback logger for unknown name")
	}

	Route("custom", nil)
	if WithComponent("custom") == named {
		t.Error("expected route to be removed")
	}
}

func TestRouteComponents(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&Config{Level: "info", Format: "json"}, "svc", &buf)
	RouteComponents(base, "queue", "scope")
	defer Route("queue", nil)
	defer Route("scope", nil)

	WithComponent("queue").Info("hello")
	if !strings.Contains(buf.String(), `"component":"queue"`) {
		t.Errorf("expected queue component, got %q", buf.String())
	}
}

func TestInit(t *testing.T) {
	prev := globalLogger
	defer func() { globalLogger = prev }()

	Init(Config{ServiceName: "svc", Level: "warn", Format: "json", Output: "stderr"})
	if GetGlobalLogger().service != "svc" {
		t.Errorf("expected service svc, got %q", GetGlobalLogger().service)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}

	cfg.Level = "loud"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected level validation error, got %v", err)
	}

	cfg.Level = "info"
	cfg.Format = "xml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("expected format validation error, got %v", err)
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields("a", 1, "b", "two", 3, "ignored")
	if f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields %v", f)
	}
	if len(f) != 2 {
		t.Errorf("expected non-string keys to be skipped, got %v", f)
	}

	ef := ErrorFields("resolve", errors.New("bad"))
	if ef[FieldOperation] != "resolve" || ef[FieldError] != "bad" {
		t.Errorf("unexpected error fields %v", ef)
	}

	df := DurationFields("inject", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", df[FieldDuration])
	}
}

func TestOutputWriter(t *testing.T) {
	if outputWriter("stderr") != os.Stderr {
		t.Error("expected stderr")
	}
	if outputWriter("anything") != os.Stdout {
		t.Error("expected stdout fallback")
	}
}
