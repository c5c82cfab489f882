package config

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" || !cfg.Debug {
			t.Errorf("expected development with debug, got %q debug=%v", cfg.Environment, cfg.Debug)
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected service name propagated to logging, got %q", cfg.Logging.ServiceName)
		}
		if cfg.Observability.Metrics.Interval != 15*time.Second {
			t.Errorf("expected default metric interval, got %v", cfg.Observability.Metrics.Interval)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})

	t.Run("enabled tracing samples everything by default", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.Observability.Tracing.Enabled = true
		cfg.ApplyDefaults()
		if cfg.Observability.Tracing.SampleRate != 1.0 {
			t.Errorf("expected sample rate 1, got %v", cfg.Observability.Tracing.SampleRate)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() ServiceConfig {
		cfg := ServiceConfig{Name: "svc", Environment: "staging"}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "name: is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "environment: must be one of"},
		{"bad sample rate", func(c *ServiceConfig) { c.Observability.Tracing.SampleRate = 2 }, "observability.tracing.sample_rate"},
		{"bad logging level", func(c *ServiceConfig) { c.Logging.Level = "loud" }, "logging.level must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
			}
		})
	}
}

func TestServiceConfigProvider(t *testing.T) {
	type workerConfig struct {
		ServiceConfig `mapstructure:",squash"`
		Concurrency   int `mapstructure:"concurrency"`
	}
	var p Provider = &workerConfig{ServiceConfig: ServiceConfig{Name: "worker"}}
	if p.GetServiceConfig().Name != "worker" {
		t.Errorf("expected promoted service config, got %+v", p.GetServiceConfig())
	}
}

func TestLoadWithYAML(t *testing.T) {
	path := writeFile(t, "config.yml", `
name: test-service
environment: staging
logging:
  level: warn
observability:
  metrics:
    enabled: true
    interval: 30s
`)
	var cfg ServiceConfig
	if err := Load("test-service", &cfg, WithConfigFile(path), WithoutDiscovery()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "test-service" || cfg.Environment != "staging" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected logging level warn, got %q", cfg.Logging.Level)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Interval != 30*time.Second {
		t.Errorf("unexpected metrics config %+v", cfg.Observability.Metrics)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	path := writeFile(t, "config.yml", "logging:\n  level: warn\n  format: json\n")
	t.Setenv("LOGGING_LEVEL", "debug")

	var cfg ServiceConfig
	if err := Load("svc", &cfg, WithConfigFile(path), WithoutDiscovery()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected file value kept, got %q", cfg.Logging.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg ServiceConfig
	if err := Load("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithoutDiscovery()); err != nil {
		t.Fatalf("expected Load to succeed with missing file, got %v", err)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"/srv/.env": true}}
	var cfg ServiceConfig
	if err := Load("svc", &cfg, WithFileSystem(fs), WithEnvFile("/srv/.env"), WithoutDiscovery()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !slices.Equal(fs.loaded, []string{"/srv/.env"}) {
		t.Errorf("expected env file to be loaded, got %v", fs.loaded)
	}
}

func TestSourcesDiscovery(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		wantConfig string
		wantEnv    string
	}{
		{"service dir", []string{"./cmd/billing-worker/config.yml", "./cmd/billing-worker/.env"}, "./cmd/billing-worker/config.yml", "./cmd/billing-worker/.env"},
		{"short name", []string{"../cmd/worker/config.yml"}, "../cmd/worker/config.yml", ""},
		{"service env file first", []string{"./.env", "./config/.env.billing-worker"}, "", "./config/.env.billing-worker"},
		{"root fallback", []string{"./config.yml", "../.env"}, "./config.yml", "../.env"},
		{"nothing", nil, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &mockFS{files: map[string]bool{}}
			for _, f := range tc.files {
				fs.files[f] = true
			}
			src := newLoaderConfig([]LoaderOption{WithFileSystem(fs)}).Sources("billing-worker")
			if src.ConfigFile != tc.wantConfig {
				t.Errorf("expected config %q, got %q", tc.wantConfig, src.ConfigFile)
			}
			if src.EnvFile != tc.wantEnv {
				t.Errorf("expected env %q, got %q", tc.wantEnv, src.EnvFile)
			}
		})
	}
}

func TestSourcesExplicitWins(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./config.yml": true}}
	src := newLoaderConfig([]LoaderOption{WithFileSystem(fs), WithConfigFile("/etc/app.yml")}).Sources("svc")
	if src.ConfigFile != "/etc/app.yml" {
		t.Errorf("expected explicit path, got %q", src.ConfigFile)
	}

	src = newLoaderConfig([]LoaderOption{WithFileSystem(fs), WithoutDiscovery()}).Sources("svc")
	if src.ConfigFile != "" {
		t.Errorf("expected no discovery, got %q", src.ConfigFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("DATABASE_MAX_CONNS")
	for _, want := range []string{"database_max_conns", "database.max.conns", "database.max_conns", "database_max.conns"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected variant %q in %v", want, got)
		}
	}
	if got := envKeyVariants("PORT"); !slices.Equal(got, []string{"port"}) {
		t.Errorf("expected single variant, got %v", got)
	}
}

type dbSettings struct {
	Settings
	URL      string        `mapstructure:"url" validate:"required"`
	MaxConns int           `mapstructure:"max_conns" validate:"gte=1"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (dbSettings) SettingsPrefix() string { return "injdb" }

func (s *dbSettings) ApplyDefaults() {
	if s.Timeout == 0 {
		s.Timeout = 5 * time.Second
	}
}

type flagSettings struct {
	Settings
	Mode string `mapstructure:"injflag_mode"`
}

func (s flagSettings) Validate() error {
	if s.Mode == "off" {
		return errors.Validation("injflag_mode: cannot be off")
	}
	return nil
}

func newTestFamily(opts ...LoaderOption) *Family {
	return NewFamily("svc", append([]LoaderOption{WithoutDiscovery()}, opts...)...)
}

func TestFamilyIsSettings(t *testing.T) {
	f := newTestFamily()
	tests := []struct {
		typ  reflect.Type
		want bool
	}{
		{reflect.TypeFor[dbSettings](), true},
		{reflect.TypeFor[*dbSettings](), true},
		{reflect.TypeFor[ServiceConfig](), false},
		{reflect.TypeFor[string](), false},
		{reflect.TypeFor[Settings](), false},
	}
	for _, tc := range tests {
		if got := f.IsSettings(tc.typ); got != tc.want {
			t.Errorf("IsSettings(%s) = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestFamilyLoadFromEnvironment(t *testing.T) {
	t.Setenv("INJDB_URL", "postgres://localhost/app")
	t.Setenv("INJDB_MAX_CONNS", "8")

	v, err := newTestFamily().Load(reflect.TypeFor[dbSettings]())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s := v.(dbSettings)
	if s.URL != "postgres://localhost/app" || s.MaxConns != 8 {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.Timeout != 5*time.Second {
		t.Errorf("expected default timeout, got %v", s.Timeout)
	}
}

func TestFamilyLoadMergesFileAndEnvironment(t *testing.T) {
	path := writeFile(t, "config.yml", "injdb:\n  url: postgres://file/app\n  max_conns: 2\n  timeout: 1s\n")
	t.Setenv("INJDB_MAX_CONNS", "16")

	v, err := newTestFamily(WithConfigFile(path)).Load(reflect.TypeFor[*dbSettings]())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s := v.(*dbSettings)
	if s.URL != "postgres://file/app" {
		t.Errorf("expected url from file, got %q", s.URL)
	}
	if s.MaxConns != 16 {
		t.Errorf("expected env to win, got %d", s.MaxConns)
	}
	if s.Timeout != time.Second {
		t.Errorf("expected timeout from file, got %v", s.Timeout)
	}
}

func TestFamilyLoadValidation(t *testing.T) {
	t.Setenv("INJDB_MAX_CONNS", "0")

	_, err := newTestFamily().Load(reflect.TypeFor[dbSettings]())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.HasCode(err, errors.ErrCodeSettingsLoad) {
		t.Errorf("expected SETTINGS_LOAD, got %v", err)
	}
	for _, want := range []string{"url: is required", "max_conns: must be greater than or equal to 1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestFamilyLoadRunsValidateMethod(t *testing.T) {
	t.Setenv("INJFLAG_MODE", "off")

	_, err := newTestFamily().Load(reflect.TypeFor[flagSettings]())
	if err == nil || !strings.Contains(err.Error(), "cannot be off") {
		t.Errorf("expected Validate error, got %v", err)
	}
}

type dbClient struct {
	Settings dbSettings
}

func TestFamilyThroughContainer(t *testing.T) {
	t.Setenv("INJDB_URL", "postgres://localhost/app")
	t.Setenv("INJDB_MAX_CONNS", "4")

	c := di.New(di.WithLogger(logger.NewNop()), di.WithSettings(newTestFamily()))
	client, err := di.Resolve[*dbClient](c)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if client.Settings.MaxConns != 4 {
		t.Errorf("expected settings injected, got %+v", client.Settings)
	}

	again, err := di.Resolve[dbSettings](c)
	if err != nil || again.URL != client.Settings.URL {
		t.Errorf("expected settings resolvable directly, got %+v, %v", again, err)
	}
}

func TestSubtreeRejectsScalarPrefix(t *testing.T) {
	t.Setenv("INJSCALAR", "x")
	v := readSources(Sources{}, OSFileSystem{})
	if _, err := subtree(v, "injscalar"); err == nil {
		t.Error("expected error for scalar prefix")
	}
	sub, err := subtree(v, "injabsent")
	if err != nil || len(sub.AllKeys()) != 0 {
		t.Errorf("expected empty subtree, got %v, %v", sub.AllKeys(), err)
	}
}
