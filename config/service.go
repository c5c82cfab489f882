package config

import (
	"time"

	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/validation"
)

var environments = []string{"development", "staging", "production"}

// ServiceConfig contains the fields every composition root needs. Projects
// extend it by embedding it in their own config structs.
//
//	type WorkerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Concurrency int `mapstructure:"concurrency"`
//	}
type ServiceConfig struct {
	Name          string              `yaml:"name" mapstructure:"name"`
	Environment   string              `yaml:"environment" mapstructure:"environment"`
	Version       string              `yaml:"version" mapstructure:"version"`
	Debug         bool                `yaml:"debug" mapstructure:"debug"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ObservabilityConfig switches OpenTelemetry export on and off.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// MetricsConfig configures OTLP metric export.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// GetServiceConfig returns the embedded ServiceConfig. The method is
// promoted, so any struct embedding ServiceConfig satisfies Provider.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// Provider is implemented by every config struct that embeds ServiceConfig.
type Provider interface {
	GetServiceConfig() *ServiceConfig
}

// ApplyDefaults fills in unset values. Embedding structs that override it
// should call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()

	m := &c.Observability.Metrics
	if m.Endpoint == "" {
		m.Endpoint = "localhost:4318"
	}
	if m.Interval == 0 {
		m.Interval = 15 * time.Second
	}
	tr := &c.Observability.Tracing
	if tr.Endpoint == "" {
		tr.Endpoint = "localhost:4318"
	}
	if tr.Enabled && tr.SampleRate == 0 {
		tr.SampleRate = 1.0
	}
}

// Validate checks the service fields and returns an INVALID_INPUT error
// naming every bad key.
func (c *ServiceConfig) Validate() error {
	v := validation.New()
	v.Required("name", c.Name).
		OneOf("environment", c.Environment, environments).
		Range("observability.tracing.sample_rate", c.Observability.Tracing.SampleRate, 0, 1).
		Custom(c.Observability.Metrics.Interval >= 0, "observability.metrics.interval", "must not be negative")
	if err := c.Logging.Validate(); err != nil {
		v.AddError("logging", err.Error())
	}
	return v.Validate()
}
