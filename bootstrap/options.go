package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	container       *di.Container
	settings        di.SettingsFamily
	metrics         di.Metrics
	summaryOut      io.Writer
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithContainer uses c as the root container instead of a new one.
func WithContainer(c *di.Container) Option {
	return func(o *appOptions) {
		o.container = c
	}
}

// WithSettings replaces the settings family the container loads settings
// leaves with. By default a config.Family for the service is used.
func WithSettings(f di.SettingsFamily) Option {
	return func(o *appOptions) {
		o.settings = f
	}
}

// WithMetrics sets the injection metrics collector. It takes precedence
// over the one built from the observability config.
func WithMetrics(m di.Metrics) Option {
	return func(o *appOptions) {
		o.metrics = m
	}
}

// WithSummaryOutput sets where the startup summary is written. Pass
// io.Discard to silence it.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *appOptions) {
		o.summaryOut = w
	}
}
