package di

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/logger"
)

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger the container reports registrations and
// failures to.
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) {
		c.base = l
	}
}

// WithMetrics sets the collector that receives injection timings.
func WithMetrics(m Metrics) Option {
	return func(c *Container) {
		c.metrics = m
	}
}

// WithSettings installs the family of externally configured leaf types.
func WithSettings(f SettingsFamily) Option {
	return func(c *Container) {
		c.settings = f
	}
}

// WithTracer sets the tracer used for di.resolve spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Container) {
		c.tracer = t
	}
}

// RegisterOption configures a single Register call.
type RegisterOption func(*registration)

type registration struct {
	value    any
	hasValue bool
	factory  any
	params   Params
}

// WithValue binds the key to an already constructed value.
func WithValue(v any) RegisterOption {
	return func(r *registration) {
		r.value = v
		r.hasValue = true
	}
}

// WithFactory binds the key to the result of resolving f, which may be a
// function, a *Func or a struct type.
func WithFactory(f any) RegisterOption {
	return func(r *registration) {
		r.factory = f
	}
}

// WithParameters binds named parameters of the factory directly.
func WithParameters(p Params) RegisterOption {
	return func(r *registration) {
		r.params = p
	}
}
