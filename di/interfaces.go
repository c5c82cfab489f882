package di

import (
	"reflect"
	"time"
)

// Initializer is implemented by struct targets that need to finish their
// own setup once every field has been injected. An error aborts resolution
// and is returned to the caller as is.
type Initializer interface {
	Init() error
}

// SettingsFamily recognises types whose values come from outside the graph,
// typically the process environment. The resolver treats such types as
// leaves and never inspects their fields.
type SettingsFamily interface {
	IsSettings(t reflect.Type) bool
	Load(t reflect.Type) (any, error)
}

// Metrics receives the time spent resolving the dependencies of an injected
// function, keyed by the function's name.
type Metrics interface {
	SaveMetric(name string, d time.Duration)
}

// MetricsFunc adapts a plain function to Metrics.
type MetricsFunc func(name string, d time.Duration)

// SaveMetric calls f(name, d).
func (f MetricsFunc) SaveMetric(name string, d time.Duration) { f(name, d) }
