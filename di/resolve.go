package di

import (
	"fmt"

	"github.com/kbukum/injectkit/errors"
)

// Register binds T to value in c.
//
// Example:
//
//	err := di.Register[Clock](c, systemClock{})
func Register[T any](c *Container, value T) error {
	return c.Register(TypeOf[T](), WithValue(value))
}

// Provide declares ctor as the lazy constructor for T.
//
// Example:
//
//	err := di.Provide[*sql.DB](c, openDB)
func Provide[T any](c *Container, ctor any) error {
	return c.Provide(TypeOf[T](), ctor)
}

// Resolve resolves T with type safety, returns error on failure.
//
// Example:
//
//	repo, err := di.Resolve[*UserRepository](c)
//	if err != nil {
//	    return fmt.Errorf("wiring user repository: %w", err)
//	}
func Resolve[T any](c *Container, overrides ...Params) (T, error) {
	var zero T
	instance, err := c.Resolve(TypeOf[T](), overrides...)
	if err != nil {
		return zero, err
	}
	if instance == nil {
		return zero, nil
	}
	result, ok := instance.(T)
	if !ok {
		return zero, errors.TypeMismatch("resolve", TypeOf[T]().String(), fmt.Sprintf("%T", instance))
	}
	return result, nil
}

// MustResolve resolves T, panics on error.
// Use this in composition roots where a missing binding is a programming error.
func MustResolve[T any](c *Container, overrides ...Params) T {
	result, err := Resolve[T](c, overrides...)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", TypeOf[T](), err))
	}
	return result
}

// TryResolve resolves T, returns zero value and false on failure.
// Use this when a dependency is optional.
//
// Example:
//
//	if metrics, ok := di.TryResolve[MetricsClient](c); ok {
//	    metrics.RecordEvent(...)
//	}
func TryResolve[T any](c *Container) (T, bool) {
	result, err := Resolve[T](c)
	if err != nil {
		var zero T
		return zero, false
	}
	return result, true
}
