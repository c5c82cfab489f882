// Package errors provides the structured error type returned by injectkit.
// Every failure raised while registering or resolving dependencies carries
// a machine-readable ErrorCode, a human-readable message and, for failures
// deep in a dependency graph, the chain of targets that led to it.
package errors
