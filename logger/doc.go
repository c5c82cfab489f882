// Package logger provides structured logging for injectkit using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("di")
//	log.Debug("dependency registered", logger.Fields(logger.FieldKey, "*app.Repo"))
//
// Components look their logger up by name, so an application can route
// them all to its own logger:
//
//	logger.RouteComponents(appLogger, "config", "taskqueue")
package logger
