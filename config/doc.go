// Package config loads service configuration and settings leaves.
//
// Values come from an optional config.yml, an optional .env file and the
// process environment, in increasing order of precedence. Environment
// variables map onto nested keys: LOGGING_LEVEL sets logging.level.
//
// # Service Configuration
//
//	var cfg config.ServiceConfig
//	if err := config.Load("billing-worker", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
//
// # Settings Leaves
//
// Structs embedding Settings are loaded by a Family when a container
// resolves them, instead of having their fields injected:
//
//	c := di.New(di.WithSettings(config.NewFamily("billing-worker")))
//	db, err := di.Resolve[DatabaseSettings](c)
package config
