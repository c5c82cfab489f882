package bootstrap

import (
	"github.com/kbukum/injectkit/config"
)

// Config is the constraint for application configuration types. Any struct
// embedding config.ServiceConfig satisfies it through promoted methods.
//
//	type WorkerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Concurrency int `mapstructure:"concurrency"`
//	}
//
//	app, err := bootstrap.NewApp(&cfg)
type Config interface {
	config.Provider
	ApplyDefaults()
	Validate() error
}
