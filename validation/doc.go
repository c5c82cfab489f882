// Package validation checks configuration and settings structs.
//
// Struct tag validation (go-playground/validator) covers settings leaves;
// field names in messages are the mapstructure keys the values were loaded
// from. The Validator collector covers checks that tags cannot express.
//
// # Struct Tag Validation
//
//	type CacheSettings struct {
//	    config.Settings
//	    Addr string `mapstructure:"addr" validate:"required,hostname_port"`
//	}
//	err := validation.Validate(&s)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", cfg.Name).OneOf("environment", cfg.Environment, envs)
//	err := v.Validate()
package validation
