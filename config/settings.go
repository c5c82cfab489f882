package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/validation"
)

// Settings marks a struct as externally configured. A container built with
// a Family never injects the fields of such a struct; it loads the whole
// value from the environment instead.
//
//	type DatabaseSettings struct {
//	    config.Settings
//	    URL      string `mapstructure:"url" validate:"required"`
//	    MaxConns int    `mapstructure:"max_conns" validate:"gte=1"`
//	}
//
//	func (DatabaseSettings) SettingsPrefix() string { return "database" }
//
// With the prefix above, DATABASE_URL and DATABASE_MAX_CONNS fill the
// fields, as does a "database:" block in config.yml.
type Settings struct{}

// Prefixed settings read their keys below a common prefix.
type Prefixed interface {
	SettingsPrefix() string
}

// Defaulter fills in values the sources left unset.
type Defaulter interface {
	ApplyDefaults()
}

// Validator checks rules that validate tags cannot express.
type Validator interface {
	Validate() error
}

var settingsType = reflect.TypeFor[Settings]()

// Family loads Settings structs for a container. Every load reads the
// sources afresh, so each container sees the environment of the moment it
// first needs the value.
type Family struct {
	src Sources
	fs  FileSystem
	log *logger.Logger
}

var _ di.SettingsFamily = (*Family)(nil)

// NewFamily locates the config and .env files for serviceName once and
// returns a family reading from them and the process environment.
func NewFamily(serviceName string, opts ...LoaderOption) *Family {
	lc := newLoaderConfig(opts)
	src := lc.Sources(serviceName)
	f := &Family{
		src: src,
		fs:  lc.FileSystem,
		log: logger.WithComponent("settings"),
	}
	f.log.Debug("settings sources resolved", logger.Fields(
		logger.FieldService, serviceName,
		"config_file", src.ConfigFile,
		"env_file", src.EnvFile,
	))
	return f
}

// IsSettings reports whether t is a struct, or pointer to struct, that
// embeds Settings.
func (f *Family) IsSettings(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		if fld := t.Field(i); fld.Anonymous && fld.Type == settingsType {
			return true
		}
	}
	return false
}

// Load builds a value of type t from the sources, applies its defaults and
// validates it.
func (f *Family) Load(t reflect.Type) (any, error) {
	start := time.Now()
	ptr := t.Kind() == reflect.Pointer
	st := t
	if ptr {
		st = t.Elem()
	}
	pv := reflect.New(st)
	target := pv.Interface()

	v := readSources(f.src, f.fs)
	prefix := ""
	if p, ok := target.(Prefixed); ok {
		prefix = strings.ToLower(p.SettingsPrefix())
	}
	if prefix != "" {
		var err error
		if v, err = subtree(v, prefix); err != nil {
			return nil, errors.SettingsLoad(t.String(), err)
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return nil, errors.SettingsLoad(t.String(), err)
	}
	if d, ok := target.(Defaulter); ok {
		d.ApplyDefaults()
	}
	if err := validation.Validate(target); err != nil {
		return nil, errors.SettingsLoad(t.String(), err)
	}
	if sv, ok := target.(Validator); ok {
		if err := sv.Validate(); err != nil {
			return nil, errors.SettingsLoad(t.String(), err)
		}
	}

	f.log.Debug("settings loaded", logger.Fields(
		logger.FieldKey, t.String(),
		"prefix", prefix,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	if ptr {
		return target, nil
	}
	return pv.Elem().Interface(), nil
}

// subtree returns a viper instance holding only the keys below prefix.
// Settings are flattened first so file values and environment overrides
// under the same prefix are merged.
func subtree(v *viper.Viper, prefix string) (*viper.Viper, error) {
	sub := viper.New()
	node := any(v.AllSettings())
	for _, part := range strings.Split(prefix, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return sub, nil
		}
		node = m[part]
	}
	m, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("%s is a value, not a section", prefix)
		}
		return sub, nil
	}
	if err := sub.MergeConfigMap(m); err != nil {
		return nil, err
	}
	return sub, nil
}
