package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/injectkit/logger"
)

// FileSystem abstracts the file operations the loader needs, so tests can
// point discovery at a fake tree.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem implements FileSystem on the real disk.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file into the process environment. Variables that
// are already set keep their values.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Sources are the files configuration is read from. Either may be empty.
type Sources struct {
	ConfigFile string
	EnvFile    string
}

// LoaderConfig holds the loader dependencies and explicit file paths.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	// Discover enables searching standard locations for files that were
	// not given explicitly.
	Discover bool
}

// LoaderOption is a functional option for Load and NewFamily.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit YAML file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithoutDiscovery disables the search for config.yml and .env files.
func WithoutDiscovery() LoaderOption {
	return func(lc *LoaderConfig) { lc.Discover = false }
}

func newLoaderConfig(opts []LoaderOption) LoaderConfig {
	lc := LoaderConfig{FileSystem: OSFileSystem{}, Discover: true}
	for _, opt := range opts {
		opt(&lc)
	}
	return lc
}

// Sources returns the files to read for serviceName. Explicit paths win;
// missing ones are searched for when discovery is enabled.
func (lc LoaderConfig) Sources(serviceName string) Sources {
	src := Sources{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if !lc.Discover {
		return src
	}
	if src.ConfigFile == "" {
		src.ConfigFile = firstExisting(lc.FileSystem, configCandidates(serviceName))
	}
	if src.EnvFile == "" {
		src.EnvFile = firstExisting(lc.FileSystem, envCandidates(serviceName))
	}
	return src
}

// Load reads configuration for serviceName into cfg. Values come from the
// YAML file, then the environment (including a .env file); the environment
// wins. cfg is decoded through mapstructure tags.
func Load(serviceName string, cfg any, opts ...LoaderOption) error {
	lc := newLoaderConfig(opts)
	v := readSources(lc.Sources(serviceName), lc.FileSystem)
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

// readSources builds a viper instance over the YAML file and the current
// environment. A broken file is logged and skipped.
func readSources(src Sources, fs FileSystem) *viper.Viper {
	log := logger.WithComponent("config")
	v := viper.New()

	if src.ConfigFile != "" && fs.Exists(src.ConfigFile) {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("config file ignored", logger.Fields("file", src.ConfigFile, logger.FieldError, err.Error()))
		}
	}

	if src.EnvFile != "" && fs.Exists(src.EnvFile) {
		if err := fs.LoadEnv(src.EnvFile); err != nil {
			log.Warn("env file ignored", logger.Fields("file", src.EnvFile, logger.FieldError, err.Error()))
		}
	}

	v.AutomaticEnv()
	bindEnviron(v, os.Environ())
	return v
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

// shortName drops everything up to the last dash: "billing-worker" -> "worker".
func shortName(serviceName string) string {
	if idx := strings.LastIndex(serviceName, "-"); idx != -1 {
		return serviceName[idx+1:]
	}
	return serviceName
}

func configCandidates(serviceName string) []string {
	var paths []string
	for _, name := range dedupe([]string{serviceName, shortName(serviceName)}) {
		for _, up := range []string{"./", "../", "../../"} {
			paths = append(paths, fmt.Sprintf("%scmd/%s/config.yml", up, name))
		}
	}
	return append(paths, "./config/config.yml", "../config/config.yml", "./config.yml")
}

func envCandidates(serviceName string) []string {
	var dirs []string
	for _, name := range dedupe([]string{serviceName, shortName(serviceName)}) {
		dirs = append(dirs, searchDirs("cmd/"+name)...)
		dirs = append(dirs, searchDirs("config/"+name)...)
	}
	dirs = append(dirs, searchDirs("config")...)
	dirs = append(dirs, searchDirs("")...)

	var paths []string
	for _, file := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			paths = append(paths, dir+file)
		}
	}
	return dedupe(paths)
}

// searchDirs returns dir relative to the working directory and its two
// parents, each with a trailing slash.
func searchDirs(dir string) []string {
	if dir == "" {
		return []string{"./", "../", "../../"}
	}
	return []string{"./" + dir + "/", "../" + dir + "/", "../../" + dir + "/"}
}

// bindEnviron sets every variable in environ under each key variant it
// could stand for, so nested mapstructure keys pick it up.
func bindEnviron(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants lists the viper keys an environment variable may set.
//
//	DATABASE_MAX_CONNS -> [database_max_conns database.max.conns database.max_conns database_max.conns]
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	variants := []string{lower, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants,
			strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"),
			strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."),
		)
	}
	return dedupe(variants)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
