// Package config loads classgraph settings from an optional YAML file.
package config

import (
	"os"
	"slices"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/classgraph/internal/logging"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = ".classgraph.yaml"

// Output formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatHTML, FormatJSON}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.Base("invalid config")

// Config holds everything the CLI and MCP server need to run an analysis.
type Config struct {
	// OutputDir receives rendered artifacts.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// Format is html or json.
	Format string `yaml:"format" json:"format"`
	// ConstructorLabel is the display label of constructor nodes.
	ConstructorLabel string `yaml:"constructor_label" json:"constructor_label"`
	// CacheDir holds the analysis cache. Empty disables caching.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Parallel classifies methods concurrently.
	Parallel bool `yaml:"parallel" json:"parallel"`
	// Workers bounds concurrent work in parallel and batch mode. Zero means
	// one per CPU.
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		OutputDir:        "out",
		Format:           FormatHTML,
		ConstructorLabel: "Constructor",
		CacheDir:         ".classgraph/cache",
		LogLevel:         "info",
	}
}

// Load reads path on top of the defaults. An empty path means DefaultFile.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return errors.Errorf("%w: format %q, want one of %v", ErrInvalid, c.Format, Formats)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("%w: log_level %q, want one of %v", ErrInvalid, c.LogLevel, logging.Levels)
	}
	if c.Workers < 0 {
		return errors.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if c.OutputDir == "" {
		return errors.Errorf("%w: output_dir is empty", ErrInvalid)
	}
	return nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
