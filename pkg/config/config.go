// Package config loads apiport settings from apiport.yml, the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "apiport.yml"

// EnvPrefix prefixes environment overrides, e.g. APIPORT_ANALYSIS_WORKERS.
const EnvPrefix = "APIPORT"

// Config represents apiport.yml
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Packages PackagesConfig `yaml:"packages" mapstructure:"packages"`
	Targets  TargetsConfig  `yaml:"targets" mapstructure:"targets"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CatalogConfig locates the API catalog.
type CatalogConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// PackagesConfig locates the package index.
type PackagesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TargetsConfig holds default targets and the alias map file.
type TargetsConfig struct {
	Default []string `yaml:"default" mapstructure:"default"`
	MapFile string   `yaml:"map_file" mapstructure:"map_file"`
}

// AnalysisConfig bounds and tunes the pipeline.
type AnalysisConfig struct {
	// MaxRequestBytes is the admission limit on the total size of input files.
	MaxRequestBytes          int64    `yaml:"max_request_bytes" mapstructure:"max_request_bytes"`
	Workers                  int      `yaml:"workers" mapstructure:"workers"`
	IgnoreFile               string   `yaml:"ignore_file" mapstructure:"ignore_file"`
	SuppressBreakingChanges  []string `yaml:"suppress_breaking_changes" mapstructure:"suppress_breaking_changes"`
	ExcludeAssemblies        []string `yaml:"exclude_assemblies" mapstructure:"exclude_assemblies"`
	FrameworkPublicKeyTokens []string `yaml:"framework_public_key_tokens" mapstructure:"framework_public_key_tokens"`
}

// OutputConfig controls report files.
type OutputConfig struct {
	Formats   []string `yaml:"formats" mapstructure:"formats"`
	File      string   `yaml:"file" mapstructure:"file"`
	Overwrite bool     `yaml:"overwrite" mapstructure:"overwrite"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path:      "catalog.yml",
			CacheSize: 4096,
		},
		Packages: PackagesConfig{
			Path: "packages.yml",
		},
		Analysis: AnalysisConfig{
			MaxRequestBytes: 100 << 20,
			Workers:         0,
		},
		Output: OutputConfig{
			Formats: []string{"markdown"},
			File:    "ApiPortAnalysis",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path (or DefaultFileName when empty) with environment
// overrides. A missing default file yields DefaultConfig plus environment; a
// missing explicit file is an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || explicit {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.cache_size", d.Catalog.CacheSize)
	v.SetDefault("packages.path", d.Packages.Path)
	v.SetDefault("targets.default", d.Targets.Default)
	v.SetDefault("targets.map_file", d.Targets.MapFile)
	v.SetDefault("analysis.max_request_bytes", d.Analysis.MaxRequestBytes)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.ignore_file", d.Analysis.IgnoreFile)
	v.SetDefault("analysis.suppress_breaking_changes", d.Analysis.SuppressBreakingChanges)
	v.SetDefault("analysis.exclude_assemblies", d.Analysis.ExcludeAssemblies)
	v.SetDefault("analysis.framework_public_key_tokens", d.Analysis.FrameworkPublicKeyTokens)
	v.SetDefault("output.formats", d.Output.Formats)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.overwrite", d.Output.Overwrite)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.MaxRequestBytes <= 0 {
		return fmt.Errorf("analysis.max_request_bytes must be positive, got %d", c.Analysis.MaxRequestBytes)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}
	if c.Catalog.CacheSize <= 0 {
		return fmt.Errorf("catalog.cache_size must be positive, got %d", c.Catalog.CacheSize)
	}
	return nil
}

// SaveConfig writes configuration to a YAML file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
