// Package config loads templine settings through Viper from .templine.yml,
// TEMPLINE_ environment variables and command-line flags.
//
// Settings are grouped in three sections: build (which templates are
// annotated and where the output goes), render (source encoding and template
// data) and log.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a setting is absent.
const (
	DefaultOutputDir = ".templine/out"
	DefaultWorkers   = 4
	DefaultCacheSize = 64 << 20
	DefaultEncoding  = "utf-8"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

type Config struct {
	Build       BuildConfig  `yaml:"build" mapstructure:"build"`
	Render      RenderConfig `yaml:"render" mapstructure:"render"`
	Log         LogConfig    `yaml:"log" mapstructure:"log"`
	TargetFiles []string     `yaml:"-" mapstructure:"-"` // CLI arguments, not from config file
}

type BuildConfig struct {
	ScanPaths       []string `yaml:"scan_paths" mapstructure:"scan_paths"`
	Extensions      []string `yaml:"extensions" mapstructure:"extensions"`
	ExcludePatterns []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	OutputDir       string   `yaml:"output_dir" mapstructure:"output_dir"`
	Workers         int      `yaml:"workers" mapstructure:"workers"`
	CacheSize       int64    `yaml:"cache_size" mapstructure:"cache_size"`
}

type RenderConfig struct {
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	DataFile string `yaml:"data_file" mapstructure:"data_file"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load builds a Config from the global Viper instance, applies defaults and
// validates the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Lists set through viper.Set or env vars may arrive as one comma
	// separated string.
	for key, dst := range map[string]*[]string{
		"build.scan_paths":       &config.Build.ScanPaths,
		"build.extensions":       &config.Build.Extensions,
		"build.exclude_patterns": &config.Build.ExcludePatterns,
	} {
		if len(*dst) == 0 && viper.IsSet(key) {
			*dst = viper.GetStringSlice(key)
		}
		*dst = splitList(*dst)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults registers every key with Viper so that TEMPLINE_ environment
// variables are seen by Unmarshal even when no config file mentions them.
func SetDefaults() {
	viper.SetDefault("build.scan_paths", []string{"."})
	viper.SetDefault("build.extensions", []string{".erb", ".tmpl"})
	viper.SetDefault("build.exclude_patterns", []string{"*.bak", "*~"})
	viper.SetDefault("build.output_dir", DefaultOutputDir)
	viper.SetDefault("build.workers", DefaultWorkers)
	viper.SetDefault("build.cache_size", DefaultCacheSize)
	viper.SetDefault("render.encoding", DefaultEncoding)
	viper.SetDefault("render.data_file", "")
	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.format", DefaultLogFormat)
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if len(config.Build.ScanPaths) == 0 {
		config.Build.ScanPaths = []string{"."}
	}
	if len(config.Build.Extensions) == 0 {
		config.Build.Extensions = []string{".erb", ".tmpl"}
	}
	for i, ext := range config.Build.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			config.Build.Extensions[i] = "." + ext
		}
	}
	if len(config.Build.ExcludePatterns) == 0 {
		config.Build.ExcludePatterns = []string{"*.bak", "*~"}
	}
	if config.Build.OutputDir == "" {
		config.Build.OutputDir = DefaultOutputDir
	}
	if config.Build.Workers == 0 {
		config.Build.Workers = DefaultWorkers
	}
	if config.Build.CacheSize == 0 {
		config.Build.CacheSize = DefaultCacheSize
	}

	if config.Render.Encoding == "" {
		config.Render.Encoding = DefaultEncoding
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}

// splitList expands comma separated entries such as the value of
// TEMPLINE_BUILD_EXTENSIONS=".erb,.tmpl".
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Dump renders the effective configuration as YAML.
func Dump(config *Config) ([]byte, error) {
	return yaml.Marshal(config)
}

// IsExcluded reports whether a template path matches one of the exclude
// patterns. Patterns are matched against the base name and the full path.
func (b *BuildConfig) IsExcluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range b.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}

// IsTemplate reports whether path has one of the configured extensions.
func (b *BuildConfig) IsTemplate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range b.Extensions {
		if strings.ToLower(want) == ext {
			return true
		}
	}
	return false
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	if err := validateRenderConfig(&config.Render); err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	for _, path := range config.ScanPaths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid scan path '%s': %w", path, err)
		}
	}

	if err := validatePath(config.OutputDir); err != nil {
		return fmt.Errorf("invalid output_dir '%s': %w", config.OutputDir, err)
	}
	if filepath.IsAbs(filepath.Clean(config.OutputDir)) {
		return fmt.Errorf("output_dir should be relative path: %s", config.OutputDir)
	}

	if config.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", config.Workers)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", config.CacheSize)
	}

	for _, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}
	return nil
}

func validateRenderConfig(config *RenderConfig) error {
	if config.DataFile != "" {
		if err := validatePath(config.DataFile); err != nil {
			return fmt.Errorf("invalid data_file '%s': %w", config.DataFile, err)
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
