package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/templine/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)
	return builder.String()
}

// ValidateConfigWithDetails checks a loaded configuration and reports
// problems that Load tolerates, such as scan paths that do not exist yet.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	if err := validateConfig(config); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "config",
			Message: err.Error(),
		})
	}

	validateBuildConfigDetails(&config.Build, result)
	validateRenderConfigDetails(&config.Render, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateBuildConfigDetails(config *BuildConfig, result *ValidationResult) {
	for i, path := range config.ScanPaths {
		if !pathExists(path) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   fmt.Sprintf("build.scan_paths[%d]", i),
				Value:   path,
				Message: "directory does not exist",
				Suggestions: []string{
					"Create the directory: mkdir -p " + path,
					"Remove the path if not needed",
				},
			})
		}
	}

	if len(config.Extensions) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "build.extensions",
			Value:       config.Extensions,
			Message:     "no template extensions - no templates will be found",
			Suggestions: []string{"Add '.erb' to annotate ERB templates"},
		})
	}

	if config.Workers > 64 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "build.workers",
			Value:       config.Workers,
			Message:     "unusually high worker count",
			Suggestions: []string{"Templates are small; 4-8 workers is usually enough"},
		})
	}
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	if _, err := htmlindex.Get(config.Encoding); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "render.encoding",
			Value:   config.Encoding,
			Message: fmt.Sprintf("unsupported encoding %q", config.Encoding),
			Suggestions: []string{
				"Use a WHATWG encoding label such as 'utf-8' or 'latin1'",
			},
		})
	}

	if config.DataFile != "" && !pathExists(config.DataFile) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "render.data_file",
			Value:       config.DataFile,
			Message:     "file does not exist",
			Suggestions: []string{"Point data_file at a .json, .yaml or .toml file"},
		})
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
