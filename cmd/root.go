// Package cmd provides the templine command-line interface.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--config, --log-level, ...)
//  2. TEMPLINE_CONFIG_FILE: path of the configuration file
//  3. TEMPLINE_<SECTION>_<KEY> environment variables, e.g. TEMPLINE_BUILD_WORKERS
//  4. .templine.yml in the current directory
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/templine/internal/config"
	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "templine",
	Short: "Annotate template output with #line directives",
	Long: `Templine compiles ERB style templates, rewrites the compiled program so the
output tracks template line numbers, and emits #line directives wherever the
output drifts from the template. Tools that consume the generated text can
then report errors against the original template lines.

Quick Start:
  templine render page.erb --data-file data.yml   Annotated output
  templine render page.erb --plain                Output without directives
  templine build                                  Annotate every template
  templine watch                                  Rebuild on change
  templine strip out.txt                          Remove directives again`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .templine.yml, can also use TEMPLINE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points Viper at the configuration file and the environment.
// A missing configuration file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TEMPLINE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".templine")
	}

	config.SetDefaults()
	viper.SetEnvPrefix("TEMPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.WrapConfig(err, errors.CodeLoadConfig, "failed to load configuration")
	}
	return cfg, nil
}

// newLogger builds the logger described by the log section of cfg. Logs go
// to the command's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.CodeLoadConfig, "invalid log level")
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "templine",
	}), nil
}

// setup loads configuration and a logger for commands that need both.
func setup(cmd *cobra.Command) (context.Context, *config.Config, logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, cfg, logger, nil
}
