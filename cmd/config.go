package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/templine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the configuration file and
TEMPLINE_ environment variables have been applied.

Examples:
  templine config show
  TEMPLINE_BUILD_WORKERS=8 templine config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for problems",
	Long: `Check the effective configuration. Errors make the command fail; warnings,
such as scan paths that do not exist, only fail it with --strict.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (yaml, json)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), dimColor.Sprint("# from "+file))
	}

	switch configFormat {
	case "yaml":
		raw, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = out.Write(raw)
		return err
	case "json":
		return printStructured(out, "json", cfg)
	default:
		return fmt.Errorf("invalid output format %s, must be one of: yaml, json", configFormat)
	}
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printFail(cmd.OutOrStdout(), "%v", err)
		return err
	}

	result := config.ValidateConfigWithDetails(cfg)
	out := cmd.OutOrStdout()

	for _, issue := range result.Errors {
		printFail(out, "%s: %s", issue.Field, issue.Message)
		printHints(cmd, issue)
	}
	for _, issue := range result.Warnings {
		printWarn(out, "%s: %s", issue.Field, issue.Message)
		printHints(cmd, issue)
	}

	switch {
	case result.HasErrors():
		return fmt.Errorf("configuration has %d errors", len(result.Errors))
	case configStrict && result.HasWarnings():
		return fmt.Errorf("configuration has %d warnings", len(result.Warnings))
	}
	printOK(out, "configuration is valid")
	return nil
}

func printHints(cmd *cobra.Command, issue config.ValidationError) {
	for _, hint := range issue.Suggestions {
		fmt.Fprintf(cmd.OutOrStdout(), "     %s\n", dimColor.Sprint("hint: "+hint))
	}
}
