package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit, build time and Go toolchain of this binary.

Examples:
  templine version
  templine version --short
  templine version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var (
	versionShort  bool
	versionFormat string
)

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "print only the version")
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json, yaml)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if versionShort {
		_, err := fmt.Fprintln(out, version.GetShortVersion())
		return err
	}

	info := version.GetBuildInfo()
	switch versionFormat {
	case "text":
		_, err := fmt.Fprintln(out, info.String())
		return err
	case "json", "yaml":
		return printStructured(out, versionFormat, info)
	default:
		return fmt.Errorf("invalid output format %s, must be one of: text, json, yaml", versionFormat)
	}
}
