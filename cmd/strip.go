package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/lineno"
)

var stripCmd = &cobra.Command{
	Use:   "strip [file]",
	Short: "Remove #line directives from rendered output",
	Long: `Remove every #line directive from annotated output, which yields exactly the
output the template renders without line tracking. Reads stdin when no file
is given.

Examples:
  templine render page.erb | templine strip
  templine strip .templine/out/views/page.erb.out -o page.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStrip,
}

var stripFlags *StandardFlags

func init() {
	rootCmd.AddCommand(stripCmd)

	stripFlags = AddStandardFlags(stripCmd, "output")
}

func runStrip(cmd *cobra.Command, args []string) error {
	_, src, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	return stripFlags.writeOutput(cmd, lineno.StripDirectives(string(src)))
}
