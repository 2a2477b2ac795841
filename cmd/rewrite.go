package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/rewriter"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [program]",
	Short: "Rewrite a compiled program for line tracking",
	Long: `Rewrite an intermediate program produced by the compile command so that its
output is built by a line counting buffer. Reads stdin when no program is
given. Rewriting an already rewritten program changes nothing.

Examples:
  templine compile page.erb | templine rewrite --name page.erb
  templine rewrite page.prog --name views/page.erb -o page.lines.prog`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

var rewriteFlags *StandardFlags

func init() {
	rootCmd.AddCommand(rewriteCmd)

	rewriteFlags = &StandardFlags{}
	rewriteCmd.Flags().StringVarP(&rewriteFlags.Name, "name", "n", "", "template name used in #line directives (default is the input path)")
	rewriteCmd.Flags().StringVarP(&rewriteFlags.Output, "output", "o", "", "write to file instead of stdout")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	input, src, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	text := string(src)
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	out := rewriter.Rewrite(text, rewriteFlags.templateName(input))
	if trailing {
		out += "\n"
	}
	return rewriteFlags.writeOutput(cmd, out)
}
