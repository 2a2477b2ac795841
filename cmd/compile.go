package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/compiler"
	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/rewriter"
)

var compileCmd = &cobra.Command{
	Use:     "compile [template]",
	Aliases: []string{"c"},
	Short:   "Compile a template to its intermediate program",
	Long: `Compile an ERB style template and print the intermediate program. Reads
stdin when no template is given.

With --rewrite the program is also rewritten for line tracking, which is the
form the render command evaluates.

Examples:
  templine compile views/index.erb
  templine compile views/index.erb --rewrite
  cat page.erb | templine compile --name page.erb`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

var (
	compileFlags   *StandardFlags
	compileRewrite bool
)

func init() {
	rootCmd.AddCommand(compileCmd)

	compileFlags = AddStandardFlags(compileCmd, "input", "output")
	compileCmd.Flags().BoolVarP(&compileRewrite, "rewrite", "r", false, "rewrite the program for line tracking")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	input, src, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	name := compileFlags.templateName(input)

	encoding := cfg.Render.Encoding
	if compileFlags.Encoding != "" {
		encoding = compileFlags.Encoding
	}

	c := compiler.New(compiler.WithEncoding(encoding), compiler.WithLogger(logger))
	prog, err := c.Compile(ctx, name, src)
	if err != nil {
		return errors.WrapTemplate(err, errors.CodeCompile, "failed to compile template")
	}

	if compileRewrite {
		prog = rewriter.Rewrite(prog, name)
	}
	return compileFlags.writeOutput(cmd, prog+"\n")
}
