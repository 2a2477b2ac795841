package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/compiler"
	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/logging"
	"github.com/conneroisu/templine/internal/renderer"
	"github.com/conneroisu/templine/internal/rewriter"
)

var renderCmd = &cobra.Command{
	Use:     "render [template]",
	Aliases: []string{"r"},
	Short:   "Render a template with #line directives",
	Long: `Compile, rewrite and evaluate a template. The output carries a #line
directive wherever it stops matching the template's line numbering. Embedded
code is not executed; <%= %> expressions are evaluated against the template
data with pongo2 expression syntax.

Examples:
  templine render page.erb --data '{"user": {"name": "Ann"}}'
  templine render page.erb --data-file data.yml -o page.out
  templine render page.erb --plain
  templine render page.prog --program`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderFlags   *StandardFlags
	renderPlain   bool
	renderProgram bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "input", "data", "output")
	renderCmd.Flags().BoolVar(&renderPlain, "plain", false, "render without line tracking")
	renderCmd.Flags().BoolVar(&renderProgram, "program", false, "input is an already compiled program")
}

func runRender(cmd *cobra.Command, args []string) error {
	if err := renderFlags.ValidateFlags(); err != nil {
		return err
	}

	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	data, err := renderFlags.ParseData(cfg.Render.DataFile)
	if err != nil {
		return err
	}

	input, src, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	name := renderFlags.templateName(input)

	timer := logging.StartOperation(logger, "render")

	prog := string(src)
	if !renderProgram {
		encoding := cfg.Render.Encoding
		if renderFlags.Encoding != "" {
			encoding = renderFlags.Encoding
		}
		c := compiler.New(compiler.WithEncoding(encoding), compiler.WithLogger(logger))
		if prog, err = c.Compile(ctx, name, src); err != nil {
			return errors.WrapTemplate(err, errors.CodeCompile, "failed to compile template")
		}
	}
	if !renderPlain {
		prog = rewriter.Rewrite(prog, name)
	}

	out, err := renderer.New(renderer.WithLogger(logger)).Render(ctx, name, prog, data)
	if err != nil {
		timer.EndWithError(ctx, err)
		return errors.WrapTemplate(err, errors.CodeRender, "failed to render template")
	}
	timer.End(ctx, "template", name)

	return renderFlags.writeOutput(cmd, out)
}
