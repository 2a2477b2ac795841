package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/renderer"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Input flags
	Name     string
	Encoding string

	// Data flags
	Data     string
	DataFile string

	// Output flags
	Output       string
	OutputFormat string
	Quiet        bool
}

// AddStandardFlags adds the named flag groups to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "input":
			cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "template name used in #line directives (default is the input path)")
			cmd.Flags().StringVarP(&flags.Encoding, "encoding", "e", "", "template source encoding (default from render.encoding)")
			AddFlagValidation(cmd, "encoding", ValidateEncoding)
		case "data":
			cmd.Flags().StringVar(&flags.Data, "data", "", "template data (JSON, or @file.json/.yaml/.toml)")
			cmd.Flags().StringVarP(&flags.DataFile, "data-file", "d", "", "template data file (default from render.data_file)")
		case "output":
			cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "write to file instead of stdout")
		case "format":
			cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", "text", "output format (text, json, yaml)")
			cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress per-template output")
		}
	}

	return flags
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Data != "" && f.DataFile != "" {
		return fmt.Errorf("cannot specify both --data and --data-file")
	}

	switch f.OutputFormat {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %s, must be one of: text, json, yaml", f.OutputFormat)
	}
	return nil
}

// ParseData resolves template data from --data-file, an @file reference in
// --data, inline JSON in --data, or fallback, in that order.
func (f *StandardFlags) ParseData(fallback string) (map[string]interface{}, error) {
	path := f.DataFile
	if path == "" && strings.HasPrefix(f.Data, "@") {
		path = strings.TrimPrefix(f.Data, "@")
	}

	if path == "" && f.Data != "" {
		data, err := renderer.ParseData(renderer.FormatJSON, []byte(f.Data))
		if err != nil {
			return nil, errors.WrapConfig(err, errors.CodeLoadData, "invalid JSON in --data")
		}
		return data, nil
	}

	if path == "" {
		path = fallback
	}
	if path == "" {
		return make(map[string]interface{}), nil
	}

	data, err := renderer.LoadData(path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.CodeLoadData, "failed to load template data").WithFile(path)
	}
	return data, nil
}

// AddFlagValidation makes flagName reject values that validator refuses.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidateEncoding accepts empty values and WHATWG encoding labels.
func ValidateEncoding(name string) error {
	if name == "" {
		return nil
	}
	if _, err := htmlindex.Get(name); err != nil {
		return fmt.Errorf("unsupported encoding %q", name)
	}
	return nil
}

// readInput reads the named file, or stdin when args is empty or "-". The
// returned name is the path, or "-" for stdin.
func readInput(cmd *cobra.Command, args []string) (string, []byte, error) {
	if len(args) == 0 || args[0] == "-" {
		src, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", nil, errors.WrapIO(err, errors.CodeReadTemplate, "failed to read stdin")
		}
		return "-", src, nil
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return "", nil, errors.WrapIO(err, errors.CodeReadTemplate, "failed to read input").WithFile(args[0])
	}
	return args[0], src, nil
}

// templateName picks the name recorded in directives.
func (f *StandardFlags) templateName(input string) string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.ToSlash(input)
}

// writeOutput writes content to --output or the command's stdout.
func (f *StandardFlags) writeOutput(cmd *cobra.Command, content string) error {
	if f.Output == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}

	if dir := filepath.Dir(f.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapIO(err, errors.CodeWriteOutput, "failed to create output directory").WithFile(f.Output)
		}
	}
	if err := os.WriteFile(f.Output, []byte(content), 0o644); err != nil {
		return errors.WrapIO(err, errors.CodeWriteOutput, "failed to write output").WithFile(f.Output)
	}
	return nil
}
