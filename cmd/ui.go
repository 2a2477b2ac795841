package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func printOK(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", okColor.Sprint("ok"), fmt.Sprintf(format, args...))
}

func printWarn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("warn"), fmt.Sprintf(format, args...))
}

func printFail(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", failColor.Sprint("fail"), fmt.Sprintf(format, args...))
}

// printStructured writes v as JSON or YAML.
func printStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
