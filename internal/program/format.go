package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/templine/internal/lineno"
)

// PreamblePrefix starts the first line of every compiled program.
const PreamblePrefix = "//tmpl:encoding "

// Statement constructors. Each returns statement text without surrounding
// whitespace.

func Preamble(encoding string) string { return PreamblePrefix + encoding }
func Init() string                    { return `out := ""` }
func New(name string) string          { return "out := lineno.New(" + strconv.Quote(name) + ")" }
func Text(s string) string            { return "out.text(" + strconv.Quote(s) + ")" }
func Concat(value string) string      { return "out.concat(" + value + ")" }
func Enter(n int) string              { return "out.line(" + strconv.Itoa(n) + ")" }
func Code(code string) string         { return "exec(" + strconv.Quote(code) + ")" }
func Result() string                  { return "out.result()" }

// Append renders an instrumented append.
func Append(mode lineno.Mode, value string) string {
	return "out.append(" + mode.String() + ", " + value + ")"
}

// Expr renders an expression value.
func Expr(expr string) string {
	return "expr(" + strconv.Quote(expr) + ")"
}

// ParseValue decodes the value of a concat or append statement. It is either
// a quoted string or expr("...").
func ParseValue(value string) (text string, isExpr bool, err error) {
	if arg, ok := call(value, "expr"); ok {
		text, err = strconv.Unquote(arg)
		if err != nil {
			return "", false, fmt.Errorf("invalid expression literal %s: %w", arg, err)
		}
		return text, true, nil
	}
	text, err = strconv.Unquote(strings.TrimSpace(value))
	if err != nil {
		return "", false, fmt.Errorf("invalid value %s: %w", value, err)
	}
	return text, false, nil
}

// Encoding returns the source encoding recorded in the preamble, if any.
func (p *Program) Encoding() (string, bool) {
	if len(p.Lines) == 0 {
		return "", false
	}
	first := p.Lines[0].String()
	if !strings.HasPrefix(first, PreamblePrefix) {
		return "", false
	}
	return strings.TrimSpace(first[len(PreamblePrefix):]), true
}
