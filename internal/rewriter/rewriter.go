// Package rewriter instruments a compiled template program so that, when it
// is evaluated, its output goes through a lineno.Buffer and carries #line
// directives pointing back at the template.
//
// The rewrite works line by line and never adds, removes or reorders
// physical lines:
//
//   - line 1 is the compiler preamble and is left alone
//   - on line 2 the default initializer out := "" becomes
//     out := lineno.New("<name>")
//   - every out.text(...) becomes out.append(literal, ...) and every
//     out.concat(...) becomes out.append(structural, ...)
//   - from line 3 on, a boundary marker (a leading ';') is replaced by
//     out.line(n), n being the zero based line index, which is the template
//     line the compiler started on that line
//
// Rewritten lines no longer match any of the rules, so rewriting twice is
// the same as rewriting once.
package rewriter

import (
	"strings"

	"github.com/conneroisu/templine/internal/lineno"
	"github.com/conneroisu/templine/internal/program"
)

// Rewrite instruments program text for the named template.
func Rewrite(src, name string) string {
	return RewriteProgram(program.Parse(src), name).String()
}

// RewriteProgram returns an instrumented copy of p.
func RewriteProgram(p *program.Program, name string) *program.Program {
	out := p.Clone()
	for i := range out.Lines {
		rewriteLine(&out.Lines[i], name)
	}
	return out
}

func rewriteLine(line *program.Line, name string) {
	if line.Index == 0 {
		return
	}

	boundary := line.Index >= 2 && line.Boundary()

	for i := range line.Stmts {
		s := &line.Stmts[i]
		switch s.Kind {
		case program.KindInit:
			if line.Index == 1 {
				s.SetText(program.New(name))
			}
		case program.KindLiteral:
			s.SetText(program.Append(lineno.ModeLiteral, quoteLiteral(s)))
		case program.KindConcat:
			s.SetText(program.Append(lineno.ModeStructural, s.Value))
		}
	}

	if boundary {
		line.Stmts[0].SetText(program.Enter(line.Index))
	}
}

// quoteLiteral returns the quoted argument of an out.text statement as it
// appears in the source.
func quoteLiteral(s *program.Stmt) string {
	const prefix = "out.text("
	return strings.TrimSpace(s.Text[len(prefix) : len(s.Text)-1])
}
