// Package program models the intermediate program a template compiles to as
// a line indexed list of tagged statements.
//
// The text format is line oriented. Statements on one physical line are
// separated by ';' and every string argument is a Go quoted literal, so no
// statement spans two physical lines. A line other than the first two that
// begins with ';' is a boundary marker: it starts a new template line.
//
//	//tmpl:encoding utf-8
//	out := ""; out.text("Hello\n")
//	; exec("if admin"); out.concat(expr("user.name"))
//	; out.result()
//
// Parse never fails. Statements it does not recognise are kept as KindOpaque
// and String reproduces the input byte for byte.
package program

import (
	"strconv"
	"strings"

	"github.com/conneroisu/templine/internal/lineno"
)

// Kind classifies a statement by its call shape.
type Kind int

const (
	KindEmpty Kind = iota
	KindOpaque
	KindComment
	// KindInit is the compiler's default initializer, out := "".
	KindInit
	// KindNew is the instrumented initializer, out := lineno.New("name").
	KindNew
	// KindLiteral is a literal text append, out.text("...").
	KindLiteral
	// KindConcat is any other append, out.concat(value).
	KindConcat
	// KindAppend is an instrumented append, out.append(mode, value).
	KindAppend
	// KindEnter is an instrumented boundary call, out.line(n).
	KindEnter
	// KindCode is embedded code, exec("...").
	KindCode
	// KindResult ends the program, out.result().
	KindResult
)

var kindNames = map[Kind]string{
	KindEmpty:   "empty",
	KindOpaque:  "opaque",
	KindComment: "comment",
	KindInit:    "init",
	KindNew:     "new",
	KindLiteral: "literal",
	KindConcat:  "concat",
	KindAppend:  "append",
	KindEnter:   "enter",
	KindCode:    "code",
	KindResult:  "result",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Stmt is one ';' separated segment of a program line.
type Stmt struct {
	Kind Kind
	// Lead and Trail hold the whitespace around Text.
	Lead  string
	Text  string
	Trail string

	// Arg is the decoded string argument of literal, code and new statements.
	Arg string
	// Value is the source of the appended value of concat and append
	// statements, e.g. expr("user.name") or "text".
	Value string
	Mode  lineno.Mode
	// N is the line number of an enter statement.
	N int
}

// String returns the statement exactly as it appears in the source.
func (s Stmt) String() string {
	return s.Lead + s.Text + s.Trail
}

// SetText replaces the statement text, keeping the surrounding whitespace,
// and reclassifies it.
func (s *Stmt) SetText(text string) {
	*s = classify(s.Lead, text, s.Trail)
}

// Line is one physical line of a program.
type Line struct {
	// Index is the zero based physical line index.
	Index int
	Stmts []Stmt
}

// Boundary reports whether the line carries the boundary marker, a leading
// ';' before its first statement.
func (l Line) Boundary() bool {
	return len(l.Stmts) > 1 && l.Stmts[0].Kind == KindEmpty
}

// String renders the line without a trailing newline.
func (l Line) String() string {
	parts := make([]string, len(l.Stmts))
	for i, s := range l.Stmts {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}

// Program is a parsed intermediate program.
type Program struct {
	Lines []Line
}

// Parse splits src into lines and statements.
func Parse(src string) *Program {
	raw := strings.Split(src, "\n")
	p := &Program{Lines: make([]Line, len(raw))}
	for i, text := range raw {
		p.Lines[i] = ParseLine(i, text)
	}
	return p
}

// ParseLine parses a single physical line.
func ParseLine(index int, text string) Line {
	segments := split(text)
	line := Line{Index: index, Stmts: make([]Stmt, len(segments))}
	for i, seg := range segments {
		trimmed := strings.TrimLeft(seg, " \t")
		lead := seg[:len(seg)-len(trimmed)]
		body := strings.TrimRight(trimmed, " \t\r")
		line.Stmts[i] = classify(lead, body, trimmed[len(body):])
	}
	return line
}

// String renders the program. Lines are joined with '\n'.
func (p *Program) String() string {
	lines := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	c := &Program{Lines: make([]Line, len(p.Lines))}
	for i, l := range p.Lines {
		c.Lines[i] = Line{Index: l.Index, Stmts: append([]Stmt(nil), l.Stmts...)}
	}
	return c
}

// split cuts a line at every ';' outside a quoted string. A "//" comment
// runs to the end of the line. Joining the result with ";" yields text.
func split(text string) []string {
	var (
		segments []string
		start    int
		quote    byte
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '`':
			quote = c
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			return append(segments, text[start:])
		case c == ';':
			segments = append(segments, text[start:i])
			start = i + 1
		}
	}
	return append(segments, text[start:])
}

func classify(lead, text, trail string) Stmt {
	s := Stmt{Kind: KindOpaque, Lead: lead, Text: text, Trail: trail}

	switch {
	case text == "":
		s.Kind = KindEmpty
	case strings.HasPrefix(text, "//"):
		s.Kind = KindComment
	case text == `out := ""`:
		s.Kind = KindInit
	case text == "out.result()":
		s.Kind = KindResult
	default:
		if arg, ok := call(text, "out := lineno.New"); ok {
			if name, err := strconv.Unquote(arg); err == nil {
				s.Kind, s.Arg = KindNew, name
			}
		} else if arg, ok := call(text, "out.text"); ok {
			if lit, err := strconv.Unquote(arg); err == nil {
				s.Kind, s.Arg = KindLiteral, lit
			}
		} else if arg, ok := call(text, "out.concat"); ok && arg != "" {
			s.Kind, s.Value = KindConcat, arg
		} else if arg, ok := call(text, "out.append"); ok {
			name, value, found := strings.Cut(arg, ",")
			if mode, known := lineno.ParseMode(strings.TrimSpace(name)); found && known {
				s.Kind, s.Mode, s.Value = KindAppend, mode, strings.TrimSpace(value)
			}
		} else if arg, ok := call(text, "out.line"); ok {
			if n, err := strconv.Atoi(arg); err == nil {
				s.Kind, s.N = KindEnter, n
			}
		} else if arg, ok := call(text, "exec"); ok {
			if code, err := strconv.Unquote(arg); err == nil {
				s.Kind, s.Arg = KindCode, code
			}
		}
	}
	return s
}

// call matches text against fn(...) and returns the argument list.
func call(text, fn string) (string, bool) {
	if !strings.HasPrefix(text, fn+"(") || !strings.HasSuffix(text, ")") {
		return "", false
	}
	return strings.TrimSpace(text[len(fn)+1 : len(text)-1]), true
}
