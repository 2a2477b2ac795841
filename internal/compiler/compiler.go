// Package compiler turns ERB style templates into the line oriented
// intermediate program understood by the rewriter and the renderer.
//
// Supported tags:
//
//	<% code %>     embedded code, produces no output
//	<%= expr %>    expression output
//	<%# comment %> dropped
//	<%%            a literal "<%"
//	-%>            closes a tag and swallows the newline that follows
//
// The program keeps template line k on physical program line k+1: line 1 is
// the preamble and every newline in the template starts a new program line.
// Lines that start a new template line begin with ';', the boundary marker.
// Lines that only continue a multi-line tag do not.
package compiler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/logging"
	"github.com/conneroisu/templine/internal/program"
)

// DefaultEncoding is the source encoding assumed when none is configured.
const DefaultEncoding = "utf-8"

// Compiler compiles templates to programs. It holds no per-template state
// and is safe for concurrent use.
type Compiler struct {
	encoding string
	logger   logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithEncoding sets the source encoding by its WHATWG or IANA name.
func WithEncoding(name string) Option {
	return func(c *Compiler) {
		if name != "" {
			c.encoding = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		encoding: DefaultEncoding,
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileFile reads and compiles the template at path. The path is used as
// the template name.
func (c *Compiler) CompileFile(ctx context.Context, path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return c.Compile(ctx, path, src)
}

// Compile decodes src and compiles it. Syntax errors are returned as
// *errors.BuildError positioned in the template.
func (c *Compiler) Compile(ctx context.Context, name string, src []byte) (string, error) {
	enc, err := htmlindex.Get(c.encoding)
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", c.encoding, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = c.encoding
	}
	decoded, err := enc.NewDecoder().Bytes(src)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s as %s: %w", name, canonical, err)
	}

	prog, err := compile(name, string(decoded), canonical)
	if err != nil {
		c.logger.Warn(ctx, err, "Template failed to compile", "template", name)
		return "", err
	}

	c.logger.Debug(ctx, "Template compiled",
		"template", name,
		"encoding", canonical,
		"program_lines", strings.Count(prog, "\n")+1,
	)
	return prog, nil
}

// emitter accumulates statements for the current program line.
type emitter struct {
	lines    []string
	stmts    []string
	boundary bool
}

func (e *emitter) emit(stmt string) {
	e.stmts = append(e.stmts, stmt)
}

// newline finishes the current program line. boundary tells whether the
// next one starts a new template line.
func (e *emitter) newline(boundary bool) {
	e.lines = append(e.lines, e.render())
	e.stmts = e.stmts[:0]
	e.boundary = boundary
}

func (e *emitter) render() string {
	body := strings.Join(e.stmts, "; ")
	switch {
	case !e.boundary:
		return body
	case body == "":
		return ";"
	default:
		return "; " + body
	}
}

// text emits literal text, one statement per template line.
func (e *emitter) text(s string) {
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			e.emit(program.Text(s))
			return
		}
		e.emit(program.Text(s[:i+1]))
		e.newline(true)
		s = s[i+1:]
	}
}

// continuation adds one non-boundary line per newline inside a tag.
func (e *emitter) continuation(body string) {
	for i := strings.Count(body, "\n"); i > 0; i-- {
		e.newline(false)
	}
}

func compile(name, src, encoding string) (string, error) {
	e := &emitter{lines: []string{program.Preamble(encoding)}}
	e.emit(program.Init())

	pos := 0
	for pos < len(src) {
		i := strings.Index(src[pos:], "<%")
		if i < 0 {
			e.text(src[pos:])
			break
		}
		e.text(src[pos : pos+i])
		pos += i

		if strings.HasPrefix(src[pos:], "<%%") {
			e.text("<%")
			pos += 3
			continue
		}

		start := pos
		pos += 2
		var kind byte
		if pos < len(src) && (src[pos] == '=' || src[pos] == '#') {
			kind = src[pos]
			pos++
		}

		end := strings.Index(src[pos:], "%>")
		if end < 0 {
			line, col := position(src, start)
			return "", errors.NewBuildError(name, line, col, "unterminated tag")
		}
		body := src[pos : pos+end]
		pos += end + 2

		trim := strings.HasSuffix(body, "-")
		if trim {
			body = body[:len(body)-1]
		}

		switch kind {
		case '=':
			if strings.TrimSpace(body) == "" {
				line, col := position(src, start)
				return "", errors.NewBuildError(name, line, col, "empty expression")
			}
			e.emit(program.Concat(program.Expr(strings.TrimSpace(body))))
			e.continuation(body)
		case '#':
			e.continuation(body)
		default:
			pieces := strings.Split(body, "\n")
			e.emit(program.Code(pieces[0]))
			for _, piece := range pieces[1:] {
				e.newline(false)
				e.emit(program.Code(piece))
			}
		}

		if trim {
			switch {
			case strings.HasPrefix(src[pos:], "\r\n"):
				pos += 2
				e.newline(true)
			case strings.HasPrefix(src[pos:], "\n"):
				pos++
				e.newline(true)
			}
		}
	}

	e.newline(true)
	e.emit(program.Result())
	e.lines = append(e.lines, e.render())

	return strings.Join(e.lines, "\n"), nil
}

// position converts a byte offset into a 1-based line and column.
func position(src string, offset int) (int, int) {
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return line, col
}
