// Package renderer evaluates compiled template programs.
//
// A program that still has the compiler's out := "" initializer renders the
// plain template output. A program that went through the rewriter constructs
// a lineno.Buffer instead, and its output is annotated with #line directives.
// Embedded code is not executed. Expressions are evaluated with pongo2
// against the data passed to Render.
package renderer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/lineno"
	"github.com/conneroisu/templine/internal/logging"
	"github.com/conneroisu/templine/internal/program"
)

// Output receives the appends and boundary calls of a running program.
type Output interface {
	Append(mode lineno.Mode, s string)
	EnterLine(n int)
	String() string
}

// plainOutput backs the uninstrumented initializer. Modes and boundaries are
// ignored.
type plainOutput struct {
	b strings.Builder
}

func (p *plainOutput) Append(_ lineno.Mode, s string) { p.b.WriteString(s) }
func (p *plainOutput) EnterLine(int)                  {}
func (p *plainOutput) String() string                 { return p.b.String() }

// Renderer evaluates programs. It caches parsed expressions and is safe for
// concurrent use; every Render call gets its own Output.
type Renderer struct {
	logger logging.Logger

	mu    sync.RWMutex
	exprs map[string]*pongo2.Template
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		logger: logging.NopLogger{},
		exprs:  make(map[string]*pongo2.Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render parses and evaluates program text. name is used to position
// errors.
func (r *Renderer) Render(ctx context.Context, name, src string, data map[string]interface{}) (string, error) {
	return r.RenderProgram(ctx, name, program.Parse(src), data)
}

// RenderProgram evaluates a parsed program top to bottom.
func (r *Renderer) RenderProgram(ctx context.Context, name string, p *program.Program, data map[string]interface{}) (string, error) {
	var out Output

	for _, line := range p.Lines {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, s := range line.Stmts {
			fail := func(msg string, cause error) error {
				return errors.NewBuildError(name, line.Index+1, len(s.Lead)+1, msg).WithCause(cause)
			}

			switch s.Kind {
			case program.KindEmpty, program.KindComment:
				continue
			case program.KindInit:
				out = &plainOutput{}
				continue
			case program.KindNew:
				out = lineno.New(s.Arg)
				continue
			case program.KindOpaque:
				return "", fail(fmt.Sprintf("unrecognized statement %q", s.Text), nil)
			}

			if out == nil {
				return "", fail("output used before it was initialized", nil)
			}

			switch s.Kind {
			case program.KindLiteral:
				out.Append(lineno.ModeLiteral, s.Arg)
			case program.KindConcat, program.KindAppend:
				v, err := r.value(s.Value, data)
				if err != nil {
					return "", fail("evaluation failed", err)
				}
				mode := s.Mode
				if s.Kind == program.KindConcat {
					mode = lineno.ModeStructural
				}
				out.Append(mode, v)
			case program.KindEnter:
				out.EnterLine(s.N)
			case program.KindCode:
				r.logger.Debug(ctx, "Skipping embedded code", "template", name, "line", line.Index+1, "code", s.Arg)
			}
		}
	}

	if out == nil {
		return "", errors.NewBuildError(name, 1, 1, "program never initializes its output")
	}
	return out.String(), nil
}

func (r *Renderer) value(src string, data map[string]interface{}) (string, error) {
	text, isExpr, err := program.ParseValue(src)
	if err != nil || !isExpr {
		return text, err
	}
	return r.Eval(text, data)
}

// Eval evaluates a single expression against data.
func (r *Renderer) Eval(expr string, data map[string]interface{}) (string, error) {
	tpl, err := r.expression(expr)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return "", fmt.Errorf("expression %q: %w", expr, err)
	}
	return out, nil
}

func (r *Renderer) expression(expr string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.exprs[expr]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := pongo2.FromString("{% autoescape off %}{{ " + expr + " }}{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", expr, err)
	}

	r.mu.Lock()
	r.exprs[expr] = tpl
	r.mu.Unlock()
	return tpl, nil
}
