package rewriter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templine/internal/program"
)

const compiled = `//tmpl:encoding utf-8
out := ""; out.text("A\n")
; exec(" x "); out.text("\n")
; out.concat(expr("name")); out.text("B")
; out.result()`

const instrumented = `//tmpl:encoding utf-8
out := lineno.New("t"); out.append(literal, "A\n")
out.line(2); exec(" x "); out.append(literal, "\n")
out.line(3); out.append(structural, expr("name")); out.append(literal, "B")
out.line(4); out.result()`

func TestRewrite(t *testing.T) {
	got := Rewrite(compiled, "t")
	if diff := cmp.Diff(instrumented, got); diff != "" {
		t.Errorf("Rewrite() mismatch (-want +got):\n%s", diff)
	}
}

func TestRewritePreservesLineCount(t *testing.T) {
	inputs := []string{
		compiled,
		compiled + "\n",
		"",
		"//tmpl:encoding utf-8\nout := \"\"",
		"//tmpl:encoding utf-8\nout := \"\"; exec(\"multi\")\nexec(\"line\")\n; out.result()",
	}

	for _, in := range inputs {
		got := Rewrite(in, "t")
		assert.Equal(t, strings.Count(in, "\n"), strings.Count(got, "\n"), "input %q", in)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	once := Rewrite(compiled, "t")
	twice := Rewrite(once, "t")
	assert.Equal(t, once, twice)
}

func TestRewriteWithoutMarkersIsNoop(t *testing.T) {
	in := "//tmpl:encoding utf-8\nout := lineno.New(\"t\")\nexec(\"a\")\nout.line(3); out.result()"
	assert.Equal(t, in, Rewrite(in, "t"))
}

func TestRewriteBootstrapLines(t *testing.T) {
	t.Run("preamble is never touched", func(t *testing.T) {
		in := `; out.text("x"); out := ""` + "\n" + `out := ""`
		got := strings.Split(Rewrite(in, "t"), "\n")
		require.Len(t, got, 2)
		assert.Equal(t, `; out.text("x"); out := ""`, got[0])
		assert.Equal(t, `out := lineno.New("t")`, got[1])
	})

	t.Run("second line never gets a boundary call", func(t *testing.T) {
		in := "//tmpl:encoding utf-8\n; out := \"\"; out.text(\"A\")"
		got := strings.Split(Rewrite(in, "t"), "\n")
		require.Len(t, got, 2)
		assert.Equal(t, `; out := lineno.New("t"); out.append(literal, "A")`, got[1])
		assert.NotContains(t, got[1], "out.line(")
	})

	t.Run("initializer after line two is left alone", func(t *testing.T) {
		in := "//tmpl:encoding utf-8\nout := \"\"\n; out := \"\""
		got := strings.Split(Rewrite(in, "t"), "\n")
		assert.Equal(t, `out.line(2); out := ""`, got[2])
	})
}

func TestRewriteContinuationLines(t *testing.T) {
	in := "//tmpl:encoding utf-8\nout := \"\"; exec(\"if x\")\nexec(\"end\"); out.text(\"y\")\n; out.result()"
	got := strings.Split(Rewrite(in, "t"), "\n")
	require.Len(t, got, 4)

	assert.Equal(t, `exec("end"); out.append(literal, "y")`, got[2])
	assert.Equal(t, `out.line(3); out.result()`, got[3])
}

func TestRewriteQuotesName(t *testing.T) {
	got := Rewrite("//tmpl:encoding utf-8\nout := \"\"", `odd "name"`)
	assert.Contains(t, got, `out := lineno.New("odd \"name\"")`)

	p := program.Parse(got)
	assert.Equal(t, program.KindNew, p.Lines[1].Stmts[0].Kind)
	assert.Equal(t, `odd "name"`, p.Lines[1].Stmts[0].Arg)
}

func TestRewriteProgramDoesNotMutateInput(t *testing.T) {
	p := program.Parse(compiled)
	_ = RewriteProgram(p, "t")
	assert.Equal(t, compiled, p.String())
}

func TestRewriteOpaqueStatementsPassThrough(t *testing.T) {
	in := "//tmpl:encoding utf-8\nout := \"\"; whatever(1)\n; also_this"
	got := strings.Split(Rewrite(in, "t"), "\n")
	assert.Equal(t, `out := lineno.New("t"); whatever(1)`, got[1])
	assert.Equal(t, `out.line(2); also_this`, got[2])
}
