package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templine/internal/lineno"
)

const sample = `//tmpl:encoding utf-8
out := ""; out.text("A\n")
; exec(" x "); out.text("\n")
; out.concat(expr("name")); out.text("; not a separator")
; out.result()`

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		sample,
		"",
		"\n",
		"a;b;;c",
		"; out.text(\"unterminated",
		"out.text(`raw ; string`)",
		"  ;  out.result()  \r",
		"x // comment; with semicolon",
		sample + "\n",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, in, Parse(in).String())
		})
	}
}

func TestParseKinds(t *testing.T) {
	p := Parse(sample)
	require.Len(t, p.Lines, 5)

	assert.Equal(t, KindComment, p.Lines[0].Stmts[0].Kind)

	line2 := p.Lines[1]
	require.Len(t, line2.Stmts, 2)
	assert.Equal(t, KindInit, line2.Stmts[0].Kind)
	assert.Equal(t, KindLiteral, line2.Stmts[1].Kind)
	assert.Equal(t, "A\n", line2.Stmts[1].Arg)
	assert.False(t, line2.Boundary())

	line3 := p.Lines[2]
	assert.True(t, line3.Boundary())
	assert.Equal(t, KindCode, line3.Stmts[1].Kind)
	assert.Equal(t, " x ", line3.Stmts[1].Arg)

	line4 := p.Lines[3]
	require.Len(t, line4.Stmts, 3)
	assert.Equal(t, KindConcat, line4.Stmts[1].Kind)
	assert.Equal(t, `expr("name")`, line4.Stmts[1].Value)
	assert.Equal(t, "; not a separator", line4.Stmts[2].Arg)

	assert.Equal(t, KindResult, p.Lines[4].Stmts[1].Kind)
}

func TestClassifyInstrumented(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		check func(t *testing.T, s Stmt)
	}{
		{
			text: `out := lineno.New("views/a.erb")`,
			kind: KindNew,
			check: func(t *testing.T, s Stmt) {
				assert.Equal(t, "views/a.erb", s.Arg)
			},
		},
		{
			text: `out.append(literal, "x")`,
			kind: KindAppend,
			check: func(t *testing.T, s Stmt) {
				assert.Equal(t, lineno.ModeLiteral, s.Mode)
				assert.Equal(t, `"x"`, s.Value)
			},
		},
		{
			text: `out.append(structural, expr("a, b"))`,
			kind: KindAppend,
			check: func(t *testing.T, s Stmt) {
				assert.Equal(t, lineno.ModeStructural, s.Mode)
				assert.Equal(t, `expr("a, b")`, s.Value)
			},
		},
		{
			text: "out.line(12)",
			kind: KindEnter,
			check: func(t *testing.T, s Stmt) {
				assert.Equal(t, 12, s.N)
			},
		},
		{text: "out.append(sideways, \"x\")", kind: KindOpaque},
		{text: "out.line(twelve)", kind: KindOpaque},
		{text: "out.text(bare)", kind: KindOpaque},
		{text: "out.concat()", kind: KindOpaque},
		{text: "print(1)", kind: KindOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			line := ParseLine(0, tt.text)
			require.Len(t, line.Stmts, 1)
			s := line.Stmts[0]
			assert.Equal(t, tt.kind, s.Kind, "kind %s", s.Kind)
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestSetTextKeepsWhitespace(t *testing.T) {
	line := ParseLine(3, `;  out.text("a")  `)
	s := &line.Stmts[1]

	s.SetText(Append(lineno.ModeLiteral, `"a"`))

	assert.Equal(t, KindAppend, s.Kind)
	assert.Equal(t, `;  out.append(literal, "a")  `, line.String())
}

func TestParseValue(t *testing.T) {
	text, isExpr, err := ParseValue(`expr("user.name")`)
	require.NoError(t, err)
	assert.True(t, isExpr)
	assert.Equal(t, "user.name", text)

	text, isExpr, err = ParseValue(`"plain\n"`)
	require.NoError(t, err)
	assert.False(t, isExpr)
	assert.Equal(t, "plain\n", text)

	_, _, err = ParseValue("expr(name)")
	assert.Error(t, err)

	_, _, err = ParseValue("name")
	assert.Error(t, err)
}

func TestEncoding(t *testing.T) {
	enc, ok := Parse(sample).Encoding()
	assert.True(t, ok)
	assert.Equal(t, "utf-8", enc)

	_, ok = Parse("out := \"\"").Encoding()
	assert.False(t, ok)
}

func TestClone(t *testing.T) {
	p := Parse(sample)
	c := p.Clone()
	c.Lines[1].Stmts[1].SetText(Text("changed"))

	assert.Equal(t, sample, p.String())
	assert.NotEqual(t, sample, c.String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "enter", KindEnter.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
