package lineno

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event is one call made against a Buffer by an instrumented program.
type event struct {
	boundary bool
	line     int
	mode     Mode
	text     string
}

func lit(s string) event  { return event{mode: ModeLiteral, text: s} }
func code(s string) event { return event{mode: ModeStructural, text: s} }
func enter(n int) event   { return event{boundary: true, line: n} }

func replay(name string, events ...event) *Buffer {
	b := New(name)
	for _, e := range events {
		if e.boundary {
			b.EnterLine(e.line)
			continue
		}
		b.Append(e.mode, e.text)
	}
	return b
}

func TestNew(t *testing.T) {
	b := New("t")

	assert.Equal(t, "#line 1 \"t\"\n", b.String())
	assert.Equal(t, "t", b.Name())
	assert.Empty(t, b.Pending())
	assert.False(t, b.Deferred())
}

func TestBufferScenarios(t *testing.T) {
	tests := []struct {
		name     string
		events   []event
		expected string
	}{
		{
			name:     "single literal line",
			events:   []event{lit("Hello"), enter(2)},
			expected: "#line 1 \"t\"\nHello",
		},
		{
			name:     "blank line withheld and merged forward",
			events:   []event{lit("A"), enter(2), enter(3), lit("B"), enter(4)},
			expected: "#line 1 \"t\"\nA#line 3 \"t\"\nB",
		},
		{
			name: "lines in sync need no directives",
			events: []event{
				lit("A\n"), enter(2),
				lit("B\n"), enter(3),
				lit("C"), enter(4),
			},
			expected: "#line 1 \"t\"\nA\nB\nC",
		},
		{
			name: "line without output drifts once",
			events: []event{
				lit("A\n"), enter(2),
				code(""), enter(3),
				lit("B\n"), enter(4),
			},
			expected: "#line 1 \"t\"\nA\n#line 3 \"t\"\nB\n",
		},
		{
			name: "whitespace segment defers",
			events: []event{
				lit("A"), enter(2),
				lit("  \t"), enter(3),
				lit("B"), enter(4),
			},
			expected: "#line 1 \"t\"\nA  \t#line 3 \"t\"\nB",
		},
		{
			name: "structural text does not count as content",
			events: []event{
				lit("A"), enter(2),
				code("X\n"), enter(3),
				lit("B"), enter(4),
			},
			expected: "#line 1 \"t\"\nAX\n#line 3 \"t\"\nB",
		},
		{
			name: "segment already starting with a directive is not stacked",
			events: []event{
				lit("A"), enter(2),
				lit("#line 7 \"other\"\nC"), enter(3),
				lit("D"), enter(4),
			},
			expected: "#line 1 \"t\"\nA#line 7 \"other\"\nC#line 3 \"t\"\nD",
		},
		{
			name: "directive for an empty first segment is superseded",
			events: []event{
				enter(2),
				enter(3),
				lit("B"), enter(4),
			},
			expected: "#line 3 \"t\"\nB",
		},
		{
			name:     "no boundaries leaves text pending",
			events:   []event{lit("A\nB")},
			expected: "#line 1 \"t\"\nA\nB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := replay("t", tt.events...)
			assert.Equal(t, tt.expected, b.String())
		})
	}
}

func TestEnterLineDeferral(t *testing.T) {
	b := New("t")
	b.Append(ModeLiteral, "A")
	b.EnterLine(2)
	assert.False(t, b.Deferred())

	b.EnterLine(3)
	assert.True(t, b.Deferred(), "blank segment with drift should defer")

	b.Append(ModeLiteral, "  ")
	b.EnterLine(4)
	assert.True(t, b.Deferred(), "deferral carries across blank segments")

	b.Append(ModeLiteral, "C")
	b.EnterLine(5)
	assert.False(t, b.Deferred())
	assert.Equal(t, "#line 1 \"t\"\nA  #line 4 \"t\"\nC", b.String())
}

func TestAppendModes(t *testing.T) {
	b := New("t")

	b.Append(ModeRaw, "raw\n")
	assert.Equal(t, "#line 1 \"t\"\nraw\n", b.Committed())
	assert.Empty(t, b.Pending())

	b.Append(ModeStructural, "s")
	b.Append(ModeLiteral, "l")
	assert.Equal(t, "sl", b.Pending())
	assert.Equal(t, "#line 1 \"t\"\nraw\n", b.Committed())
	assert.Equal(t, len(b.String()), b.Len())

	b.Append(ModeLiteral, "")
	assert.Equal(t, "sl", b.Pending())
}

func TestEnterLineAcceptsAnyNumber(t *testing.T) {
	b := replay("t",
		lit("A\n"), enter(-3),
		lit("B\n"), enter(0),
		lit("C\n"), enter(2),
		lit("D\n"), enter(2),
	)

	out := b.String()
	assert.Contains(t, out, "#line -3 \"t\"\nB\n")
	assert.Equal(t, "A\nB\nC\nD\n", StripDirectives(out))
}

func TestBufferProperties(t *testing.T) {
	sequences := [][]event{
		{lit("A\n"), enter(2), enter(3), lit("B\n"), enter(4)},
		{lit(""), enter(2), lit(" \n"), enter(3), lit("\n"), enter(4), lit("x"), enter(5)},
		{code("a"), lit("b\n"), enter(2), code("c\n"), enter(3), lit("d"), enter(4), enter(5)},
		{enter(2), enter(3), enter(4), lit("late\n"), enter(5)},
		{lit("1\n2\n"), enter(3), lit("3\n"), enter(5), lit("5\n"), enter(6)},
	}

	for i, seq := range sequences {
		b := replay("t", seq...)
		out := b.String()

		var want strings.Builder
		for _, e := range seq {
			if !e.boundary {
				want.WriteString(e.text)
			}
		}
		assert.Equal(t, want.String(), StripDirectives(out), "sequence %d", i)

		lines := Directives(out)
		require.NotEmpty(t, lines, "sequence %d", i)
		for j := 1; j < len(lines); j++ {
			assert.LessOrEqual(t, lines[j-1], lines[j], "sequence %d", i)
		}
		assert.False(t, hasAdjacentDirectives(out), "sequence %d: %q", i, out)
	}
}

// hasAdjacentDirectives reports whether a directive is immediately followed
// by another one.
func hasAdjacentDirectives(s string) bool {
	for {
		i := strings.Index(s, directivePrefix)
		if i < 0 {
			return false
		}
		s = s[i:]
		n, _ := parseDirective(s)
		if n == 0 {
			s = s[len(directivePrefix):]
			continue
		}
		s = s[n:]
		if next, _ := parseDirective(s); next > 0 {
			return true
		}
	}
}
