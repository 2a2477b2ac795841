// Package lineno accumulates the output of an instrumented template program
// and interleaves cpp style #line directives so that the output, once handed
// to a line aware consumer, reports positions in the original template.
//
// A Buffer is driven by two calls. Append adds text tagged with a Mode.
// EnterLine marks the point where the template compiler started emitting code
// for a new template line; it flushes everything appended since the previous
// boundary and decides whether that segment needs a directive in front of it.
//
// A directive is owed when the physical line the consumer would count to
// differs from the template line the segment belongs to. It is withheld while
// the literal text of the segment is blank, so directives never land in front
// of a line with nothing to attribute. The obligation carries forward to the
// next segment that has content.
//
// A Buffer is not safe for concurrent use. Each evaluation of a program owns
// its own Buffer.
package lineno

import (
	"strings"
	"unicode"
)

// Buffer is the line counting output accumulator.
type Buffer struct {
	name string

	out     []byte
	literal strings.Builder
	pending strings.Builder

	// expected is the template line the consumer lands on for the next
	// segment if no directive is written.
	expected int
	// target is the template line the pending segment belongs to.
	target   int
	deferred bool

	// [dirStart, dirEnd) spans the last directive written to out.
	dirStart int
	dirEnd   int
}

// New creates a Buffer for the named template. Its initial content attributes
// what follows to line 1.
func New(name string) *Buffer {
	b := &Buffer{
		name:     name,
		expected: 1,
		target:   1,
	}
	b.writeDirective(1)
	return b
}

// Name returns the template name used in directives.
func (b *Buffer) Name() string {
	return b.name
}

// Append adds s according to mode. Literal text counts towards deciding
// whether a segment is blank, structural text does not, and raw text is
// written straight to the committed output.
func (b *Buffer) Append(mode Mode, s string) {
	switch mode {
	case ModeLiteral:
		b.literal.WriteString(s)
		b.pending.WriteString(s)
	case ModeStructural:
		b.pending.WriteString(s)
	default:
		b.out = append(b.out, s...)
	}
}

// EnterLine flushes the pending segment and makes n the template line of the
// next one. Line numbers are not validated; whatever n is supplied ends up in
// the next directive.
func (b *Buffer) EnterLine(n int) {
	if b.target != b.expected || b.deferred {
		if isBlank(b.literal.String()) || strings.HasPrefix(b.pending.String(), directivePrefix) {
			b.deferred = true
		} else {
			b.writeDirective(b.target)
			b.deferred = false
		}
	}

	segment := b.pending.String()
	b.out = append(b.out, segment...)
	b.expected = b.target + strings.Count(segment, "\n")
	b.target = n
	b.literal.Reset()
	b.pending.Reset()
}

// writeDirective appends a directive for line n. A directive that was
// followed by nothing is superseded rather than stacked.
func (b *Buffer) writeDirective(n int) {
	if b.dirEnd > 0 && b.dirEnd == len(b.out) {
		b.out = b.out[:b.dirStart]
	}
	b.dirStart = len(b.out)
	b.out = append(b.out, FormatDirective(b.name, n)...)
	b.dirEnd = len(b.out)
}

// Committed returns the output flushed so far.
func (b *Buffer) Committed() string {
	return string(b.out)
}

// Pending returns the text appended since the last EnterLine.
func (b *Buffer) Pending() string {
	return b.pending.String()
}

// String returns the committed output followed by any pending text. Pending
// text is never preceded by a directive it might still be owed.
func (b *Buffer) String() string {
	return string(b.out) + b.pending.String()
}

// Len returns the length of String.
func (b *Buffer) Len() int {
	return len(b.out) + b.pending.Len()
}

// Deferred reports whether a directive is currently owed but withheld.
func (b *Buffer) Deferred() bool {
	return b.deferred
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
