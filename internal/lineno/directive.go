package lineno

import (
	"strconv"
	"strings"
)

const directivePrefix = "#line "

// FormatDirective renders a cpp style line directive. The following physical
// line is attributed to line n of the named source.
func FormatDirective(name string, n int) string {
	return directivePrefix + strconv.Itoa(n) + ` "` + name + `"` + "\n"
}

// IsDirective reports whether s is exactly one rendered directive,
// including its trailing newline.
func IsDirective(s string) bool {
	n, _ := parseDirective(s)
	return n > 0 && n == len(s)
}

// parseDirective reports the byte length and line number of the directive at
// the start of s. size is 0 if s does not begin with one.
func parseDirective(s string) (size, line int) {
	if !strings.HasPrefix(s, directivePrefix) {
		return 0, 0
	}
	i := len(directivePrefix)
	start := i
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start || s[i-1] == '-' || i+1 >= len(s) || s[i] != ' ' || s[i+1] != '"' {
		return 0, 0
	}
	n, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, 0
	}
	i += 2
	end := strings.IndexAny(s[i:], "\"\n")
	if end < 0 || s[i+end] != '"' {
		return 0, 0
	}
	i += end + 1
	if i >= len(s) || s[i] != '\n' {
		return 0, 0
	}
	return i + 1, n
}

// StripDirectives removes every rendered directive from annotated output,
// wherever it starts. Text that merely resembles a directive is removed too.
func StripDirectives(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.Index(s, directivePrefix)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i:]
		if n, _ := parseDirective(s); n > 0 {
			s = s[n:]
			continue
		}
		b.WriteString(directivePrefix)
		s = s[len(directivePrefix):]
	}
}

// Directives returns the line numbers of every directive in annotated output,
// in order of appearance.
func Directives(s string) []int {
	var lines []int
	for {
		i := strings.Index(s, directivePrefix)
		if i < 0 {
			return lines
		}
		s = s[i:]
		if n, line := parseDirective(s); n > 0 {
			lines = append(lines, line)
			s = s[n:]
			continue
		}
		s = s[len(directivePrefix):]
	}
}
