package lineno

// Mode tags an Append with where the text came from.
type Mode int

const (
	// ModeLiteral is literal template text.
	ModeLiteral Mode = iota
	// ModeStructural is text produced by embedded code or expressions.
	ModeStructural
	// ModeRaw bypasses segment bookkeeping entirely.
	ModeRaw
)

// String returns the name used for the mode in instrumented programs.
func (m Mode) String() string {
	switch m {
	case ModeLiteral:
		return "literal"
	case ModeStructural:
		return "structural"
	case ModeRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name back to its Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "literal":
		return ModeLiteral, true
	case "structural":
		return ModeStructural, true
	case "raw":
		return ModeRaw, true
	default:
		return 0, false
	}
}
