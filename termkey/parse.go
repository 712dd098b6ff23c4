package termkey

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseKey reads one key notation, as written by FormatKey with the same
// style, from the start of text. It returns the key and the unconsumed rest
// of text. A text that starts with no recognisable key fails with
// ErrUnsupportedNotation.
func ParseKey(text string, style Format) (Key, string, error) {
	return builtinSymbols.ParseKey(text, style)
}

// ParseKey is like the package-level ParseKey but resolves keysym names in t.
func (t *SymbolTable) ParseKey(text string, style Format) (Key, string, error) {
	k, rest, err := parseKey(t, text, style)
	if err != nil {
		return Key{}, text, err
	}
	return k.Canonicalize(0), rest, nil
}

func parseKey(syms *SymbolTable, text string, style Format) (Key, string, error) {
	if style&FormatWrapBracket != 0 && strings.HasPrefix(text, "<") {
		if k, rest, ok := parseNotation(syms, text[1:], style); ok {
			if rest, ok := strings.CutPrefix(rest, ">"); ok {
				return k, rest, nil
			}
		}
	}
	if k, rest, ok := parseNotation(syms, text, style); ok {
		return k, rest, nil
	}
	return Key{}, text, fmt.Errorf("%w: %q", ErrUnsupportedNotation, text)
}

// parseNotation parses modifiers followed by a key body. When the body
// after the last modifier does not parse, the modifiers are given back one
// at a time, so "C-" reads as the character C followed by "-".
func parseNotation(syms *SymbolTable, text string, style Format) (Key, string, bool) {
	if style&FormatCaretCtrl != 0 && len(text) >= 2 && text[0] == '^' {
		r, size := utf8.DecodeRuneInString(text[1:])
		if r >= '@' && r <= '_' {
			if r >= 'A' && r <= 'Z' {
				r += 0x20
			}
			return UnicodeKey(r, ModCtrl), text[1+size:], true
		}
	}

	type stop struct {
		mods Modifier
		rest string
	}
	names := modNamesFor(style)
	sep := modSeparator(style)

	stops := []stop{{0, text}}
	mods, rest := Modifier(0), text
	for {
		i := strings.IndexByte(rest, sep)
		if i < 0 {
			break
		}
		var m Modifier
		switch rest[:i] {
		case names.shift:
			m = ModShift
		case names.alt:
			m = ModAlt
		case names.ctrl:
			m = ModCtrl
		}
		if m == 0 {
			break
		}
		mods |= m
		rest = rest[i+1:]
		stops = append(stops, stop{mods, rest})
	}

	for i := len(stops) - 1; i >= 0; i-- {
		if k, r, ok := parseBody(syms, stops[i].rest, style); ok {
			k.Mods |= stops[i].mods
			return k, r, true
		}
	}
	return Key{}, text, false
}

// parseBody parses an unmodified key: a keysym name (longest first), a
// function key, a mouse, position or mode report, or a single character.
func parseBody(syms *SymbolTable, s string, style Format) (Key, string, bool) {
	if s == "" {
		return Key{}, s, false
	}
	if sym, n := syms.LookupPrefix(s, style); n > 0 {
		return SymKey(sym, 0), s[n:], true
	}
	if k, rest, ok := parseFunction(s, style); ok {
		return k, rest, true
	}
	if rest, ok := strings.CutPrefix(s, "Mouse"); ok {
		if k, rest, ok := parseMouse(rest); ok {
			return k, rest, true
		}
	}
	if rest, ok := strings.CutPrefix(s, "Position"); ok {
		if col, line, rest, ok := parseCoords(rest); ok {
			return PositionKey(line, col), rest, true
		}
	}
	if rest, ok := strings.CutPrefix(s, "Mode("); ok {
		if k, rest, ok := parseModeReport(rest); ok {
			return k, rest, true
		}
	}

	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return Key{}, s, false
	}
	return UnicodeKey(r, 0), s[size:], true
}

func parseFunction(s string, style Format) (Key, string, bool) {
	if s[0] != 'F' && !(s[0] == 'f' && style&FormatLowerSpace != 0) {
		return Key{}, s, false
	}
	n, rest, ok := parseDecimal(s[1:])
	if !ok {
		return Key{}, s, false
	}
	return FunctionKey(n, 0), rest, true
}

// parseMouse parses "<Event>(<button>)" with an optional " @ (col,line)".
func parseMouse(s string) (Key, string, bool) {
	name, rest, ok := strings.Cut(s, "(")
	if !ok {
		return Key{}, s, false
	}
	ev := MouseEvent(len(mouseEventNames))
	for i, evName := range mouseEventNames {
		if name == evName {
			ev = MouseEvent(i)
		}
	}
	if int(ev) == len(mouseEventNames) {
		return Key{}, s, false
	}

	button, rest, ok := parseDecimal(rest)
	if !ok {
		return Key{}, s, false
	}
	if rest, ok = strings.CutPrefix(rest, ")"); !ok {
		return Key{}, s, false
	}

	k := MouseKey(ev, button, 0, 0, 0)
	if col, line, after, ok := parseCoords(rest); ok {
		k = MouseKey(ev, button, line, col, 0)
		rest = after
	}
	return k, rest, true
}

// parseCoords parses " @ (col,line)".
func parseCoords(s string) (col, line int, rest string, ok bool) {
	rest, ok = strings.CutPrefix(s, " @ (")
	if !ok {
		return 0, 0, s, false
	}
	if col, rest, ok = parseDecimal(rest); !ok {
		return 0, 0, s, false
	}
	if rest, ok = strings.CutPrefix(rest, ","); !ok {
		return 0, 0, s, false
	}
	if line, rest, ok = parseDecimal(rest); !ok {
		return 0, 0, s, false
	}
	if rest, ok = strings.CutPrefix(rest, ")"); !ok {
		return 0, 0, s, false
	}
	return col, line, rest, true
}

// parseModeReport parses "?<mode>=<value>)" or "<mode>=<value>)".
func parseModeReport(s string) (Key, string, bool) {
	rest, private := strings.CutPrefix(s, "?")
	mode, rest, ok := parseDecimal(rest)
	if !ok {
		return Key{}, s, false
	}
	if rest, ok = strings.CutPrefix(rest, "="); !ok {
		return Key{}, s, false
	}
	value, rest, ok := parseDecimal(rest)
	if !ok {
		return Key{}, s, false
	}
	if rest, ok = strings.CutPrefix(rest, ")"); !ok {
		return Key{}, s, false
	}
	return ModeReportKey(private, mode, value), rest, true
}

// parseDecimal reads an optionally negative run of ASCII digits.
func parseDecimal(s string) (int, string, bool) {
	i := 0
	if strings.HasPrefix(s, "-") {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}
