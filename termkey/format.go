package termkey

import (
	"fmt"
	"strings"
)

// Format selects a key notation style for FormatKey and ParseKey.
type Format uint16

const (
	FormatLongMod     Format = 1 << 0 // Shift-/Alt-/Ctrl- instead of S-/A-/C-
	FormatCaretCtrl   Format = 1 << 1 // ^X for Ctrl-X
	FormatAltIsMeta   Format = 1 << 2 // Meta- or M- instead of Alt- or A-
	FormatWrapBracket Format = 1 << 3 // <...> around anything but a plain character
	FormatSpaceMod    Format = 1 << 4 // "Ctrl a" instead of "Ctrl-a"
	FormatLowerMod    Format = 1 << 5 // lower-case modifier names
	FormatLowerSpace  Format = 1 << 6 // "page up" instead of "PageUp"
	FormatMousePos    Format = 1 << 8 // append " @ (col,line)" to mouse keys

	FormatVim   = FormatAltIsMeta | FormatWrapBracket
	FormatURWID = FormatLongMod | FormatAltIsMeta | FormatLowerMod | FormatSpaceMod | FormatLowerSpace
)

// UnknownCSIName is how every TypeUnknownCSI key formats.
const UnknownCSIName = "UnknownCSI"

type modNames struct {
	shift, alt, ctrl string
}

// indexed by LongMod + AltIsMeta*2 + LowerMod*4
var modNameSets = [8]modNames{
	{"S", "A", "C"},
	{"Shift", "Alt", "Ctrl"},
	{"S", "M", "C"},
	{"Shift", "Meta", "Ctrl"},
	{"s", "a", "c"},
	{"shift", "alt", "ctrl"},
	{"s", "m", "c"},
	{"shift", "meta", "ctrl"},
}

func modNamesFor(style Format) modNames {
	i := 0
	if style&FormatLongMod != 0 {
		i++
	}
	if style&FormatAltIsMeta != 0 {
		i += 2
	}
	if style&FormatLowerMod != 0 {
		i += 4
	}
	return modNameSets[i]
}

func modSeparator(style Format) byte {
	if style&FormatSpaceMod != 0 {
		return ' '
	}
	return '-'
}

// FormatKey renders k with the builtin keysym names. Keysyms registered on a
// Decoder's own table render through Decoder.Format instead.
func FormatKey(k Key, style Format) string {
	return formatKey(builtinSymbols, k, style)
}

// FormatKey is like the package-level FormatKey but names keysyms from t.
func (t *SymbolTable) FormatKey(k Key, style Format) string {
	return formatKey(t, k, style)
}

func formatKey(syms *SymbolTable, k Key, style Format) string {
	var b strings.Builder

	wrap := style&FormatWrapBracket != 0 && (k.Type != TypeUnicode || k.Mods != 0)

	if style&FormatCaretCtrl != 0 && k.Type == TypeUnicode && k.Mods == ModCtrl {
		if c, ok := caretChar(k.Rune); ok {
			if wrap {
				return "<^" + string(c) + ">"
			}
			return "^" + string(c)
		}
	}

	if wrap {
		b.WriteByte('<')
	}

	names := modNamesFor(style)
	sep := modSeparator(style)
	if k.Mods&ModShift != 0 {
		b.WriteString(names.shift)
		b.WriteByte(sep)
	}
	if k.Mods&ModAlt != 0 {
		b.WriteString(names.alt)
		b.WriteByte(sep)
	}
	if k.Mods&ModCtrl != 0 {
		b.WriteString(names.ctrl)
		b.WriteByte(sep)
	}

	switch k.Type {
	case TypeUnicode:
		if k.UTF8 != "" {
			b.WriteString(k.UTF8)
		} else {
			b.WriteRune(k.Rune)
		}
	case TypeKeySym:
		name := syms.Name(k.Sym)
		if name == "" {
			name = fmt.Sprintf("Sym%d", int(k.Sym))
		}
		if style&FormatLowerSpace != 0 {
			name = camelToSpaces(name)
		}
		b.WriteString(name)
	case TypeFunction:
		if style&FormatLowerSpace != 0 {
			b.WriteByte('f')
		} else {
			b.WriteByte('F')
		}
		fmt.Fprintf(&b, "%d", k.Num)
	case TypeMouse:
		fmt.Fprintf(&b, "Mouse%s(%d)", k.Event, k.Button)
		if style&FormatMousePos != 0 {
			fmt.Fprintf(&b, " @ (%d,%d)", k.Col, k.Line)
		}
	case TypePosition:
		fmt.Fprintf(&b, "Position @ (%d,%d)", k.Col, k.Line)
	case TypeModeReport:
		if k.Private {
			fmt.Fprintf(&b, "Mode(?%d=%d)", k.Mode, k.Value)
		} else {
			fmt.Fprintf(&b, "Mode(%d=%d)", k.Mode, k.Value)
		}
	case TypeUnknownCSI:
		b.WriteString(UnknownCSIName)
	}

	if wrap {
		b.WriteByte('>')
	}
	return b.String()
}

// caretChar returns the character shown after '^' for a Ctrl-only key.
func caretChar(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r - 0x20), true
	case r == '@', r >= '[' && r <= '_':
		return byte(r), true
	}
	return 0, false
}
