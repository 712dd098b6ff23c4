package termkey

import (
	"cmp"
	"fmt"
)

// Modifier is a set of held modifier keys. The bit values equal the xterm
// CSI modifier parameter minus one.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModCtrl
)

// Has reports whether every bit of x is set in m.
func (m Modifier) Has(x Modifier) bool {
	return m&x == x
}

// Type tags which variant of Key is active.
type Type uint8

const (
	TypeUnicode Type = iota
	TypeFunction
	TypeKeySym
	TypeMouse
	TypePosition
	TypeModeReport
	TypeUnknownCSI
)

func (t Type) String() string {
	switch t {
	case TypeUnicode:
		return "Unicode"
	case TypeFunction:
		return "Function"
	case TypeKeySym:
		return "KeySym"
	case TypeMouse:
		return "Mouse"
	case TypePosition:
		return "Position"
	case TypeModeReport:
		return "ModeReport"
	case TypeUnknownCSI:
		return "UnknownCSI"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// MouseEvent is the kind of a mouse report.
type MouseEvent uint8

const (
	MouseUnknown MouseEvent = iota
	MousePress
	MouseDrag
	MouseRelease
)

var mouseEventNames = [...]string{"Unknown", "Press", "Drag", "Release"}

func (e MouseEvent) String() string {
	if int(e) < len(mouseEventNames) {
		return mouseEventNames[e]
	}
	return fmt.Sprintf("MouseEvent(%d)", uint8(e))
}

// Mouse coordinates are clamped to these bounds.
const (
	maxMouseLine = 0x7ff
	maxMouseCol  = 0xfff
)

// CSICommand describes a control sequence the decoder did not recognise.
type CSICommand struct {
	Initial      byte   // private marker '<'..'?', or 0
	Intermediate byte   // last intermediate byte 0x20..0x2f, or 0
	Final        byte   // final byte 0x40..0x7e
	Params       string // raw parameter bytes
}

// Key is one decoded terminal event. Type selects which of the fields below
// carry meaning; the others stay zero. Keys are comparable values.
type Key struct {
	Type Type
	Mods Modifier

	// TypeUnicode
	Rune rune
	UTF8 string

	// TypeFunction
	Num int

	// TypeKeySym
	Sym Sym

	// TypeMouse
	Event  MouseEvent
	Button int

	// TypeMouse, TypePosition (1-based)
	Line int
	Col  int

	// TypeModeReport
	Private bool
	Mode    int
	Value   int

	// TypeUnknownCSI
	CSI CSICommand
}

// UnicodeKey returns a key for the code point r.
func UnicodeKey(r rune, mods Modifier) Key {
	return Key{Type: TypeUnicode, Rune: r, UTF8: string(r), Mods: mods}
}

// FunctionKey returns the function key Fn.
func FunctionKey(n int, mods Modifier) Key {
	return Key{Type: TypeFunction, Num: n, Mods: mods}
}

// SymKey returns a key for a named keysym.
func SymKey(sym Sym, mods Modifier) Key {
	return Key{Type: TypeKeySym, Sym: sym, Mods: mods}
}

// MouseKey returns a mouse report, clamping line and col.
func MouseKey(ev MouseEvent, button, line, col int, mods Modifier) Key {
	return Key{
		Type:   TypeMouse,
		Event:  ev,
		Button: button,
		Line:   clamp(line, maxMouseLine),
		Col:    clamp(col, maxMouseCol),
		Mods:   mods,
	}
}

// PositionKey returns a cursor position report.
func PositionKey(line, col int) Key {
	return Key{Type: TypePosition, Line: clamp(line, maxMouseLine), Col: clamp(col, maxMouseCol)}
}

// ModeReportKey returns a DECRQM reply; private marks a DEC private mode.
func ModeReportKey(private bool, mode, value int) Key {
	return Key{Type: TypeModeReport, Private: private, Mode: mode, Value: value}
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

// Canon selects canonicalization rules.
type Canon uint8

const (
	// CanonSpaceSymbol represents space as SymSpace instead of U+0020.
	CanonSpaceSymbol Canon = 1 << iota
	// CanonDelBS folds SymDEL into SymBackspace.
	CanonDelBS
)

// Canonicalize normalizes k under the given rules. It is idempotent.
func (k Key) Canonicalize(c Canon) Key {
	if c&CanonSpaceSymbol != 0 {
		if k.Type == TypeUnicode && k.Rune == ' ' {
			k = SymKey(SymSpace, k.Mods)
		}
	} else if k.Type == TypeKeySym && k.Sym == SymSpace {
		k = UnicodeKey(' ', k.Mods)
	}

	if c&CanonDelBS != 0 && k.Type == TypeKeySym && k.Sym == SymDEL {
		k.Sym = SymBackspace
	}
	return k
}

// Compare orders keys structurally: by type, then by the active variant's
// fields, then by modifiers. It returns -1, 0 or +1.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}

	var c int
	switch a.Type {
	case TypeUnicode:
		c = cmp.Compare(a.Rune, b.Rune)
	case TypeFunction:
		c = cmp.Compare(a.Num, b.Num)
	case TypeKeySym:
		c = cmp.Compare(a.Sym, b.Sym)
	case TypeMouse:
		c = cmp.Or(
			cmp.Compare(a.Event, b.Event),
			cmp.Compare(a.Button, b.Button),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Col, b.Col),
		)
	case TypePosition:
		c = cmp.Or(cmp.Compare(a.Line, b.Line), cmp.Compare(a.Col, b.Col))
	case TypeModeReport:
		c = cmp.Or(
			cmp.Compare(boolInt(a.Private), boolInt(b.Private)),
			cmp.Compare(a.Mode, b.Mode),
			cmp.Compare(a.Value, b.Value),
		)
	case TypeUnknownCSI:
		c = cmp.Or(
			cmp.Compare(a.CSI.Final, b.CSI.Final),
			cmp.Compare(a.CSI.Initial, b.CSI.Initial),
			cmp.Compare(a.CSI.Intermediate, b.CSI.Intermediate),
			cmp.Compare(a.CSI.Params, b.CSI.Params),
		)
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.Mods, b.Mods)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// String renders k in the default notation, e.g. "C-a" or "S-Up".
func (k Key) String() string {
	return FormatKey(k, 0)
}
