package termkey

import (
	"strings"
	"sync"
	"unicode"
)

// Sym identifies a named, non-printable key such as Enter or PageUp.
type Sym int

// SymUnknown marks a lookup miss, and asks Register to allocate a new id.
const SymUnknown Sym = -1

// Builtin keysyms. The order is part of the public contract: user
// registrations are appended after SymKPEquals.
const (
	SymNone Sym = iota
	SymBackspace
	SymTab
	SymEnter
	SymEscape
	SymSpace
	SymDEL
	SymUp
	SymDown
	SymLeft
	SymRight
	SymBegin
	SymFind
	SymInsert
	SymDelete
	SymSelect
	SymPageUp
	SymPageDown
	SymHome
	SymEnd
	SymCancel
	SymClear
	SymClose
	SymCommand
	SymCopy
	SymExit
	SymHelp
	SymMark
	SymMessage
	SymMove
	SymOpen
	SymOptions
	SymPrint
	SymRedo
	SymReference
	SymRefresh
	SymReplace
	SymRestart
	SymResume
	SymSave
	SymSuspend
	SymUndo
	SymKP0
	SymKP1
	SymKP2
	SymKP3
	SymKP4
	SymKP5
	SymKP6
	SymKP7
	SymKP8
	SymKP9
	SymKPEnter
	SymKPPlus
	SymKPMinus
	SymKPMult
	SymKPDiv
	SymKPComma
	SymKPPeriod
	SymKPEquals

	numBuiltinSyms
)

var builtinSymNames = [numBuiltinSyms]string{
	"NONE",
	"Backspace",
	"Tab",
	"Enter",
	"Escape",
	"Space",
	"DEL",
	"Up",
	"Down",
	"Left",
	"Right",
	"Begin",
	"Find",
	"Insert",
	"Delete",
	"Select",
	"PageUp",
	"PageDown",
	"Home",
	"End",
	"Cancel",
	"Clear",
	"Close",
	"Command",
	"Copy",
	"Exit",
	"Help",
	"Mark",
	"Message",
	"Move",
	"Open",
	"Options",
	"Print",
	"Redo",
	"Reference",
	"Refresh",
	"Replace",
	"Restart",
	"Resume",
	"Save",
	"Suspend",
	"Undo",
	"KP0",
	"KP1",
	"KP2",
	"KP3",
	"KP4",
	"KP5",
	"KP6",
	"KP7",
	"KP8",
	"KP9",
	"KPEnter",
	"KPPlus",
	"KPMinus",
	"KPMult",
	"KPDiv",
	"KPComma",
	"KPPeriod",
	"KPEquals",
}

// SymbolTable maps keysym names to ids and back. Each Decoder owns one;
// tables are safe for concurrent use, but populating a table before decode
// traffic starts keeps lookups stable.
type SymbolTable struct {
	mu    sync.RWMutex
	names []string
	ids   map[string]Sym
}

// NewSymbolTable returns a table populated with the builtin keysyms.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		names: make([]string, numBuiltinSyms),
		ids:   make(map[string]Sym, numBuiltinSyms),
	}
	for i, name := range builtinSymNames {
		t.names[i] = name
		t.ids[name] = Sym(i)
	}
	return t
}

// builtinSymbols backs the package-level FormatKey and ParseKey. Nothing
// registers into it.
var builtinSymbols = NewSymbolTable()

// Register binds name to sym and returns the id used. Passing SymUnknown
// allocates a fresh id after every existing one.
func (t *SymbolTable) Register(name string, sym Sym) Sym {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sym == SymUnknown {
		sym = Sym(len(t.names))
	}
	if sym < 0 {
		return SymUnknown
	}
	for int(sym) >= len(t.names) {
		t.names = append(t.names, "")
	}
	if old := t.names[sym]; old != "" && t.ids[old] == sym {
		delete(t.ids, old)
	}
	t.names[sym] = name
	t.ids[name] = sym
	return sym
}

// Name returns the name bound to sym, or "" if there is none.
func (t *SymbolTable) Name(sym Sym) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if sym < 0 || int(sym) >= len(t.names) {
		return ""
	}
	return t.names[sym]
}

// Lookup finds the keysym whose name is exactly name (case-sensitive).
func (t *SymbolTable) Lookup(name string) (Sym, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sym, ok := t.ids[name]
	if !ok {
		return SymUnknown, false
	}
	return sym, true
}

// LookupPrefix finds the longest keysym name at the start of s and returns
// the sym together with the number of bytes it spans. With FormatLowerSpace
// names are matched in their lower-case, space-separated spelling
// ("page up" for PageUp).
func (t *SymbolTable) LookupPrefix(s string, style Format) (Sym, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best, bestLen := SymUnknown, 0
	// SymNone's placeholder name is never read back from notation.
	for i, name := range t.names {
		if Sym(i) == SymNone || name == "" {
			continue
		}
		if style&FormatLowerSpace != 0 {
			name = camelToSpaces(name)
		}
		if len(name) > bestLen && strings.HasPrefix(s, name) {
			best, bestLen = Sym(i), len(name)
		}
	}
	return best, bestLen
}

// Len reports how many ids the table spans, builtins included.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// camelToSpaces lowercases a CamelCase name, inserting a space at each
// lower-to-upper boundary: "PageUp" -> "page up", "KPEnter" -> "kpenter".
func camelToSpaces(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) && prevLower {
			b.WriteByte(' ')
		}
		prevLower = unicode.IsLower(r)
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
