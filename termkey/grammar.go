package termkey

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// peekResult is what one decoding stage made of the buffer head.
type peekResult int

const (
	peekNone  peekResult = iota // not this stage's sequence
	peekKey                     // a key, spanning n bytes
	peekAgain                   // a strict prefix; more input may complete it
	peekError                   // malformed input; discard n bytes
)

// c0Syms names the C0 codes that have keys of their own.
var c0Syms = [0x20]Sym{
	0x08: SymBackspace,
	0x09: SymTab,
	0x0d: SymEnter,
	0x1b: SymEscape,
}

// CSI and SS3 final bytes shared by both introducers.
var csiLetterKeys = map[byte]Key{
	'A': SymKey(SymUp, 0),
	'B': SymKey(SymDown, 0),
	'C': SymKey(SymRight, 0),
	'D': SymKey(SymLeft, 0),
	'E': SymKey(SymBegin, 0),
	'F': SymKey(SymEnd, 0),
	'H': SymKey(SymHome, 0),
	'P': FunctionKey(1, 0),
	'Q': FunctionKey(2, 0),
	'R': FunctionKey(3, 0),
	'S': FunctionKey(4, 0),
	'Z': SymKey(SymTab, ModShift),
}

// CSI <n> ~ keys (VT220 style)
var csiTildeKeys = map[int]Key{
	1:  SymKey(SymFind, 0),
	2:  SymKey(SymInsert, 0),
	3:  SymKey(SymDelete, 0),
	4:  SymKey(SymSelect, 0),
	5:  SymKey(SymPageUp, 0),
	6:  SymKey(SymPageDown, 0),
	7:  SymKey(SymHome, 0),
	8:  SymKey(SymEnd, 0),
	11: FunctionKey(1, 0),
	12: FunctionKey(2, 0),
	13: FunctionKey(3, 0),
	14: FunctionKey(4, 0),
	15: FunctionKey(5, 0),
	17: FunctionKey(6, 0),
	18: FunctionKey(7, 0),
	19: FunctionKey(8, 0),
	20: FunctionKey(9, 0),
	21: FunctionKey(10, 0),
	23: FunctionKey(11, 0),
	24: FunctionKey(12, 0),
	25: FunctionKey(13, 0),
	26: FunctionKey(14, 0),
	28: FunctionKey(15, 0),
	29: FunctionKey(16, 0),
	31: FunctionKey(17, 0),
	32: FunctionKey(18, 0),
	33: FunctionKey(19, 0),
	34: FunctionKey(20, 0),
}

// SS3 keypad keys, application mode
var ss3KeypadKeys = map[byte]Key{
	'M': SymKey(SymKPEnter, 0),
	'X': SymKey(SymKPEquals, 0),
	'j': SymKey(SymKPMult, 0),
	'k': SymKey(SymKPPlus, 0),
	'l': SymKey(SymKPComma, 0),
	'm': SymKey(SymKPMinus, 0),
	'n': SymKey(SymKPPeriod, 0),
	'o': SymKey(SymKPDiv, 0),
	'p': SymKey(SymKP0, 0),
	'q': SymKey(SymKP1, 0),
	'r': SymKey(SymKP2, 0),
	's': SymKey(SymKP3, 0),
	't': SymKey(SymKP4, 0),
	'u': SymKey(SymKP5, 0),
	'v': SymKey(SymKP6, 0),
	'w': SymKey(SymKP7, 0),
	'x': SymKey(SymKP8, 0),
	'y': SymKey(SymKP9, 0),
}

// ss3KeypadChars is used instead of ss3KeypadKeys under ConvertKP.
var ss3KeypadChars = map[byte]rune{
	'X': '=',
	'j': '*',
	'k': '+',
	'l': ',',
	'm': '-',
	'n': '.',
	'o': '/',
	'p': '0',
	'q': '1',
	'r': '2',
	's': '3',
	't': '4',
	'u': '5',
	'v': '6',
	'w': '7',
	'x': '8',
	'y': '9',
}

// Kitty keyboard protocol functional key codes (CSI <code> u)
const (
	kittyF13       = 57376
	kittyF35       = 57398
	kittyKP0       = 57399
	kittyKPBegin   = 57427
	kittyFirstCode = 57344 // start of the private use range kitty draws from
	kittyLastCode  = 63743
	kittyRelease   = 3
)

var kittyKeypadKeys = [...]Key{
	SymKey(SymKP0, 0),
	SymKey(SymKP1, 0),
	SymKey(SymKP2, 0),
	SymKey(SymKP3, 0),
	SymKey(SymKP4, 0),
	SymKey(SymKP5, 0),
	SymKey(SymKP6, 0),
	SymKey(SymKP7, 0),
	SymKey(SymKP8, 0),
	SymKey(SymKP9, 0),
	SymKey(SymKPPeriod, 0),
	SymKey(SymKPDiv, 0),
	SymKey(SymKPMult, 0),
	SymKey(SymKPMinus, 0),
	SymKey(SymKPPlus, 0),
	SymKey(SymKPEnter, 0),
	SymKey(SymKPEquals, 0),
	SymKey(SymKPComma, 0),
	SymKey(SymLeft, 0),
	SymKey(SymRight, 0),
	SymKey(SymUp, 0),
	SymKey(SymDown, 0),
	SymKey(SymPageUp, 0),
	SymKey(SymPageDown, 0),
	SymKey(SymHome, 0),
	SymKey(SymEnd, 0),
	SymKey(SymInsert, 0),
	SymKey(SymDelete, 0),
	SymKey(SymBegin, 0),
}

// kittyKey maps a kitty functional key code. Codes from the private use
// range without a mapping (lock keys, media keys, bare modifiers) report
// ok=false.
func kittyKey(code int) (k Key, ok bool) {
	switch {
	case code >= kittyF13 && code <= kittyF35:
		return FunctionKey(13+code-kittyF13, 0), true
	case code >= kittyKP0 && code <= kittyKPBegin:
		return kittyKeypadKeys[code-kittyKP0], true
	}
	return Key{}, false
}

const maxCSIArgs = 16

// csiSeq is a scanned control sequence.
type csiSeq struct {
	cmd  CSICommand
	args []string
	n    int // length including the introducer
}

// splitCSIParams splits parameter string by semicolons
func splitCSIParams(params string) []string {
	if params == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i <= len(params); i++ {
		if i == len(params) || params[i] == ';' {
			parts = append(parts, params[start:i])
			start = i + 1
		}
	}
	return parts
}

// scanCSI finds the end of a control sequence whose introducer spans
// introLen bytes. It reports peekAgain until the final byte arrives and
// peekNone if a byte outside the CSI alphabet interrupts the sequence.
func scanCSI(buf []byte, introLen int) (csiSeq, peekResult) {
	end := introLen
	for ; end < len(buf); end++ {
		c := buf[end]
		if c >= 0x40 && c <= 0x7e {
			break
		}
		if c < 0x20 || c > 0x3f {
			return csiSeq{}, peekNone
		}
	}
	if end >= len(buf) {
		return csiSeq{}, peekAgain
	}

	seq := csiSeq{n: end + 1}
	seq.cmd.Final = buf[end]

	body := buf[introLen:end]
	if len(body) > 0 && body[0] >= '<' && body[0] <= '?' {
		seq.cmd.Initial = body[0]
		body = body[1:]
	}

	params := len(body)
	for params > 0 && body[params-1] >= 0x20 && body[params-1] <= 0x2f {
		params--
	}
	if params < len(body) {
		seq.cmd.Intermediate = body[len(body)-1]
	}

	seq.cmd.Params = string(body[:params])
	seq.args = splitCSIParams(seq.cmd.Params)
	if len(seq.args) > maxCSIArgs {
		seq.args = seq.args[:maxCSIArgs]
	}
	return seq, peekKey
}

// arg returns parameter i, or -1 if it is missing or empty. Sub-parameters
// after ':' are ignored.
func (s csiSeq) arg(i int) int {
	return s.sub(i, 0)
}

// sub returns sub-parameter j of parameter i ("1:3" has sub(0, 1) == 3).
func (s csiSeq) sub(i, j int) int {
	if i >= len(s.args) {
		return -1
	}
	parts := strings.Split(s.args[i], ":")
	if j >= len(parts) || parts[j] == "" {
		return -1
	}
	v, err := strconv.Atoi(parts[j])
	if err != nil || v < 0 {
		return -1
	}
	return v
}

// mods decodes the xterm modifier parameter, which sits at index 1.
func (s csiSeq) mods() Modifier {
	return xtermMods(s.arg(1))
}

func xtermMods(param int) Modifier {
	if param < 1 {
		return 0
	}
	return Modifier(param-1) & (ModShift | ModAlt | ModCtrl)
}

// peek decodes one key from the head of buf. Sequences registered by the
// caller or loaded from terminfo take precedence over the CSI/SS3 grammar,
// which takes precedence over single characters.
func (d *Decoder) peek(buf []byte, force bool) (Key, int, peekResult) {
	if k, n, res := d.seqs.match(buf, force); res != peekNone {
		return k, n, res
	}
	if k, n, res := d.peekCSI(buf, force); res != peekNone {
		return k, n, res
	}
	return d.peekSimple(buf, force)
}

// peekSimple handles everything that is not a registered or CSI/SS3
// sequence: ESC as a prefix, C0 and DEL, ASCII, raw bytes and UTF-8.
func (d *Decoder) peekSimple(buf []byte, force bool) (Key, int, peekResult) {
	b0 := buf[0]
	switch {
	case b0 == 0x1b:
		if len(buf) == 1 {
			if !force {
				return Key{}, 0, peekAgain
			}
			return d.codepointKey(0x1b), 1, peekKey
		}
		// ESC before a key is the Alt (meta) prefix
		k, n, res := d.peek(buf[1:], force)
		switch res {
		case peekKey:
			k.Mods |= ModAlt
			return k, n + 1, peekKey
		case peekAgain:
			return Key{}, 0, peekAgain
		}
		return d.codepointKey(0x1b), 1, peekKey

	case b0 < 0x80:
		return d.codepointKey(rune(b0)), 1, peekKey

	case d.cfg.Raw:
		if b0 < 0xa0 {
			return d.codepointKey(rune(b0)), 1, peekKey
		}
		return UnicodeKey(d.cfg.RawCharmap.DecodeByte(b0), 0), 1, peekKey
	}

	if !utf8.FullRune(buf) {
		if !force {
			return Key{}, 0, peekAgain
		}
		return Key{}, 1, peekError
	}
	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError && size == 1 {
		return Key{}, 1, peekError
	}
	return d.codepointKey(r), size, peekKey
}

// codepointKey turns a code point into a key, applying the C0, DEL and C1
// conventions.
func (d *Decoder) codepointKey(cp rune) Key {
	switch {
	case cp == 0:
		return SymKey(SymSpace, ModCtrl)

	case cp < 0x20:
		if !d.cfg.NoInterpret {
			if sym := c0Syms[cp]; sym != SymNone {
				return SymKey(sym, 0)
			}
		}
		// Ctrl-letters are reported lower-case so that Shift never has to
		// be inferred from the case of a control code.
		if cp+0x40 >= 'A' && cp+0x40 <= 'Z' {
			return UnicodeKey(cp+0x60, ModCtrl)
		}
		return UnicodeKey(cp+0x40, ModCtrl)

	case cp == 0x7f && !d.cfg.NoInterpret:
		return SymKey(SymDEL, 0)

	case cp >= 0x80 && cp < 0xa0:
		return UnicodeKey(cp-0x40, ModCtrl|ModAlt)
	}
	return UnicodeKey(cp, 0)
}

// peekCSI recognises the CSI (ESC [) and SS3 (ESC O) introducers, plus
// their 8-bit forms in raw mode.
func (d *Decoder) peekCSI(buf []byte, force bool) (Key, int, peekResult) {
	switch {
	case len(buf) >= 2 && buf[0] == 0x1b && buf[1] == '[':
		return d.peekCSISeq(buf, 2, force)
	case len(buf) >= 2 && buf[0] == 0x1b && buf[1] == 'O':
		return d.peekSS3(buf, 2, force)
	case d.cfg.Raw && buf[0] == 0x9b:
		return d.peekCSISeq(buf, 1, force)
	case d.cfg.Raw && buf[0] == 0x8f:
		return d.peekSS3(buf, 1, force)
	}
	return Key{}, 0, peekNone
}

// peekSS3 decodes ESC O <c>. An unknown <c> is left to the simple path,
// which reports Alt-O.
func (d *Decoder) peekSS3(buf []byte, introLen int, force bool) (Key, int, peekResult) {
	if len(buf) <= introLen {
		if force {
			return Key{}, 0, peekNone
		}
		return Key{}, 0, peekAgain
	}

	c := buf[introLen]
	if d.cfg.ConvertKP {
		if r, ok := ss3KeypadChars[c]; ok {
			return UnicodeKey(r, 0), introLen + 1, peekKey
		}
	}
	if k, ok := csiLetterKeys[c]; ok && c != 'Z' {
		return k, introLen + 1, peekKey
	}
	if k, ok := ss3KeypadKeys[c]; ok {
		return k, introLen + 1, peekKey
	}

	d.log.Debug("unrecognised SS3", zap.String("command", string(c)))
	return Key{}, 0, peekNone
}

// peekCSISeq decodes a complete control sequence. Incomplete sequences
// under force are left to the simple path, which reports Alt-[.
func (d *Decoder) peekCSISeq(buf []byte, introLen int, force bool) (Key, int, peekResult) {
	seq, res := scanCSI(buf, introLen)
	switch res {
	case peekAgain:
		if force {
			return Key{}, 0, peekNone
		}
		return Key{}, 0, peekAgain
	case peekNone:
		return Key{}, 0, peekNone
	}

	cmd := seq.cmd
	if cmd.Final == 'M' && cmd.Initial == 0 && cmd.Intermediate == 0 && cmd.Params == "" {
		return d.peekX10(buf, seq.n, force)
	}

	k, ok := d.interpretCSI(seq)
	if !ok {
		d.log.Debug("unrecognised CSI",
			zap.String("initial", printableByte(cmd.Initial)),
			zap.String("params", cmd.Params),
			zap.String("intermediate", printableByte(cmd.Intermediate)),
			zap.String("final", printableByte(cmd.Final)))
		k = Key{Type: TypeUnknownCSI, CSI: cmd}
	}
	return k, seq.n, peekKey
}

func printableByte(b byte) string {
	if b == 0 {
		return ""
	}
	return string(rune(b))
}

// peekX10 decodes the three payload values after ESC [ M. In UTF-8 mode
// each value may itself be UTF-8 encoded (xterm mode 1005).
func (d *Decoder) peekX10(buf []byte, start int, force bool) (Key, int, peekResult) {
	var vals [3]int
	i := start
	for j := range vals {
		if i >= len(buf) {
			if force {
				return Key{}, 0, peekNone
			}
			return Key{}, 0, peekAgain
		}
		b := buf[i]
		if b < 0x80 || d.cfg.Raw {
			vals[j] = int(b)
			i++
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			if force {
				return Key{}, 0, peekNone
			}
			return Key{}, 0, peekAgain
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			r = rune(b)
		}
		vals[j] = int(r)
		i += size
	}

	code := vals[0] - 0x20
	ev, button := mouseEvent(code, false)
	return MouseKey(ev, button, vals[2]-0x20, vals[1]-0x20, mouseMods(code)), i, peekKey
}

// mouseMods extracts the Shift/Meta/Ctrl bits (4, 8, 16) of a button code.
func mouseMods(code int) Modifier {
	return Modifier((code & 0x1c) >> 2)
}

// mouseEvent interprets a button code: bits 0-1 and 6 select the button,
// bit 5 marks motion.
func mouseEvent(code int, release bool) (MouseEvent, int) {
	drag := code&0x20 != 0
	code &^= 0x3c

	ev, button := MouseUnknown, 0
	switch code {
	case 0, 1, 2:
		ev, button = MousePress, code+1
	case 3:
		ev = MouseRelease
	case 64, 65, 66, 67:
		ev, button = MousePress, code-64+4
	}
	if drag && ev == MousePress {
		ev = MouseDrag
	}
	if release {
		ev = MouseRelease
	}
	return ev, button
}

// interpretCSI maps a complete sequence to a key; ok=false means the
// sequence is well formed but unknown.
func (d *Decoder) interpretCSI(seq csiSeq) (Key, bool) {
	cmd := seq.cmd

	switch {
	case cmd.Final == 'M' || cmd.Final == 'm':
		return interpretMouse(seq)
	case cmd.Final == 'y' && cmd.Intermediate == '$':
		return interpretModeReport(seq)
	case cmd.Final == 'R' && cmd.Intermediate == 0:
		if k, ok := interpretPosition(seq); ok {
			return k, true
		}
	}

	if cmd.Initial != 0 || cmd.Intermediate != 0 {
		return Key{}, false
	}

	switch cmd.Final {
	case '~':
		return d.interpretTilde(seq)
	case 'u':
		return d.interpretCSIu(seq)
	}

	k, ok := csiLetterKeys[cmd.Final]
	if !ok {
		return Key{}, false
	}
	k.Mods |= seq.mods()
	return k, true
}

// interpretMouse handles SGR (CSI < b;x;y M/m) and rxvt (CSI b;x;y M)
// reports.
func interpretMouse(seq csiSeq) (Key, bool) {
	cmd := seq.cmd
	if cmd.Intermediate != 0 || len(seq.args) < 3 {
		return Key{}, false
	}

	code := seq.arg(0)
	switch {
	case cmd.Initial == '<':
	case cmd.Initial == 0 && cmd.Final == 'M':
		code -= 0x20
	default:
		return Key{}, false
	}
	if code < 0 {
		return Key{}, false
	}

	ev, button := mouseEvent(code, cmd.Final == 'm')
	return MouseKey(ev, button, seq.arg(2), seq.arg(1), mouseMods(code)), true
}

// interpretPosition handles cursor position reports. CSI ? l;c R is
// always a position; plain CSI l;c R is one too, except that CSI 1;m R
// with a modifier parameter m > 1 is a modified F3.
func interpretPosition(seq csiSeq) (Key, bool) {
	if len(seq.args) < 2 {
		return Key{}, false
	}
	line, col := seq.arg(0), seq.arg(1)
	switch seq.cmd.Initial {
	case '?':
	case 0:
		if line == 1 && col > 1 && len(seq.args) == 2 {
			return Key{}, false
		}
	default:
		return Key{}, false
	}
	return PositionKey(line, col), true
}

// interpretModeReport handles DECRPM replies: CSI ? mode;value $ y for
// DEC private modes, CSI mode;value $ y for ANSI modes.
func interpretModeReport(seq csiSeq) (Key, bool) {
	if len(seq.args) < 2 {
		return Key{}, false
	}
	switch seq.cmd.Initial {
	case 0, '?':
	default:
		return Key{}, false
	}
	return ModeReportKey(seq.cmd.Initial == '?', seq.arg(0), seq.arg(1)), true
}

// interpretTilde handles CSI n;m ~ and xterm's modifyOtherKeys form
// CSI 27;m;code ~.
func (d *Decoder) interpretTilde(seq csiSeq) (Key, bool) {
	n := seq.arg(0)
	if n == 27 {
		cp := seq.arg(2)
		if cp < 0 || cp > utf8.MaxRune || !utf8.ValidRune(rune(cp)) {
			return Key{}, false
		}
		k := d.codepointKey(rune(cp))
		k.Mods |= seq.mods()
		return k, true
	}

	k, ok := csiTildeKeys[n]
	if !ok {
		return Key{}, false
	}
	k.Mods |= seq.mods()
	return k, true
}

// interpretCSIu handles CSI code;m u as sent by fixterms and the kitty
// keyboard protocol. Key release events are not reported as keys.
func (d *Decoder) interpretCSIu(seq csiSeq) (Key, bool) {
	code := seq.arg(0)
	if code < 0 || seq.sub(1, 1) == kittyRelease {
		return Key{}, false
	}

	k, ok := kittyKey(code)
	if !ok {
		// Surrogates and values past U+10FFFF have no UTF-8 form.
		if code >= kittyFirstCode && code <= kittyLastCode ||
			code > utf8.MaxRune || !utf8.ValidRune(rune(code)) {
			return Key{}, false
		}
		k = d.codepointKey(rune(code))
	}
	k.Mods |= seq.mods()
	return k, true
}
