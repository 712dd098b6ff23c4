package termkey

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestDecoder(t *testing.T, cfg Config) *Decoder {
	t.Helper()
	cfg.Logger = zaptest.NewLogger(t)
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

// drain pulls keys until the decoder stops producing them and returns the
// keys together with the outcome that ended the run.
func drain(t *testing.T, d *Decoder, force bool) ([]Key, Outcome) {
	t.Helper()
	var keys []Key
	for i := 0; i < 1024; i++ {
		ev := d.NextEvent(force)
		if ev.Result != ResultKey {
			return keys, ev
		}
		keys = append(keys, ev.Key)
	}
	t.Fatal("decoder did not settle")
	return nil, Outcome{}
}

func decode(t *testing.T, d *Decoder, input string) []Key {
	t.Helper()
	require.Equal(t, len(input), d.PushBytes([]byte(input)))
	keys, last := drain(t, d, false)
	require.Equal(t, ResultNone, last.Result, "input %q left %d bytes", input, d.Buffered())
	return keys
}

// decodeCases pairs raw terminal input with the keys it decodes to.
var decodeCases = []struct {
	name  string
	input string
	want  []Key
}{
	{"ascii", "a", []Key{UnicodeKey('a', 0)}},
	{"ctrl letter", "\x01", []Key{UnicodeKey('a', ModCtrl)}},
	{"ctrl space", "\x00", []Key{UnicodeKey(' ', ModCtrl)}},
	{"ctrl backslash", "\x1c", []Key{UnicodeKey('\\', ModCtrl)}},
	{"tab", "\t", []Key{SymKey(SymTab, 0)}},
	{"enter", "\r", []Key{SymKey(SymEnter, 0)}},
	{"backspace", "\x08", []Key{SymKey(SymBackspace, 0)}},
	{"del", "\x7f", []Key{SymKey(SymDEL, 0)}},
	{"utf8", "é", []Key{UnicodeKey('é', 0)}},
	{"utf8 4 byte", "🙂", []Key{UnicodeKey('🙂', 0)}},
	{"up", "\x1b[A", []Key{SymKey(SymUp, 0)}},
	{"ctrl right", "\x1b[1;5C", []Key{SymKey(SymRight, ModCtrl)}},
	{"shift alt home", "\x1b[1;4H", []Key{SymKey(SymHome, ModShift|ModAlt)}},
	{"ss3 f1", "\x1bOP", []Key{FunctionKey(1, 0)}},
	{"ss3 end", "\x1bOF", []Key{SymKey(SymEnd, 0)}},
	{"csi ctrl f1", "\x1b[1;5P", []Key{FunctionKey(1, ModCtrl)}},
	{"shift f3", "\x1b[1;2R", []Key{FunctionKey(3, ModShift)}},
	{"f5", "\x1b[15~", []Key{FunctionKey(5, 0)}},
	{"f20", "\x1b[34~", []Key{FunctionKey(20, 0)}},
	{"shift delete", "\x1b[3;2~", []Key{SymKey(SymDelete, ModShift)}},
	{"find", "\x1b[1~", []Key{SymKey(SymFind, 0)}},
	{"backtab", "\x1b[Z", []Key{SymKey(SymTab, ModShift)}},
	{"alt letter", "\x1ba", []Key{UnicodeKey('a', ModAlt)}},
	{"alt up", "\x1b\x1b[A", []Key{SymKey(SymUp, ModAlt)}},
	{"alt ctrl letter", "\x1b\x01", []Key{UnicodeKey('a', ModAlt|ModCtrl)}},
	{"alt escape", "\x1b\x1b\x1b[B", []Key{SymKey(SymDown, ModAlt)}},
	{"csi u", "\x1b[97;5u", []Key{UnicodeKey('a', ModCtrl)}},
	{"csi u enter", "\x1b[13;3u", []Key{SymKey(SymEnter, ModAlt)}},
	{"csi u repeat", "\x1b[97;1:2u", []Key{UnicodeKey('a', 0)}},
	{"kitty f13", "\x1b[57376u", []Key{FunctionKey(13, 0)}},
	{"kitty keypad", "\x1b[57399;2u", []Key{SymKey(SymKP0, ModShift)}},
	{"modify other keys", "\x1b[27;5;105~", []Key{UnicodeKey('i', ModCtrl)}},
	{"kp enter", "\x1bOM", []Key{SymKey(SymKPEnter, 0)}},
	{"kp digit", "\x1bOp", []Key{SymKey(SymKP0, 0)}},
	{"kp mult", "\x1bOj", []Key{SymKey(SymKPMult, 0)}},
	{"unknown ss3", "\x1bOz", []Key{UnicodeKey('O', ModAlt), UnicodeKey('z', 0)}},
	{"x10 press", "\x1b[M !!", []Key{MouseKey(MousePress, 1, 1, 1, 0)}},
	{"x10 release", "\x1b[M#%&", []Key{MouseKey(MouseRelease, 0, 6, 5, 0)}},
	{"x10 wheel", "\x1b[M`!!", []Key{MouseKey(MousePress, 4, 1, 1, 0)}},
	{"x10 ctrl", "\x1b[M0!!", []Key{MouseKey(MousePress, 1, 1, 1, ModCtrl)}},
	{"sgr press", "\x1b[<0;10;20M", []Key{MouseKey(MousePress, 1, 20, 10, 0)}},
	{"sgr release", "\x1b[<2;10;20m", []Key{MouseKey(MouseRelease, 3, 20, 10, 0)}},
	{"sgr drag", "\x1b[<32;3;4M", []Key{MouseKey(MouseDrag, 1, 4, 3, 0)}},
	{"sgr wheel down", "\x1b[<65;1;1M", []Key{MouseKey(MousePress, 5, 1, 1, 0)}},
	{"sgr shift", "\x1b[<4;1;1M", []Key{MouseKey(MousePress, 1, 1, 1, ModShift)}},
	{"sgr clamped", "\x1b[<0;9999;9999M", []Key{MouseKey(MousePress, 1, 0x7ff, 0xfff, 0)}},
	{"rxvt", "\x1b[35;5;6M", []Key{MouseKey(MouseRelease, 0, 6, 5, 0)}},
	{"dec position", "\x1b[?12;40R", []Key{PositionKey(12, 40)}},
	{"position", "\x1b[12;40R", []Key{PositionKey(12, 40)}},
	{"position home", "\x1b[1;1R", []Key{PositionKey(1, 1)}},
	{"dec mode report", "\x1b[?1049;2$y", []Key{ModeReportKey(true, 1049, 2)}},
	{"ansi mode report", "\x1b[4;1$y", []Key{ModeReportKey(false, 4, 1)}},
	{"unknown final", "\x1b[1;2z", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: 'z', Params: "1;2"}}}},
	{"unknown private", "\x1b[>1;10;0c", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Initial: '>', Final: 'c', Params: "1;10;0"}}}},
	{"unknown tilde", "\x1b[200~", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: '~', Params: "200"}}}},
	{"kitty release", "\x1b[97;1:3u", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: 'u', Params: "97;1:3"}}}},
	{"csi u surrogate", "\x1b[55296u", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: 'u', Params: "55296"}}}},
	{"modify other keys surrogate", "\x1b[27;1;57343~", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: '~', Params: "27;1;57343"}}}},
	{"modify other keys beyond unicode", "\x1b[27;1;1114112~", []Key{{Type: TypeUnknownCSI, CSI: CSICommand{Final: '~', Params: "27;1;1114112"}}}},
	{"sequence of keys", "ab\x1b[Dc", []Key{UnicodeKey('a', 0), UnicodeKey('b', 0), SymKey(SymLeft, 0), UnicodeKey('c', 0)}},
}

func TestDecodeKeys(t *testing.T) {
	for _, tt := range decodeCases {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t, Config{})
			assert.Equal(t, tt.want, decode(t, d, tt.input))
		})
	}
}

func TestDecodedKeysRoundTrip(t *testing.T) {
	styles := []Format{
		0,
		FormatLongMod | FormatLowerMod | FormatSpaceMod,
		FormatLowerSpace,
		FormatVim | FormatCaretCtrl,
		FormatURWID | FormatMousePos,
	}

	for _, tt := range decodeCases {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t, Config{})
			for _, k := range decode(t, d, tt.input) {
				if k.Type == TypeUnknownCSI {
					continue
				}
				if k.Type == TypeUnicode {
					assert.True(t, utf8.ValidRune(k.Rune), "rune %U", k.Rune)
					assert.Equal(t, string(k.Rune), k.UTF8)
				}
				for _, style := range styles {
					text := d.Format(k, style)
					got, rest, err := d.Parse(text, style)
					require.NoError(t, err, "style %#x text %q", uint16(style), text)
					assert.Empty(t, rest)

					want := k
					if want.Type == TypeMouse && style&FormatMousePos == 0 {
						want.Line, want.Col = 0, 0
					}
					assert.Equal(t, want, got, "style %#x text %q", uint16(style), text)
				}
			}
		})
	}
}

func TestLoneEscapeIsAmbiguous(t *testing.T) {
	d := newTestDecoder(t, Config{WaitTime: 20 * time.Millisecond})
	d.PushBytes([]byte{0x1b})

	ev := d.NextEvent(false)
	assert.Equal(t, ResultAgain, ev.Result)
	assert.Equal(t, 20*time.Millisecond, ev.Wait)
	assert.Equal(t, 1, d.Buffered(), "Again must not consume")

	ev = d.NextEvent(true)
	require.Equal(t, ResultKey, ev.Result)
	assert.Equal(t, SymKey(SymEscape, 0), ev.Key)
	assert.Equal(t, ResultNone, d.NextEvent(false).Result)
}

func TestEscapeResolvedByLaterInput(t *testing.T) {
	d := newTestDecoder(t, Config{})
	d.PushBytes([]byte("\x1b[1;5"))
	assert.Equal(t, ResultAgain, d.NextEvent(false).Result)

	d.PushBytes([]byte("A"))
	ev := d.NextEvent(false)
	require.Equal(t, ResultKey, ev.Result)
	assert.Equal(t, SymKey(SymUp, ModCtrl), ev.Key)
}

func TestForcedPartialSequences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Key
	}{
		{"csi introducer", "\x1b[", []Key{UnicodeKey('[', ModAlt)}},
		{"unterminated csi", "\x1b[12", []Key{UnicodeKey('[', ModAlt), UnicodeKey('1', 0), UnicodeKey('2', 0)}},
		{"ss3 introducer", "\x1bO", []Key{UnicodeKey('O', ModAlt)}},
		{"short x10", "\x1b[M !", []Key{UnicodeKey('[', ModAlt), UnicodeKey('M', 0), UnicodeKey(' ', 0), UnicodeKey('!', 0)}},
		{"double escape", "\x1b\x1b", []Key{SymKey(SymEscape, ModAlt)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t, Config{})
			d.PushBytes([]byte(tt.input))
			assert.Equal(t, ResultAgain, d.NextEvent(false).Result)

			keys, last := drain(t, d, true)
			assert.Equal(t, tt.want, keys)
			assert.Equal(t, ResultNone, last.Result)
		})
	}
}

func TestForceAlwaysProgresses(t *testing.T) {
	inputs := []string{
		"\x1b[\x1bO\xc3\x1b",
		"\x1b\x1b\x1b",
		"\xf0\x9f",
		"\x1b[<0;1",
		"\x80\x80\x1bO",
		"\x1b[M\xc3",
	}

	for _, input := range inputs {
		d := newTestDecoder(t, Config{})
		d.PushBytes([]byte(input))
		for d.Buffered() > 0 {
			before := d.Buffered()
			ev := d.NextEvent(true)
			require.NotEqual(t, ResultAgain, ev.Result, "input %q", input)
			require.Less(t, d.Buffered(), before, "input %q", input)
		}
	}
}

func TestPartialUTF8(t *testing.T) {
	d := newTestDecoder(t, Config{})
	d.PushBytes([]byte{0xc3})
	assert.Equal(t, ResultAgain, d.NextEvent(false).Result)

	d.PushBytes([]byte{0xa9})
	ev := d.NextEvent(false)
	require.Equal(t, ResultKey, ev.Result)
	assert.Equal(t, UnicodeKey('é', 0), ev.Key)
	assert.Equal(t, "é", ev.Key.UTF8)
}

func TestMalformedUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare continuation", "\xa9a"},
		{"bad continuation", "\xc3a"},
		{"overlong", "\xc0\xafa"},
		{"surrogate", "\xed\xa0\x80a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t, Config{})
			d.PushBytes([]byte(tt.input))

			var errs int
			var keys []Key
			for d.Buffered() > 0 {
				ev := d.NextEvent(false)
				switch ev.Result {
				case ResultError:
					assert.ErrorIs(t, ev.Err, ErrMalformedUTF8)
					errs++
				case ResultKey:
					keys = append(keys, ev.Key)
				default:
					t.Fatalf("unexpected %s", ev.Result)
				}
			}
			assert.Positive(t, errs)
			assert.Equal(t, []Key{UnicodeKey('a', 0)}, keys)
		})
	}
}

func TestTruncatedUTF8UnderForce(t *testing.T) {
	d := newTestDecoder(t, Config{})
	d.PushBytes([]byte{0xe2, 0x82})

	ev := d.NextEvent(true)
	assert.Equal(t, ResultError, ev.Result)
	assert.ErrorIs(t, ev.Err, ErrMalformedUTF8)
	assert.Equal(t, 1, d.Buffered())
}

func TestRawMode(t *testing.T) {
	d := newTestDecoder(t, Config{Raw: true})

	assert.Equal(t, []Key{UnicodeKey('Ã', 0), UnicodeKey('©', 0)}, decode(t, d, "\xc3\xa9"))
	assert.Equal(t, []Key{UnicodeKey('A', ModCtrl|ModAlt)}, decode(t, d, "\x81"))
	assert.Equal(t, []Key{SymKey(SymUp, 0)}, decode(t, d, "\x9bA"))
	assert.Equal(t, []Key{FunctionKey(2, 0)}, decode(t, d, "\x8fQ"))
}

func TestUTF8ModeSwitch(t *testing.T) {
	d := newTestDecoder(t, Config{})
	assert.Equal(t, []Key{UnicodeKey('é', 0)}, decode(t, d, "\xc3\xa9"))

	d.SetRaw(true)
	assert.True(t, d.Raw())
	assert.Len(t, decode(t, d, "\xc3\xa9"), 2)
}

func TestBufferCapacity(t *testing.T) {
	d := newTestDecoder(t, Config{BufferSize: 4})

	n := d.PushBytes([]byte("abcdef"))
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, d.BufferRemaining())

	n, err := d.Write([]byte("ef"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrBufferFull)

	keys, _ := drain(t, d, false)
	assert.Len(t, keys, 4)
	assert.Equal(t, 4, d.BufferRemaining())

	n, err = d.Write([]byte("ef"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSetBufferSize(t *testing.T) {
	d := newTestDecoder(t, Config{})
	assert.Equal(t, DefaultBufferSize, d.BufferSize())

	d.PushBytes([]byte("abcdef"))
	assert.ErrorIs(t, d.SetBufferSize(3), ErrInvalidConfig)
	assert.ErrorIs(t, d.SetBufferSize(0), ErrInvalidConfig)

	require.NoError(t, d.SetBufferSize(8))
	assert.Equal(t, 2, d.BufferRemaining())
}

func TestClose(t *testing.T) {
	d := newTestDecoder(t, Config{})
	d.PushBytes([]byte("a\x1b"))
	require.NoError(t, d.Close())

	assert.Equal(t, 0, d.PushBytes([]byte("b")))
	_, err := d.Write([]byte("b"))
	assert.ErrorIs(t, err, ErrClosed)

	keys, last := drain(t, d, false)
	assert.Equal(t, []Key{UnicodeKey('a', 0), SymKey(SymEscape, 0)}, keys)
	assert.Equal(t, ResultEOF, last.Result)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{WaitTime: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BufferSize: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	d := newTestDecoder(t, Config{})
	assert.Equal(t, DefaultWaitTime, d.WaitTime())
	assert.Equal(t, DefaultBufferSize, d.BufferSize())
	assert.Equal(t, int(numBuiltinSyms), d.Symbols().Len())

	def := DefaultConfig()
	assert.Equal(t, DefaultWaitTime, def.WaitTime)
	assert.NoError(t, def.Validate())
	assert.NoError(t, Config{Raw: true}.Validate(), "nil charmap selects ISO 8859-1")
}

func TestFlags(t *testing.T) {
	d := newTestDecoder(t, Config{})

	d.SetSpaceSymbol(true)
	assert.True(t, d.SpaceSymbol())
	assert.Equal(t, []Key{SymKey(SymSpace, 0)}, decode(t, d, " "))
	assert.Equal(t, []Key{SymKey(SymSpace, ModCtrl)}, decode(t, d, "\x00"))

	d.SetDelBS(true)
	assert.True(t, d.DelBS())
	assert.Equal(t, []Key{SymKey(SymBackspace, 0)}, decode(t, d, "\x7f"))

	d.SetNoInterpret(true)
	assert.True(t, d.NoInterpret())
	assert.Equal(t, []Key{UnicodeKey('i', ModCtrl)}, decode(t, d, "\t"))
	assert.Equal(t, []Key{UnicodeKey(0x7f, 0)}, decode(t, d, "\x7f"))

	d.SetConvertKP(true)
	assert.True(t, d.ConvertKP())
	assert.Equal(t, []Key{UnicodeKey('0', 0), UnicodeKey('*', 0)}, decode(t, d, "\x1bOp\x1bOj"))
	assert.Equal(t, []Key{SymKey(SymKPEnter, 0)}, decode(t, d, "\x1bOM"))

	d.SetCtrlC(true)
	assert.True(t, d.CtrlC())
	assert.Equal(t, []Key{UnicodeKey('c', ModCtrl)}, decode(t, d, "\x03"))

	d.SetWaitTime(time.Second)
	assert.Equal(t, time.Second, d.WaitTime())
}

func TestRegisterSequence(t *testing.T) {
	d := newTestDecoder(t, Config{})

	require.NoError(t, d.RegisterSequence("\x1b[25~", SymKey(SymHelp, 0)))
	assert.Equal(t, []Key{SymKey(SymHelp, 0)}, decode(t, d, "\x1b[25~"))

	require.NoError(t, d.RegisterSequence("\x1bXY", SymKey(SymRedo, 0)))
	assert.Equal(t, []Key{SymKey(SymRedo, 0)}, decode(t, d, "\x1bXY"))

	d.PushBytes([]byte("\x1bX"))
	assert.Equal(t, ResultAgain, d.NextEvent(false).Result)
	keys, _ := drain(t, d, true)
	assert.Equal(t, []Key{UnicodeKey('X', ModAlt)}, keys)

	assert.ErrorIs(t, d.RegisterSequence("", SymKey(SymRedo, 0)), ErrInvalidConfig)
}

func TestRegisterKeyname(t *testing.T) {
	d := newTestDecoder(t, Config{})

	sym := d.RegisterKeyname("Media", SymUnknown)
	assert.Equal(t, numBuiltinSyms, sym)
	assert.Equal(t, "Media", d.KeyName(sym))

	got, ok := d.LookupKeyname("Media")
	require.True(t, ok)
	assert.Equal(t, sym, got)

	require.NoError(t, d.RegisterSequence("\x1b[99~", SymKey(sym, 0)))
	keys := decode(t, d, "\x1b[99~")
	require.Len(t, keys, 1)
	assert.Equal(t, "<Media>", d.Format(keys[0], FormatVim))

	parsed, rest, err := d.Parse("<Media>", FormatVim)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, keys[0], parsed)
}

func TestKeyCmp(t *testing.T) {
	d := newTestDecoder(t, Config{DelBS: true})
	assert.Zero(t, d.KeyCmp(SymKey(SymDEL, 0), SymKey(SymBackspace, 0)))
	assert.Zero(t, d.KeyCmp(SymKey(SymSpace, ModCtrl), UnicodeKey(' ', ModCtrl)))
	assert.Negative(t, d.KeyCmp(UnicodeKey('a', 0), UnicodeKey('b', 0)))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "Again", ResultAgain.String())
	assert.Equal(t, "Result(42)", Result(42).String())
}
