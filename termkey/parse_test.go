package termkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		style    Format
		want     Key
		wantRest string
	}{
		{"plain", "a", 0, UnicodeKey('a', 0), ""},
		{"ctrl", "C-a", 0, UnicodeKey('a', ModCtrl), ""},
		{"long mod", "Ctrl-a", FormatLongMod, UnicodeKey('a', ModCtrl), ""},
		{"caret", "^A", FormatCaretCtrl, UnicodeKey('a', ModCtrl), ""},
		{"caret lower", "^a", FormatCaretCtrl, UnicodeKey('^', 0), "a"},
		{"vim", "<C-a>", FormatVim, UnicodeKey('a', ModCtrl), ""},
		{"vim meta ctrl", "<M-C-a>", FormatVim, UnicodeKey('a', ModCtrl|ModAlt), ""},
		{"vim bare bracket", "<", FormatVim, UnicodeKey('<', 0), ""},
		{"vim bracket key", "<M->>", FormatVim, UnicodeKey('>', ModAlt), ""},
		{"vim unclosed", "<C-a", FormatVim, UnicodeKey('<', 0), "C-a"},
		{"keysym", "S-Up", 0, SymKey(SymUp, ModShift), ""},
		{"keysym rest", "Enterx", 0, SymKey(SymEnter, 0), "x"},
		{"longest keysym", "PageDown", 0, SymKey(SymPageDown, 0), ""},
		{"urwid", "shift ctrl page up", FormatURWID, SymKey(SymPageUp, ModShift|ModCtrl), ""},
		{"urwid meta", "meta a", FormatURWID, UnicodeKey('a', ModAlt), ""},
		{"urwid function", "f5", FormatURWID, FunctionKey(5, 0), ""},
		{"urwid del", "del", FormatURWID, SymKey(SymDEL, 0), ""},
		{"urwid delete", "delete", FormatURWID, SymKey(SymDelete, 0), ""},
		{"function", "F12", 0, FunctionKey(12, 0), ""},
		{"lower f without lower space", "f5", 0, UnicodeKey('f', 0), "5"},
		{"dangling modifier", "C-", 0, UnicodeKey('C', 0), "-"},
		{"ctrl minus", "C--", 0, UnicodeKey('-', ModCtrl), ""},
		{"ctrl space", "C  ", FormatSpaceMod, UnicodeKey(' ', ModCtrl), ""},
		{"sequence", "C-aC-b", 0, UnicodeKey('a', ModCtrl), "C-b"},
		{"mouse", "MousePress(1)", 0, MouseKey(MousePress, 1, 0, 0, 0), ""},
		{"mouse position", "C-MouseDrag(2) @ (10,5)", FormatMousePos, MouseKey(MouseDrag, 2, 5, 10, ModCtrl), ""},
		{"mouse unclosed", "MousePress(1", 0, UnicodeKey('M', 0), "ousePress(1"},
		{"position", "Position @ (40,12)", 0, PositionKey(12, 40), ""},
		{"dec mode", "Mode(?1049=2)", 0, ModeReportKey(true, 1049, 2), ""},
		{"ansi mode", "Mode(4=-1)", 0, ModeReportKey(false, 4, -1), ""},
		{"space symbol", "Space", 0, UnicodeKey(' ', 0), ""},
		{"none placeholder", "NONE", 0, UnicodeKey('N', 0), "ONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest, err := ParseKey(tt.text, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestParseKeyErrors(t *testing.T) {
	for _, text := range []string{"", "\xff", "\x80abc"} {
		_, rest, err := ParseKey(text, 0)
		assert.ErrorIs(t, err, ErrUnsupportedNotation, "text %q", text)
		assert.Equal(t, text, rest)
	}
}

func TestDecoderParseCanonicalizes(t *testing.T) {
	d := newTestDecoder(t, Config{SpaceSymbol: true, DelBS: true})

	k, _, err := d.Parse(" ", 0)
	require.NoError(t, err)
	assert.Equal(t, SymKey(SymSpace, 0), k)

	k, _, err = d.Parse("DEL", 0)
	require.NoError(t, err)
	assert.Equal(t, SymKey(SymBackspace, 0), k)
}
