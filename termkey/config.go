package termkey

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

const (
	// DefaultWaitTime is how long a caller should wait for the rest of an
	// ambiguous sequence before forcing it.
	DefaultWaitTime = 50 * time.Millisecond

	// DefaultBufferSize is the default ceiling on buffered input bytes.
	DefaultBufferSize = 256

	maxBufferSize = 1 << 20
)

// Config configures a Decoder. Zero values select the defaults.
type Config struct {
	// Raw treats input as 8-bit bytes instead of UTF-8.
	Raw bool

	// RawCharmap maps bytes 0xa0..0xff to runes in Raw mode.
	// Default: ISO 8859-1.
	RawCharmap *charmap.Charmap

	// SpaceSymbol reports the space bar as SymSpace rather than U+0020.
	SpaceSymbol bool

	// DelBS reports DEL (0x7f) as SymBackspace.
	DelBS bool

	// NoInterpret leaves C0 codes as Ctrl-letters and DEL as U+007F.
	NoInterpret bool

	// ConvertKP reports keypad keys that carry a character as that character.
	ConvertKP bool

	// CtrlC marks Ctrl-C as an ordinary key. The decoder itself always
	// reports it; the flag is consulted by the binding layer.
	CtrlC bool

	// WaitTime is the ambiguity timeout reported with ResultAgain (default: 50ms).
	WaitTime time.Duration

	// BufferSize caps the number of buffered bytes (default: 256).
	BufferSize int

	// Symbols is the keysym table. Default: a fresh builtin table.
	Symbols *SymbolTable

	// Logger receives debug diagnostics. Default: no-op.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration New uses for zero fields.
func DefaultConfig() Config {
	return Config{
		RawCharmap: charmap.ISO8859_1,
		WaitTime:   DefaultWaitTime,
		BufferSize: DefaultBufferSize,
	}
}

// Validate reports whether cfg can build a Decoder.
func (cfg Config) Validate() error {
	if cfg.WaitTime < 0 {
		return fmt.Errorf("%w: negative wait time %s", ErrInvalidConfig, cfg.WaitTime)
	}
	if cfg.BufferSize < 0 || cfg.BufferSize > maxBufferSize {
		return fmt.Errorf("%w: buffer size %d out of range", ErrInvalidConfig, cfg.BufferSize)
	}
	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.RawCharmap == nil {
		cfg.RawCharmap = charmap.ISO8859_1
	}
	if cfg.WaitTime == 0 {
		cfg.WaitTime = DefaultWaitTime
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Symbols == nil {
		cfg.Symbols = NewSymbolTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func (cfg Config) canon() Canon {
	var c Canon
	if cfg.SpaceSymbol {
		c |= CanonSpaceSymbol
	}
	if cfg.DelBS {
		c |= CanonDelBS
	}
	return c
}
