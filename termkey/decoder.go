package termkey

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result classifies an Outcome.
type Result int

const (
	// ResultNone means the buffer holds no complete key.
	ResultNone Result = iota
	// ResultKey means Outcome.Key holds a decoded key.
	ResultKey
	// ResultEOF means the input was closed and the buffer is drained.
	ResultEOF
	// ResultAgain means the buffer holds an ambiguous prefix. Wait up to
	// Outcome.Wait for more input, then call NextEvent(true).
	ResultAgain
	// ResultError means Outcome.Err describes a discarded byte.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "None"
	case ResultKey:
		return "Key"
	case ResultEOF:
		return "EOF"
	case ResultAgain:
		return "Again"
	case ResultError:
		return "Error"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Outcome is the result of one NextEvent call.
type Outcome struct {
	Result Result
	Key    Key
	Wait   time.Duration
	Err    error
}

// Decoder turns a terminal byte stream into keys. Bytes go in through
// PushBytes or Write and keys come out of NextEvent. A Decoder never reads,
// sleeps or starts timers; the caller schedules waits from ResultAgain.
//
// A Decoder is not safe for concurrent use: one goroutine pushes and pulls.
type Decoder struct {
	cfg    Config
	log    *zap.Logger
	buf    []byte
	closed bool
	seqs   seqTrie
}

// New creates a Decoder. Zero fields of cfg take their defaults.
func New(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Decoder{
		cfg: cfg,
		log: cfg.Logger,
	}, nil
}

// PushBytes appends as much of p as fits below the buffer ceiling and
// returns the count accepted. Callers retry the remainder after draining
// keys. Nothing is accepted once the input is closed.
func (d *Decoder) PushBytes(p []byte) int {
	if d.closed {
		return 0
	}
	n := min(len(p), d.BufferRemaining())
	d.buf = append(d.buf, p[:n]...)
	return n
}

// Write implements io.Writer over PushBytes.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	n := d.PushBytes(p)
	if n < len(p) {
		return n, ErrBufferFull
	}
	return n, nil
}

// Close marks the input as finished. Buffered bytes still decode; once they
// are gone NextEvent reports ResultEOF.
func (d *Decoder) Close() error {
	d.closed = true
	return nil
}

// NextEvent decodes one key from the head of the buffer.
//
// Without force, an ambiguous prefix (a lone ESC, an unterminated CSI, a
// partial UTF-8 sequence) yields ResultAgain and nothing is consumed. With
// force, every call on a non-empty buffer consumes at least one byte. After
// Close, ambiguous prefixes are resolved as if force were set.
func (d *Decoder) NextEvent(force bool) Outcome {
	if len(d.buf) == 0 {
		if d.closed {
			return Outcome{Result: ResultEOF}
		}
		return Outcome{Result: ResultNone}
	}

	force = force || d.closed
	k, n, res := d.peek(d.buf, force)
	switch res {
	case peekKey:
		d.consume(n)
		return Outcome{Result: ResultKey, Key: k.Canonicalize(d.cfg.canon())}

	case peekAgain:
		return Outcome{Result: ResultAgain, Wait: d.cfg.WaitTime}

	case peekError:
		b := d.buf[0]
		d.consume(n)
		d.log.Debug("discarding malformed input", zap.Uint8("byte", b))
		return Outcome{
			Result: ResultError,
			Err:    fmt.Errorf("byte 0x%02x: %w", b, ErrMalformedUTF8),
		}
	}

	// Unreachable: the simple path always decides.
	d.consume(1)
	return Outcome{Result: ResultNone}
}

// Take removes and returns every buffered byte without decoding it. Binding
// layers use it to switch to raw handling, e.g. inside a bracketed paste.
func (d *Decoder) Take() []byte {
	out := d.buf
	d.buf = nil
	return out
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

// Buffered reports the number of undecoded bytes.
func (d *Decoder) Buffered() int { return len(d.buf) }

// BufferRemaining reports how many more bytes PushBytes will accept.
func (d *Decoder) BufferRemaining() int { return d.cfg.BufferSize - len(d.buf) }

// BufferSize returns the buffer ceiling.
func (d *Decoder) BufferSize() int { return d.cfg.BufferSize }

// SetBufferSize changes the buffer ceiling. It fails if size is not
// positive or is smaller than the bytes already buffered.
func (d *Decoder) SetBufferSize(size int) error {
	if size <= 0 || size > maxBufferSize {
		return fmt.Errorf("%w: buffer size %d out of range", ErrInvalidConfig, size)
	}
	if size < len(d.buf) {
		return fmt.Errorf("%w: buffer size %d below %d buffered bytes", ErrInvalidConfig, size, len(d.buf))
	}
	d.cfg.BufferSize = size
	return nil
}

// WaitTime returns the ambiguity timeout reported with ResultAgain.
func (d *Decoder) WaitTime() time.Duration { return d.cfg.WaitTime }

// SetWaitTime sets the ambiguity timeout.
func (d *Decoder) SetWaitTime(wait time.Duration) { d.cfg.WaitTime = max(wait, 0) }

func (d *Decoder) Raw() bool              { return d.cfg.Raw }
func (d *Decoder) SetRaw(raw bool)        { d.cfg.Raw = raw }
func (d *Decoder) SpaceSymbol() bool      { return d.cfg.SpaceSymbol }
func (d *Decoder) SetSpaceSymbol(on bool) { d.cfg.SpaceSymbol = on }
func (d *Decoder) DelBS() bool            { return d.cfg.DelBS }
func (d *Decoder) SetDelBS(on bool)       { d.cfg.DelBS = on }
func (d *Decoder) NoInterpret() bool      { return d.cfg.NoInterpret }
func (d *Decoder) SetNoInterpret(on bool) { d.cfg.NoInterpret = on }
func (d *Decoder) ConvertKP() bool        { return d.cfg.ConvertKP }
func (d *Decoder) SetConvertKP(on bool)   { d.cfg.ConvertKP = on }
func (d *Decoder) CtrlC() bool            { return d.cfg.CtrlC }
func (d *Decoder) SetCtrlC(on bool)       { d.cfg.CtrlC = on }

// Canon returns the canonicalization rules implied by the configuration.
func (d *Decoder) Canon() Canon { return d.cfg.canon() }

// Canonicalize applies the decoder's canonicalization rules to k.
func (d *Decoder) Canonicalize(k Key) Key { return k.Canonicalize(d.cfg.canon()) }

// KeyCmp compares two keys after canonicalizing both.
func (d *Decoder) KeyCmp(a, b Key) int {
	return Compare(d.Canonicalize(a), d.Canonicalize(b))
}

// Symbols returns the decoder's keysym table.
func (d *Decoder) Symbols() *SymbolTable { return d.cfg.Symbols }

// LookupKeyname finds a keysym by exact name.
func (d *Decoder) LookupKeyname(name string) (Sym, bool) {
	return d.cfg.Symbols.Lookup(name)
}

// RegisterKeyname binds name to sym, allocating a new id for SymUnknown.
func (d *Decoder) RegisterKeyname(name string, sym Sym) Sym {
	return d.cfg.Symbols.Register(name, sym)
}

// KeyName returns the name of sym, or "" if it has none.
func (d *Decoder) KeyName(sym Sym) string {
	return d.cfg.Symbols.Name(sym)
}

// RegisterSequence makes seq decode as k. Registered sequences are matched
// before the built-in grammar, longest first.
func (d *Decoder) RegisterSequence(seq string, k Key) error {
	if seq == "" {
		return fmt.Errorf("%w: empty sequence", ErrInvalidConfig)
	}
	if len(seq) > d.cfg.BufferSize {
		return fmt.Errorf("%w: sequence %q longer than buffer", ErrInvalidConfig, seq)
	}
	d.seqs.add([]byte(seq), k)
	return nil
}

// Format renders k using the decoder's keysym names.
func (d *Decoder) Format(k Key, style Format) string {
	return formatKey(d.cfg.Symbols, k, style)
}

// Parse reads one key notation from the start of text, returning the key,
// canonicalized with the decoder's rules, and the unconsumed rest.
func (d *Decoder) Parse(text string, style Format) (Key, string, error) {
	k, rest, err := parseKey(d.cfg.Symbols, text, style)
	if err != nil {
		return Key{}, text, err
	}
	return d.Canonicalize(k), rest, nil
}
