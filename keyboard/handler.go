// Package keyboard reads raw terminal input and turns it into keys.
// It drives a termkey.Decoder from any io.Reader, handles bracketed paste,
// and can assemble keys into lines.
package keyboard

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/phroun/termkey/termkey"
)

// PasteChunk represents an incremental chunk of bracketed paste content
type PasteChunk struct {
	Content []byte // The chunk content
	IsFinal bool   // True if this is the final chunk
}

// Handler handles raw keyboard input, decoding escape sequences
// and providing both key events and line assembly.
type Handler struct {
	mu sync.Mutex

	// Input source
	inputReader io.Reader     // Raw input source (any io.Reader)
	rawBytes    chan []byte   // Channel for raw byte chunks, closed at end of input
	stopChan    chan struct{} // Signal to stop reading
	done        chan struct{} // Closed when the processing goroutine exits

	// Output channels
	Keys  chan termkey.Key // Decoded key events
	Lines chan []byte      // Assembled lines

	// Callbacks (optional, called in addition to channel sends)
	OnKey        func(key termkey.Key)  // Called on each key event
	OnLine       func(line []byte)      // Called on each completed line
	OnPaste      func(content []byte)   // Called on bracketed paste content (complete)
	OnPasteChunk func(chunk PasteChunk) // Called on incremental paste chunks
	OnInterrupt  func()                 // Called on Ctrl-C unless the decoder passes it through

	// Owned by the processing goroutine once started
	decoder *termkey.Decoder
	log     *zap.Logger

	// Terminal handling (only used if input is a terminal)
	terminalFd        int         // File descriptor if we're managing terminal mode
	originalTermState *term.State // Original state to restore
	managesTerminal   bool        // True if we put terminal in raw mode

	// State
	running        bool
	inLineReadMode bool // True when line assembly is active

	// Line assembly state - stores raw bytes for proper I/O semantics
	currentLine []byte
	// Track UTF-8 character boundaries for backspace (number of bytes per char)
	charByteLengths []int

	// Bracketed paste state
	inPaste          bool
	pasteBuffer      []byte // Buffer for detecting end sequence (kept small for chunking)
	fullPasteContent []byte // Accumulator for full paste content (for OnPaste callback)
	pasteChunkSize   int    // Size of chunks to emit during paste (default: 1024)

	// macOS Option key decoding
	decodeMacOSOption bool // When true, decode macOS Option+key chars to Alt-modified keys

	// Echo output (where to echo typed characters)
	echoWriter io.Writer
}

// Options configures the Handler
type Options struct {
	// InputReader is the source of raw bytes (required)
	InputReader io.Reader

	// EchoWriter is where to echo typed characters during line mode (optional)
	EchoWriter io.Writer

	// KeyBufferSize is the size of the Keys channel buffer (default: 64)
	KeyBufferSize int

	// LineBufferSize is the size of the Lines channel buffer (default: 16)
	LineBufferSize int

	// PasteChunkSize is the size of chunks emitted during bracketed paste (default: 1024)
	// Only used when OnPasteChunk callback is set
	PasteChunkSize int

	// Decoder configures the key decoder. A nil Decoder.Logger inherits Logger.
	Decoder termkey.Config

	// Terminfo names a terminal type whose key sequences are loaded into
	// the decoder (optional)
	Terminfo string

	// Sequences maps extra escape sequences to keys (optional)
	Sequences map[string]termkey.Key

	// DecodeMacOSOption enables decoding of macOS Option+key Unicode characters
	// to Alt-modified keys (e.g., ∂ → M-d, Ø → M-O). Default: true on Darwin, false otherwise
	DecodeMacOSOption *bool

	// Logger receives debug diagnostics (default: no-op)
	Logger *zap.Logger

	// ManageTerminal controls whether to put the input in raw mode.
	// Only applies if InputReader is a terminal.
	// Default: true
	ManageTerminal *bool
}

// New creates a new keyboard Handler.
func New(opts Options) (*Handler, error) {
	if opts.InputReader == nil {
		return nil, fmt.Errorf("keyboard: input reader is required")
	}

	keyBufSize := opts.KeyBufferSize
	if keyBufSize <= 0 {
		keyBufSize = 64
	}
	lineBufSize := opts.LineBufferSize
	if lineBufSize <= 0 {
		lineBufSize = 16
	}
	pasteChunkSize := opts.PasteChunkSize
	if pasteChunkSize <= 0 {
		pasteChunkSize = DefaultPasteChunkSize
	}

	manageTerminal := true
	if opts.ManageTerminal != nil {
		manageTerminal = *opts.ManageTerminal
	}

	// Default to true on Darwin (macOS), false otherwise
	decodeMacOSOption := runtime.GOOS == "darwin"
	if opts.DecodeMacOSOption != nil {
		decodeMacOSOption = *opts.DecodeMacOSOption
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cfg := opts.Decoder
	if cfg.Logger == nil {
		cfg.Logger = log.Named("termkey")
	}
	decoder, err := termkey.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	if opts.Terminfo != "" {
		if err := decoder.LoadTerminfo(opts.Terminfo); err != nil {
			return nil, err
		}
	}
	for seq, key := range opts.Sequences {
		if err := decoder.RegisterSequence(seq, key); err != nil {
			return nil, err
		}
	}

	h := &Handler{
		inputReader:       opts.InputReader,
		rawBytes:          make(chan []byte, 64),
		stopChan:          make(chan struct{}),
		done:              make(chan struct{}),
		Keys:              make(chan termkey.Key, keyBufSize),
		Lines:             make(chan []byte, lineBufSize),
		decoder:           decoder,
		log:               log,
		echoWriter:        opts.EchoWriter,
		terminalFd:        -1,
		pasteChunkSize:    pasteChunkSize,
		decodeMacOSOption: decodeMacOSOption,
	}

	// Check if input is a terminal file descriptor
	if manageTerminal {
		if f, ok := opts.InputReader.(interface{ Fd() uintptr }); ok {
			fd := int(f.Fd())
			if term.IsTerminal(fd) {
				h.terminalFd = fd
				h.managesTerminal = true
			}
		}
	}

	return h, nil
}

// Start begins reading from input and processing keys.
func (h *Handler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return fmt.Errorf("handler already running")
	}

	// Put terminal in raw mode only if we're managing it
	if h.managesTerminal {
		state, err := term.MakeRaw(h.terminalFd)
		if err != nil {
			return fmt.Errorf("failed to enable raw mode: %w", err)
		}
		h.originalTermState = state
		h.log.Debug("terminal set to raw mode")
	}

	h.running = true

	go h.readLoop()
	go h.processLoop()

	h.log.Debug("handler started")
	return nil
}

// Stop stops reading and restores terminal state.
func (h *Handler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}

	// Signal stop
	close(h.stopChan)
	h.running = false

	// Restore terminal state if we changed it
	if h.managesTerminal && h.originalTermState != nil {
		if err := term.Restore(h.terminalFd, h.originalTermState); err != nil {
			return fmt.Errorf("failed to restore terminal: %w", err)
		}
		h.originalTermState = nil
		h.log.Debug("terminal restored to original mode")
	}

	h.log.Debug("handler stopped")
	return nil
}

// Done is closed once the handler has stopped or has decoded all input up
// to the end of the reader.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// SetLineMode enables or disables line assembly mode.
// When enabled, keys go to line assembly and completed lines are sent to Lines channel.
// When disabled, all keys go directly to Keys channel.
func (h *Handler) SetLineMode(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inLineReadMode = enabled
	if enabled {
		h.currentLine = nil
		h.charByteLengths = nil
	}
}

// IsLineMode returns true if line assembly mode is active.
func (h *Handler) IsLineMode() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inLineReadMode
}

// SetEchoWriter sets the writer for echoing typed characters.
func (h *Handler) SetEchoWriter(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.echoWriter = w
}

// IsRunning returns true if the handler is currently running.
func (h *Handler) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// ManagesTerminal returns true if this handler is managing terminal raw mode.
func (h *Handler) ManagesTerminal() bool {
	return h.managesTerminal
}

// SetDecodeMacOSOption enables or disables decoding of macOS Option+key
// Unicode characters to Alt-modified keys (e.g., ∂ → M-d).
func (h *Handler) SetDecodeMacOSOption(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decodeMacOSOption = enabled
}

// DecodeMacOSOption returns true if macOS Option character decoding is enabled.
func (h *Handler) DecodeMacOSOption() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decodeMacOSOption
}

// FormatKey renders a key using the decoder's keysym names, including any
// registered through Options.Decoder.Symbols.
func (h *Handler) FormatKey(k termkey.Key, style termkey.Format) string {
	return h.decoder.Format(k, style)
}

// macOSOptionChars maps Unicode characters produced by macOS Option+key to
// the key pressed with Option. This is for US keyboard layout
var macOSOptionChars = map[rune]rune{
	// Lowercase Option+letter
	'å': 'a',
	'∫': 'b',
	'ç': 'c',
	'∂': 'd',
	'´': 'e', // dead key - acute accent
	'ƒ': 'f',
	'©': 'g',
	'˙': 'h',
	'ˆ': 'i', // dead key - circumflex
	'∆': 'j',
	'˚': 'k',
	'¬': 'l',
	'µ': 'm',
	'˜': 'n', // dead key - tilde
	'ø': 'o',
	'π': 'p',
	'œ': 'q',
	'®': 'r',
	'ß': 's',
	'†': 't',
	'¨': 'u', // dead key - diaeresis
	'√': 'v',
	'∑': 'w',
	'≈': 'x',
	'¥': 'y',
	'Ω': 'z',

	// Option+Shift+letter; E, I, N and U repeat their dead keys
	'Å':      'A',
	'ı':      'B',
	'Ç':      'C',
	'Î':      'D',
	'Ï':      'F',
	'˝':      'G',
	'Ó':      'H',
	'Ô':      'J',
	'\uF8FF': 'K', // Apple logo, private use area
	'Ò':      'L',
	'Â':      'M',
	'Ø':      'O',
	'∏':      'P',
	'Œ':      'Q',
	'‰':      'R',
	'Í':      'S',
	'ˇ':      'T',
	'◊':      'V',
	'„':      'W',
	'˛':      'X',
	'Á':      'Y',
	'¸':      'Z',

	// Option+number
	'¡': '1',
	'™': '2',
	'£': '3',
	'¢': '4',
	'∞': '5',
	'§': '6',
	'¶': '7',
	'•': '8',
	'ª': '9',
	'º': '0',

	// Option+symbol
	'–':      '-', // en dash
	'≠':      '=',
	'\u201C': '[', // left double quote
	'\u2019': ']', // right single quote
	'«':      '\\',
	'…':      ';',
	'æ':      '\'',
	'≤':      ',',
	'≥':      '.',
	'÷':      '/',
}

// readLoop continuously reads raw bytes from input
func (h *Handler) readLoop() {
	buf := make([]byte, 256)
	for {
		select {
		case <-h.stopChan:
			return
		default:
			n, err := h.inputReader.Read(buf)
			if n > 0 {
				// Make a copy to send
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case h.rawBytes <- data:
				case <-h.stopChan:
					return
				}
			}
			if err != nil {
				h.log.Debug("read loop finished", zap.Error(err))
				close(h.rawBytes)
				return
			}
		}
	}
}

// processLoop feeds raw bytes to the decoder and dispatches its keys. It is
// the only goroutine that touches the decoder after Start.
func (h *Handler) processLoop() {
	defer close(h.done)

	wait := time.NewTimer(time.Hour)
	wait.Stop()

	for {
		select {
		case <-h.stopChan:
			return

		case data, ok := <-h.rawBytes:
			if !ok {
				// End of input: resolve whatever is still buffered
				_ = h.decoder.Close()
				h.decode(false, wait)
				if h.inPaste {
					h.endPaste(h.pasteBuffer, h.fullPasteContent)
				}
				wait.Stop()
				return
			}
			h.feed(data, wait)

		case <-wait.C:
			// Nothing completed the ambiguous prefix in time
			h.decode(true, wait)
			if h.inPaste {
				h.feed(h.decoder.Take(), wait)
			}
		}
	}
}

// Bracketed paste sequences
const (
	bracketedPasteStart = "200"
	bracketedPasteEnd   = "\x1b[201~"
)

// pasteEndBufferSize is the number of bytes to keep buffered during paste
// to avoid splitting the end sequence (\x1b[201~ is 6 bytes, we buffer 7 to be safe)
const pasteEndBufferSize = 7

// DefaultPasteChunkSize is the default size for paste chunks (1KB)
const DefaultPasteChunkSize = 1024

// feed pushes data through the decoder. Inside a bracketed paste bytes
// bypass the decoder until the end sequence.
func (h *Handler) feed(data []byte, wait *time.Timer) {
	for len(data) > 0 {
		if h.inPaste {
			data = h.feedPaste(data)
			continue
		}

		n := h.decoder.PushBytes(data)
		data = data[n:]
		// A full buffer that decodes to nothing holds one long ambiguous
		// prefix; force it so the rest can get in.
		h.decode(n == 0, wait)

		if h.inPaste {
			data = append(h.decoder.Take(), data...)
		}
	}
}

// decode drains keys from the decoder. With force set the first call
// resolves an ambiguous prefix; later ones wait for input as usual.
func (h *Handler) decode(force bool, wait *time.Timer) {
	wait.Stop()
	for {
		ev := h.decoder.NextEvent(force)
		force = false

		switch ev.Result {
		case termkey.ResultKey:
			h.dispatch(ev.Key)
			if h.inPaste {
				return
			}
		case termkey.ResultAgain:
			wait.Reset(ev.Wait)
			return
		case termkey.ResultError:
			h.log.Debug("dropped input", zap.Error(ev.Err))
		default:
			return
		}
	}
}

// dispatch routes one decoded key: paste markers switch modes, Ctrl-C may
// interrupt, everything else is emitted.
func (h *Handler) dispatch(k termkey.Key) {
	if k.Type == termkey.TypeUnknownCSI {
		if k.CSI.Final == '~' && k.CSI.Initial == 0 && k.CSI.Params == bracketedPasteStart {
			h.log.Debug("bracketed paste start detected")
			h.inPaste = true
			h.pasteBuffer = nil
			h.fullPasteContent = nil
			return
		}
	}

	if k.Type == termkey.TypeUnicode && k.Rune == 'c' && k.Mods == termkey.ModCtrl && !h.decoder.CtrlC() {
		h.interrupt()
		return
	}

	h.emitKey(k)
}

// interrupt handles Ctrl-C when it is not an ordinary key: the OnInterrupt
// callback if set, otherwise stop and deliver SIGINT to ourselves.
func (h *Handler) interrupt() {
	h.log.Debug("interrupt")
	if h.OnInterrupt != nil {
		h.OnInterrupt()
		return
	}
	if err := h.Stop(); err != nil {
		h.log.Warn("stopping on interrupt", zap.Error(err))
	}
	if err := raiseInterrupt(); err != nil {
		h.log.Warn("raising interrupt", zap.Error(err))
	}
}

// feedPaste consumes paste content up to and including the end sequence
// and returns the bytes after it.
func (h *Handler) feedPaste(data []byte) []byte {
	for i, b := range data {
		h.pasteBuffer = append(h.pasteBuffer, b)
		h.fullPasteContent = append(h.fullPasteContent, b)

		if bytes.HasSuffix(h.pasteBuffer, []byte(bracketedPasteEnd)) {
			// End of paste - extract remaining content (without the end sequence)
			remaining := h.pasteBuffer[:len(h.pasteBuffer)-len(bracketedPasteEnd)]
			full := h.fullPasteContent[:len(h.fullPasteContent)-len(bracketedPasteEnd)]
			h.endPaste(remaining, full)
			return data[i+1:]
		}

		// Emit when buffer >= chunkSize + pasteEndBufferSize, keeping the tail for end detection
		if h.OnPasteChunk != nil && len(h.pasteBuffer) >= h.pasteChunkSize+pasteEndBufferSize {
			chunk := make([]byte, h.pasteChunkSize)
			copy(chunk, h.pasteBuffer[:h.pasteChunkSize])
			h.pasteBuffer = h.pasteBuffer[h.pasteChunkSize:]
			h.OnPasteChunk(PasteChunk{Content: chunk, IsFinal: false})
		}
	}
	return nil
}

func (h *Handler) endPaste(remaining, full []byte) {
	h.inPaste = false
	h.pasteBuffer = nil
	h.fullPasteContent = nil
	h.log.Debug("paste end", zap.Int("bytes", len(full)))

	if h.OnPasteChunk != nil {
		h.OnPasteChunk(PasteChunk{Content: remaining, IsFinal: true})
	}
	h.emitPaste(full)
}

// emitKey sends a key event to either the Keys channel or line assembly
func (h *Handler) emitKey(k termkey.Key) {
	h.mu.Lock()
	decodeMacOS := h.decodeMacOSOption
	inLineMode := h.inLineReadMode
	h.mu.Unlock()

	if decodeMacOS && k.Type == termkey.TypeUnicode {
		if base, ok := macOSOptionChars[k.Rune]; ok {
			k = termkey.UnicodeKey(base, k.Mods|termkey.ModAlt)
		}
	}

	h.log.Debug("key", zap.Stringer("key", k))

	if h.OnKey != nil {
		h.OnKey(k)
	}

	if inLineMode {
		h.handleLineAssembly(k)
		return
	}

	select {
	case h.Keys <- k:
	default:
		// Buffer full - drop oldest key to make room
		select {
		case <-h.Keys:
		default:
		}
		select {
		case h.Keys <- k:
		default:
		}
	}
}

// emitPaste handles bracketed paste content
func (h *Handler) emitPaste(content []byte) {
	if h.OnPaste != nil {
		h.OnPaste(content)
	}

	h.mu.Lock()
	inLineMode := h.inLineReadMode
	h.mu.Unlock()

	if inLineMode {
		h.handlePasteLineAssembly(content)
		return
	}

	// Normal mode: emit each character as individual key events
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		content = content[size:]
		if r == utf8.RuneError && size == 1 {
			continue
		}
		h.emitKey(h.decoder.Canonicalize(pasteKey(r)))
	}
}

// pasteKey is the key a pasted character would have produced if typed.
func pasteKey(r rune) termkey.Key {
	switch {
	case r == '\r':
		return termkey.SymKey(termkey.SymEnter, 0)
	case r == '\t':
		return termkey.SymKey(termkey.SymTab, 0)
	case r == 0x7f:
		return termkey.SymKey(termkey.SymDEL, 0)
	case r == 0:
		return termkey.SymKey(termkey.SymSpace, termkey.ModCtrl)
	case r >= 0x01 && r <= 0x1a:
		return termkey.UnicodeKey(r+0x60, termkey.ModCtrl)
	case r < 0x20:
		return termkey.UnicodeKey(r+0x40, termkey.ModCtrl)
	}
	return termkey.UnicodeKey(r, 0)
}

// handlePasteLineAssembly adds pasted content to the line buffer
func (h *Handler) handlePasteLineAssembly(content []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inLineReadMode {
		return
	}

	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size == 1 {
			content = content[1:]
			continue
		}

		if r == '\r' || r == '\n' {
			// Newline in paste submits the line; the rest is dropped (single-line read)
			h.submitLineLocked()
			return
		}
		if r >= 32 || r == '\t' {
			h.currentLine = append(h.currentLine, content[:size]...)
			h.charByteLengths = append(h.charByteLengths, size)
			h.echoLocked(string(r))
		}
		content = content[size:]
	}
}

// handleLineAssembly processes a key for line assembly
func (h *Handler) handleLineAssembly(k termkey.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inLineReadMode {
		return
	}

	switch {
	case isSym(k, termkey.SymEnter), isSym(k, termkey.SymKPEnter):
		h.submitLineLocked()

	case isSym(k, termkey.SymBackspace), isSym(k, termkey.SymDEL):
		if len(h.charByteLengths) > 0 {
			lastCharLen := h.charByteLengths[len(h.charByteLengths)-1]
			h.currentLine = h.currentLine[:len(h.currentLine)-lastCharLen]
			h.charByteLengths = h.charByteLengths[:len(h.charByteLengths)-1]
			h.echoLocked("\b \b")
		}

	case isCtrl(k, 'u'):
		// Clear line
		for range h.charByteLengths {
			h.echoLocked("\b \b")
		}
		h.currentLine = nil
		h.charByteLengths = nil

	case isCtrl(k, 'c'):
		// Interrupt - emit empty line
		h.echoLocked("^C\r\n")
		h.currentLine = nil
		h.charByteLengths = nil
		h.sendLineLocked([]byte{})

	case k.Type == termkey.TypeUnicode && k.Mods&^termkey.ModShift == 0 && k.Rune >= 32:
		h.currentLine = append(h.currentLine, k.UTF8...)
		h.charByteLengths = append(h.charByteLengths, len(k.UTF8))
		h.echoLocked(k.UTF8)
	}
}

func isSym(k termkey.Key, sym termkey.Sym) bool {
	return k.Type == termkey.TypeKeySym && k.Sym == sym && k.Mods == 0
}

func isCtrl(k termkey.Key, r rune) bool {
	return k.Type == termkey.TypeUnicode && k.Rune == r && k.Mods == termkey.ModCtrl
}

// submitLineLocked emits the current line and echoes a newline - call only while holding h.mu
func (h *Handler) submitLineLocked() {
	line := make([]byte, len(h.currentLine))
	copy(line, h.currentLine)
	h.currentLine = nil
	h.charByteLengths = nil
	h.sendLineLocked(line)
	h.echoLocked("\r\n")
}

// sendLineLocked delivers a line to the Lines channel and OnLine. The lock
// is released around the callback.
func (h *Handler) sendLineLocked(line []byte) {
	select {
	case h.Lines <- line:
	default:
		// Buffer full - drop oldest line to make room
		select {
		case <-h.Lines:
		default:
		}
		select {
		case h.Lines <- line:
		default:
		}
	}

	if h.OnLine != nil {
		h.mu.Unlock()
		h.OnLine(line)
		h.mu.Lock()
	}
}

// echoLocked writes to echo output - call only while holding h.mu
func (h *Handler) echoLocked(s string) {
	if h.echoWriter != nil {
		if _, err := io.WriteString(h.echoWriter, s); err != nil {
			h.log.Debug("echo failed", zap.Error(err))
		}
	}
}
