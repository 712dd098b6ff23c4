package termkey

import "errors"

var (
	// ErrBufferFull is returned by Write when the input buffer could not take
	// every byte offered. PushBytes reports the same condition as a short count.
	ErrBufferFull = errors.New("termkey: buffer full")

	// ErrMalformedUTF8 is reported by NextEvent for a byte that cannot start
	// or continue a UTF-8 sequence. The byte has been discarded.
	ErrMalformedUTF8 = errors.New("termkey: malformed UTF-8")

	// ErrUnsupportedNotation is returned by ParseKey when no key notation
	// matches the start of the text.
	ErrUnsupportedNotation = errors.New("termkey: unsupported key notation")

	ErrInvalidConfig   = errors.New("termkey: invalid configuration")
	ErrClosed          = errors.New("termkey: input closed")
	ErrUnknownTerminal = errors.New("termkey: unknown terminal")
)
