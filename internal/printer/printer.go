// Package printer implements the write-only printer sink: a fixed frame
// size derived from aux1, and an optional ATASCII-to-ASCII translation of
// control codes before the bytes reach the host printer file.
package printer

import "io"

// FrameSize returns the expected data-frame size for a 'W' command given
// aux1: 'D' -> 20 bytes, 'S' -> 29 bytes, else 40 bytes.
func FrameSize(aux1 byte) int {
	switch aux1 {
	case 'D':
		return 0x14
	case 'S':
		return 0x1d
	default:
		return 0x28
	}
}

// translate maps one ATASCII-ish control code to its host-charset
// rendering. Printable bytes pass through unchanged.
var translate = map[byte]byte{
	0x9b: '\n', // EOL
	0x7d: '.',  // clear
	0x08: '\b', // backspace
	0x7e: '\b',
	0x09: '\t', // tab
	0x7f: '\t',
	0x02: '\a', // bell
	0xfd: '\a',
	0x0c: '\f', // formfeed
	0x9c: '\f',
}

// Sink is a write-only printer device backed by an io.Writer (the printer
// file). Translate controls whether the ATASCII->ASCII table is applied.
type Sink struct {
	w         io.Writer
	Translate bool
}

// NewSink wraps w as a printer Sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Write renders buf through the translation table (if enabled) and writes
// it to the underlying printer file, returning the host write error.
func (s *Sink) Write(buf []byte) error {
	if !s.Translate {
		_, err := s.w.Write(buf)
		return err
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		if r, ok := translate[b]; ok {
			out[i] = r
		} else {
			out[i] = b
		}
	}
	_, err := s.w.Write(out)
	return err
}
