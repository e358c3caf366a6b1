package chisel

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf8"
)

const eof = -1

// Input is a forward-only lookahead window over the lexer's source.
// Token rules inspect the bytes ahead of the cursor through it; bytes
// are pulled from the reader on demand and never pushed back into it,
// so the source is read strictly in order.
type Input struct {
	src    *bufio.Reader
	window []byte
	err    error
	loc    Location
}

func newInput(r io.Reader) *Input {
	return &Input{
		src: bufio.NewReader(r),
		loc: Location{Line: 1, Column: 1},
	}
}

// Location returns where the cursor currently is
func (in *Input) Location() Location { return in.loc }

// fill makes sure at least n bytes are buffered.  It returns false if
// the source ends (or fails) before that.
func (in *Input) fill(n int) bool {
	for len(in.window) < n {
		if in.err != nil {
			return false
		}
		b, err := in.src.ReadByte()
		if err != nil {
			in.err = err
			return false
		}
		in.window = append(in.window, b)
	}
	return true
}

// Err returns the read error that stopped the input, if it wasn't EOF
func (in *Input) Err() error {
	if in.err == nil || errors.Is(in.err, io.EOF) {
		return nil
	}
	return in.err
}

// AtEOF reports whether there's nothing left under the cursor
func (in *Input) AtEOF() bool {
	return !in.fill(1)
}

// ByteAt returns the byte i positions after the cursor
func (in *Input) ByteAt(i int) (byte, bool) {
	if !in.fill(i + 1) {
		return 0, false
	}
	return in.window[i], true
}

// Peek returns the rune under the cursor, or eof
func (in *Input) Peek() rune {
	c, _, err := in.Reader().ReadRune()
	if err != nil {
		return eof
	}
	return c
}

// HasPrefix reports whether the input ahead of the cursor starts with s
func (in *Input) HasPrefix(s string) bool {
	if !in.fill(len(s)) {
		return false
	}
	return string(in.window[:len(s)]) == s
}

// Reader returns a rune reader starting at the cursor.  Reading from
// it doesn't move the cursor; it only grows the lookahead window.
func (in *Input) Reader() io.RuneReader {
	return &windowReader{in: in}
}

// consume moves the cursor n bytes forward and returns a copy of the
// bytes it walked over
func (in *Input) consume(n int) []byte {
	in.fill(n)
	if n > len(in.window) {
		n = len(in.window)
	}
	out := make([]byte, n)
	copy(out, in.window[:n])
	for _, c := range string(out) {
		in.loc.Column++
		if c == '\n' {
			in.loc.Line++
			in.loc.Column = 1
		}
	}
	in.loc.Offset += n
	in.window = in.window[n:]
	return out
}

type windowReader struct {
	in  *Input
	off int
}

func (r *windowReader) ReadRune() (rune, int, error) {
	if !r.in.fill(r.off + 1) {
		if err := r.in.Err(); err != nil {
			return 0, 0, err
		}
		return 0, 0, io.EOF
	}
	if c := r.in.window[r.off]; c < utf8.RuneSelf {
		r.off++
		return rune(c), 1, nil
	}
	// a truncated sequence at the end of input decodes as RuneError
	r.in.fill(r.off + utf8.UTFMax)
	c, size := utf8.DecodeRune(r.in.window[r.off:])
	r.off += size
	return c, size, nil
}
