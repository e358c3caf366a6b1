package chisel

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType identifies one of the lexical classes of a grammar.  The
// zero value is reserved and never produced by a lexer.
type TokenType int

const InvalidToken TokenType = 0

// Token is the elementary lexical unit: a type tag and the bytes of
// the lexeme.  The token owns Data; use Clone when a token must
// outlive a buffer someone else is about to change.
type Token struct {
	Type TokenType
	Data []byte
	span Span
}

// NewToken creates a token of type typ taking ownership of data
func NewToken(typ TokenType, data []byte) Token {
	return Token{Type: typ, Data: data}
}

// NewTokenAt is NewToken with the source span attached
func NewTokenAt(typ TokenType, data []byte, span Span) Token {
	return Token{Type: typ, Data: data, span: span}
}

// Valid reports whether t was produced by a lexer (or built by hand
// with a real type).  A zero Token is not valid.
func (t Token) Valid() bool { return t.Type != InvalidToken }

func (t Token) Span() Span { return t.span }

// Text returns the lexeme as a string
func (t Token) Text() string { return string(t.Data) }

// Clone returns a copy of t that doesn't share its buffer
func (t Token) Clone() Token {
	if t.Data != nil {
		t.Data = bytes.Clone(t.Data)
	}
	return t
}

// SetData replaces the buffer of the token.  The token takes
// ownership of data.
func (t *Token) SetData(data []byte) {
	t.Data = data
}

// Equal compares type and content, ignoring spans
func (t Token) Equal(other Token) bool {
	return t.Type == other.Type && bytes.Equal(t.Data, other.Data)
}

func (t Token) String() string {
	return fmt.Sprintf("%d(%s) @ %s", t.Type, strconv.Quote(t.Text()), t.span)
}

func (Token) isNode() {}
