package chisel

import (
	"io"

	"github.com/edwingeng/deque"
)

// Lexer turns the input into tokens lazily.  Tokens that were handed
// out and given back with CacheFront/CacheBack are kept in a
// double-ended buffer and delivered, in order, before anything new is
// read from the input.
type Lexer struct {
	input   *Input
	tokens  *TokenSet
	pending deque.Deque
	longest bool
}

// NewLexer creates a lexer reading from r.  The lexer doesn't own r:
// closing it is up to the caller.
func NewLexer(r io.Reader, tokens *TokenSet) *Lexer {
	return &Lexer{
		input:   newInput(r),
		tokens:  tokens,
		pending: deque.NewDeque(),
		longest: tokens.LongestMatch,
	}
}

// SetLongestMatch overrides the match strategy of the token set
func (l *Lexer) SetLongestMatch(v bool) { l.longest = v }

// TokenSet returns the lexical classes the lexer recognizes
func (l *Lexer) TokenSet() *TokenSet { return l.tokens }

// Lex returns the next token.  Buffered tokens come first; otherwise
// the skip rules are applied and the token rules are tried against
// the input.  When nothing matches, the error is a *LexError and
// satisfies errors.Is(err, ErrNoToken).  Read errors are returned
// as they come.
func (l *Lexer) Lex() (Token, error) {
	if l.pending.Len() > 0 {
		return l.pending.PopFront().(Token), nil
	}

	l.tokens.skipAll(l.input)

	start := l.input.Location()
	if l.input.AtEOF() {
		if err := l.input.Err(); err != nil {
			return Token{}, err
		}
		return Token{}, &LexError{Location: start, EOF: true}
	}

	rule, n := l.tokens.match(l.input, l.longest)
	if n == 0 {
		if err := l.input.Err(); err != nil {
			return Token{}, err
		}
		return Token{}, &LexError{Location: start, Rune: l.input.Peek()}
	}
	data := l.input.consume(n)
	return NewTokenAt(rule.Type, data, NewSpan(start, l.input.Location())), nil
}

// CacheFront gives a token back to the lexer so the next call to Lex
// returns it
func (l *Lexer) CacheFront(t Token) {
	l.pending.PushFront(t)
}

// CacheBack queues a token after every token already buffered
func (l *Lexer) CacheBack(t Token) {
	l.pending.PushBack(t)
}

// Pending returns how many tokens are buffered
func (l *Lexer) Pending() int { return l.pending.Len() }

// Location returns where the next token starts, as far as the lexer
// knows without reading ahead
func (l *Lexer) Location() Location {
	if l.pending.Len() > 0 {
		return l.pending.Front().(Token).Span().Start
	}
	return l.input.Location()
}
