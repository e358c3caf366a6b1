package chisel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ConstructFn is the signature of a construction routine: it
// recognizes one nonterminal from the tokens the parser hands out and
// returns the node it built.  When the production doesn't match, it
// returns a nil Node and an error satisfying IsBacktrack, and every
// token it consumed must be back in the lexer (Restore, or let
// Parser.Construct do it).
type ConstructFn func(p *Parser) (Node, error)

// Mark is a position in the stream of tokens a parser handed out
type Mark int

// Parser owns a Lexer and drives construction routines on top of it.
// Every token handed out by Next is recorded, which is what lets
// Restore give all of them back to the lexer in the right order.
type Parser struct {
	lexer    *Lexer
	cfg      *Config
	journal  []Token
	depth    int
	maxDepth int

	// farthest failure point, used for error reporting
	ffp         int
	ffpExpected []string
	ffpGot      *Token
	ffpSpan     Span
}

// NewParser creates a parser reading tokens out of src.  A nil cfg
// means NewConfig().
func NewParser(src io.Reader, tokens *TokenSet, cfg *Config) *Parser {
	if cfg == nil {
		cfg = NewConfig()
	}
	lexer := NewLexer(src, tokens)
	if cfg.GetBool("lexer.longest_match") {
		lexer.SetLongestMatch(true)
	}
	return &Parser{
		lexer:    lexer,
		cfg:      cfg,
		maxDepth: cfg.GetInt("parser.max_depth"),
		ffp:      -1,
	}
}

func (p *Parser) Lexer() *Lexer       { return p.lexer }
func (p *Parser) Config() *Config     { return p.cfg }
func (p *Parser) Depth() int          { return p.depth }
func (p *Parser) TokenSet() *TokenSet { return p.lexer.TokenSet() }

// Next consumes the next token
func (p *Parser) Next() (Token, error) {
	t, err := p.lexer.Lex()
	if err != nil {
		return Token{}, err
	}
	p.journal = append(p.journal, t)
	return t, nil
}

// Peek returns the next token without consuming it
func (p *Parser) Peek() (Token, error) {
	t, err := p.lexer.Lex()
	if err != nil {
		return Token{}, err
	}
	p.lexer.CacheFront(t)
	return t, nil
}

// Unread gives the last consumed token back to the lexer
func (p *Parser) Unread() {
	if len(p.journal) == 0 {
		return
	}
	p.Restore(Mark(len(p.journal) - 1))
}

// Mark returns the current position in the token stream
func (p *Parser) Mark() Mark { return Mark(len(p.journal)) }

// Consumed returns how many tokens were consumed since m
func (p *Parser) Consumed(m Mark) int { return len(p.journal) - int(m) }

// Restore gives back every token consumed since m.  They're pushed to
// the front of the lexer buffer in reverse order of consumption, so
// the lexer ends up exactly as it was when m was taken.  Marks past
// the current position have nothing to give back.
func (p *Parser) Restore(m Mark) {
	if int(m) >= len(p.journal) {
		return
	}
	for i := len(p.journal) - 1; i >= int(m); i-- {
		p.lexer.CacheFront(p.journal[i])
	}
	p.journal = p.journal[:m]
}

// Expect consumes the next token if it has type typ.  Otherwise the
// token stays in the lexer and a backtracking error is returned.
func (p *Parser) Expect(typ TokenType) (Token, error) {
	return p.expect(typ, p.TokenSet().Name(typ), func(Token) bool { return true })
}

// ExpectText is Expect for a token that must also spell text, which
// is how keywords lexed as identifiers are matched
func (p *Parser) ExpectText(typ TokenType, text string) (Token, error) {
	return p.expect(typ, strconv.Quote(text), func(t Token) bool { return t.Text() == text })
}

func (p *Parser) expect(typ TokenType, name string, accept func(Token) bool) (Token, error) {
	m := p.Mark()
	t, err := p.Next()
	if err != nil {
		if isthrown(err) {
			return Token{}, err
		}
		loc := p.lexer.Location()
		var lexErr *LexError
		if errors.As(err, &lexErr) {
			loc = lexErr.Location
		}
		p.recordFailure(name, nil, NewSpan(loc, loc))
		return Token{}, &MatchError{Expected: name, Location: loc, Err: err}
	}
	if t.Type != typ || !accept(t) {
		p.Restore(m)
		p.recordFailure(name, &t, t.Span())
		return Token{}, &MatchError{Expected: name, Got: &t, Location: t.Span().Start}
	}
	return t, nil
}

// NoMatch builds the backtracking error for a routine that gave up
// at the current position expecting `expected`
func (p *Parser) NoMatch(expected string) error {
	loc := p.lexer.Location()
	p.recordFailure(expected, nil, NewSpan(loc, loc))
	return &MatchError{Expected: expected, Location: loc}
}

// Construct runs a construction routine.  On a backtracking failure
// the lexer is restored to where it was when fn was called, whether
// fn did it already or not.  Routines nesting deeper than
// `parser.max_depth` abort the parse.
func (p *Parser) Construct(fn ConstructFn) (Node, error) {
	if p.maxDepth > 0 && p.depth >= p.maxDepth {
		loc := p.lexer.Location()
		return nil, &ParsingError{
			Message: fmt.Sprintf("construct nesting deeper than %d", p.maxDepth),
			Span:    NewSpan(loc, loc),
			Err:     ErrDepthExceeded,
		}
	}
	m := p.Mark()
	p.depth++
	n, err := fn(p)
	p.depth--
	if err != nil {
		if !isthrown(err) {
			p.Restore(m)
		}
		return nil, err
	}
	if Failed(n) {
		p.Restore(m)
		return nil, p.NoMatch("construct")
	}
	return n, nil
}

// Parse runs root as the top-level routine.  With
// `parser.require_eof` set, tokens left over after it returns are an
// error.  Failures come back as *ParsingError describing the farthest
// position the parser got to.
func (p *Parser) Parse(root ConstructFn) (Node, error) {
	p.resetFailure()
	defer func() {
		clear(p.journal)
		p.journal = p.journal[:0]
	}()
	n, err := p.Construct(root)
	if err != nil {
		return nil, p.parsingError(err)
	}
	if p.cfg.GetBool("parser.require_eof") {
		t, err := p.lexer.Lex()
		switch {
		case err == nil:
			p.lexer.CacheFront(t)
			if p.ffp > t.Span().Start.Offset {
				return nil, p.parsingError(&MatchError{Expected: "EOF", Got: &t})
			}
			return nil, &ParsingError{Expected: []string{"EOF"}, Got: &t, Span: t.Span()}
		case isthrown(err):
			return nil, err
		default:
			var lexErr *LexError
			if errors.As(err, &lexErr) && !lexErr.EOF {
				loc := lexErr.Location
				return nil, &ParsingError{
					Message: fmt.Sprintf("unexpected character %q", lexErr.Rune),
					Span:    NewSpan(loc, loc),
					Err:     err,
				}
			}
		}
	}
	return n, nil
}

func (p *Parser) parsingError(err error) error {
	var perr *ParsingError
	if errors.As(err, &perr) {
		return perr
	}
	if isthrown(err) {
		return err
	}
	if p.ffp < 0 {
		loc := p.lexer.Location()
		return &ParsingError{Span: NewSpan(loc, loc), Err: err}
	}
	return &ParsingError{
		Expected: p.ffpExpected,
		Got:      p.ffpGot,
		Span:     p.ffpSpan,
		Err:      err,
	}
}

func (p *Parser) resetFailure() {
	p.ffp = -1
	p.ffpExpected = nil
	p.ffpGot = nil
	p.ffpSpan = Span{}
}

// recordFailure keeps track of what was expected at the farthest
// position any routine failed at
func (p *Parser) recordFailure(expected string, got *Token, span Span) {
	switch pos := span.Start.Offset; {
	case pos > p.ffp:
		p.ffp = pos
		p.ffpExpected = []string{expected}
		p.ffpGot = got
		p.ffpSpan = span
	case pos == p.ffp:
		for _, e := range p.ffpExpected {
			if e == expected {
				return
			}
		}
		p.ffpExpected = append(p.ffpExpected, expected)
	}
}
