// Package grammar describes parsers in terms of the chisel engine: a
// Grammar declares token classes and constructs, and can be read from
// the chisel text format or from EBNF, validated, interpreted with
// Compile, or turned into Go source code with GenGo.
package grammar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cactircool/chisel"
	"github.com/segmentio/fasthash/fnv1a"
)

// Grammar is the full description of a parser
type Grammar struct {
	// Prefixes and Suffixes are verbatim blocks of host language
	// code, emitted before and after the generated code
	Prefixes []string
	Suffixes []string

	Tokens []*TokenDecl
	Skips  []*TokenDecl

	Constructs []*Construct

	// Start names the root construct.  Empty means the first one.
	Start string

	// LongestMatch makes lexers pick the longest token match
	LongestMatch bool
}

type TokenKind int

const (
	// Bare tokens declare a type without a lexing rule.  They only
	// show up in the stream when pushed into the lexer by hand.
	Bare TokenKind = iota
	Literal
	Pattern
)

func (k TokenKind) String() string {
	switch k {
	case Bare:
		return "bare"
	case Literal:
		return "literal"
	case Pattern:
		return "pattern"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

type TokenDecl struct {
	Name       string
	Kind       TokenKind
	Literal    string
	Pattern    string
	Precedence int
	Pos        chisel.Location
}

type Construct struct {
	Name string
	Body Expr
	Pos  chisel.Location
}

// Expr is the body of a construct: one of *Ref, *Lit, *Sequence,
// *Choice, *Repeat or *Optional
type Expr interface {
	isExpr()
}

// Ref names a token or a construct
type Ref struct {
	Name string
	Pos  chisel.Location
}

// Lit is a quoted literal used directly within a construct.  It turns
// into an anonymous literal token.
type Lit struct {
	Text string
	Pos  chisel.Location
}

type Sequence struct{ Items []Expr }

type Choice struct{ Alts []Expr }

// Repeat matches Body Min or more times.  Min is 0 (`*`) or 1 (`+`).
type Repeat struct {
	Body Expr
	Min  int
}

type Optional struct{ Body Expr }

func (*Ref) isExpr()      {}
func (*Lit) isExpr()      {}
func (*Sequence) isExpr() {}
func (*Choice) isExpr()   {}
func (*Repeat) isExpr()   {}
func (*Optional) isExpr() {}

// StartConstruct returns the root construct, or nil if there's none
func (g *Grammar) StartConstruct() *Construct {
	if g.Start == "" {
		if len(g.Constructs) == 0 {
			return nil
		}
		return g.Constructs[0]
	}
	return g.Construct(g.Start)
}

func (g *Grammar) Construct(name string) *Construct {
	for _, c := range g.Constructs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Token finds a declared token, skip tokens included
func (g *Grammar) Token(name string) *TokenDecl {
	for _, t := range g.Tokens {
		if t.Name == name {
			return t
		}
	}
	for _, t := range g.Skips {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Error is a problem found in a grammar, at the position of the
// declaration or reference it's about
type Error struct {
	Pos     chisel.Location
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Pos)
}

func errorf(pos chisel.Location, format string, args ...any) *Error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// ErrorList is returned when a grammar has more than one problem
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (l ErrorList) sort() {
	sort.SliceStable(l, func(i, j int) bool {
		return l[i].Pos.Offset < l[j].Pos.Offset
	})
}

func (l ErrorList) err() error {
	if len(l) == 0 {
		return nil
	}
	l.sort()
	return l
}

// Format prints g back in the chisel text format
func Format(g *Grammar) string {
	var s strings.Builder
	for _, p := range g.Prefixes {
		fmt.Fprintf(&s, "prefix {%s}\n", p)
	}
	for _, p := range g.Suffixes {
		fmt.Fprintf(&s, "suffix {%s}\n", p)
	}
	if g.Start != "" {
		fmt.Fprintf(&s, "start %s\n", g.Start)
	}
	if g.LongestMatch {
		s.WriteString("longest\n")
	}
	for _, t := range g.Tokens {
		s.WriteString("tok ")
		formatTokenDecl(&s, t)
	}
	for _, t := range g.Skips {
		s.WriteString("skip ")
		formatTokenDecl(&s, t)
	}
	for _, c := range g.Constructs {
		fmt.Fprintf(&s, "%s = %s ;\n", c.Name, FormatExpr(c.Body))
	}
	return s.String()
}

func formatTokenDecl(s *strings.Builder, t *TokenDecl) {
	if t.Precedence != 0 {
		fmt.Fprintf(s, "%d ", t.Precedence)
	}
	s.WriteString(t.Name)
	switch t.Kind {
	case Literal:
		fmt.Fprintf(s, " = %s", strconv.Quote(t.Literal))
	case Pattern:
		fmt.Fprintf(s, " = /%s/", escapeSlashes(t.Pattern))
	}
	s.WriteString("\n")
}

// FormatExpr prints an expression in the chisel text format
func FormatExpr(e Expr) string {
	switch e := e.(type) {
	case *Ref:
		return e.Name
	case *Lit:
		return strconv.Quote(e.Text)
	case *Sequence:
		items := make([]string, len(e.Items))
		for i, item := range e.Items {
			items[i] = formatOperand(item, false)
		}
		return strings.Join(items, " ")
	case *Choice:
		alts := make([]string, len(e.Alts))
		for i, alt := range e.Alts {
			alts[i] = FormatExpr(alt)
		}
		return strings.Join(alts, " | ")
	case *Repeat:
		if e.Min > 0 {
			return formatOperand(e.Body, true) + "+"
		}
		return formatOperand(e.Body, true) + "*"
	case *Optional:
		return formatOperand(e.Body, true) + "?"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

// formatOperand wraps e in parentheses when it wouldn't bind tight
// enough where it's used
func formatOperand(e Expr, postfix bool) string {
	switch e := e.(type) {
	case *Choice:
		if len(e.Alts) > 1 {
			return "(" + FormatExpr(e) + ")"
		}
	case *Sequence:
		if postfix && len(e.Items) > 1 {
			return "(" + FormatExpr(e) + ")"
		}
	case *Repeat, *Optional:
		if postfix {
			return "(" + FormatExpr(e) + ")"
		}
	}
	return FormatExpr(e)
}

// Fingerprint identifies the contents of a grammar.  It's the 64 bit
// FNV-1a hash of its formatted text, so formatting differences in the
// source don't change it.
func Fingerprint(g *Grammar) uint64 {
	return fnv1a.HashString64(Format(g))
}

func escapeSlashes(pattern string) string {
	var s strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\' && i+1 < len(pattern):
			s.WriteByte(c)
			s.WriteByte(pattern[i+1])
			i++
		case c == '/':
			s.WriteString(`\/`)
		default:
			s.WriteByte(c)
		}
	}
	return s.String()
}

func unescapeSlashes(pattern string) string {
	var s strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			if pattern[i+1] != '/' {
				s.WriteByte(c)
			}
			s.WriteByte(pattern[i+1])
			i++
			continue
		}
		s.WriteByte(c)
	}
	return s.String()
}
