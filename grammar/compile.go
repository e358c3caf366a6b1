package grammar

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cactircool/chisel"
	"github.com/cactircool/chisel/routine"
)

// symbolTable assigns types to the symbols of a grammar.  Token types
// go to declared tokens first, then skip tokens, then the literals
// used directly in constructs that no declared literal token spells.
// Construct types follow the order of the constructs.
type symbolTable struct {
	tokens   []tokenSymbol
	types    map[string]chisel.TokenType
	literals map[string]chisel.TokenType

	constructs     []*Construct
	constructTypes map[string]chisel.ConstructType
}

type tokenSymbol struct {
	Type chisel.TokenType
	Name string
	Skip bool

	// Decl is nil for anonymous literals
	Decl    *TokenDecl
	Literal string
}

func newSymbolTable(g *Grammar) *symbolTable {
	st := &symbolTable{
		types:          map[string]chisel.TokenType{},
		literals:       map[string]chisel.TokenType{},
		constructTypes: map[string]chisel.ConstructType{},
	}
	declare := func(t *TokenDecl, skip bool) {
		typ := chisel.TokenType(len(st.tokens) + 1)
		st.tokens = append(st.tokens, tokenSymbol{Type: typ, Name: t.Name, Skip: skip, Decl: t, Literal: t.Literal})
		st.types[t.Name] = typ
		if t.Kind == Literal && !skip {
			if _, ok := st.literals[t.Literal]; !ok {
				st.literals[t.Literal] = typ
			}
		}
	}
	for _, t := range g.Tokens {
		declare(t, false)
	}
	for _, t := range g.Skips {
		declare(t, true)
	}
	for i, c := range g.Constructs {
		st.constructs = append(st.constructs, c)
		st.constructTypes[c.Name] = chisel.ConstructType(i + 1)
		walkExpr(c.Body, func(e Expr) {
			lit, ok := e.(*Lit)
			if !ok {
				return
			}
			if _, ok := st.literals[lit.Text]; ok {
				return
			}
			typ := chisel.TokenType(len(st.tokens) + 1)
			st.tokens = append(st.tokens, tokenSymbol{Type: typ, Name: strconv.Quote(lit.Text), Literal: lit.Text})
			st.literals[lit.Text] = typ
		})
	}
	return st
}

// anonymous returns the literals without a declaration, longest
// first, so that a literal is never shadowed by one of its prefixes
func (st *symbolTable) anonymous() []tokenSymbol {
	var out []tokenSymbol
	for _, t := range st.tokens {
		if t.Decl == nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Literal) > len(out[j].Literal)
	})
	return out
}

// tokenSet builds the rules of every token.  Anonymous literals are
// added first, so they win over declared tokens of the same
// precedence.
func (st *symbolTable) tokenSet(longest bool) (*chisel.TokenSet, error) {
	set := chisel.NewTokenSet()
	set.LongestMatch = longest
	for _, t := range st.anonymous() {
		set.Add(chisel.Literal(t.Type, t.Name, t.Literal))
	}
	for _, t := range st.tokens {
		if t.Decl == nil {
			continue
		}
		var rule chisel.TokenRule
		switch t.Decl.Kind {
		case Bare:
			set.Declare(t.Type, t.Name)
			continue
		case Literal:
			rule = chisel.Literal(t.Type, t.Name, t.Decl.Literal)
		case Pattern:
			var err error
			rule, err = chisel.Pattern(t.Type, t.Name, t.Decl.Pattern)
			if err != nil {
				return nil, errorf(t.Decl.Pos, "%s", err)
			}
		}
		rule = rule.WithPrecedence(t.Decl.Precedence)
		if t.Skip {
			set.Skip(rule)
		} else {
			set.Add(rule)
		}
	}
	return set, nil
}

// refType resolves a reference to a token type
func (st *symbolTable) refType(e Expr) chisel.TokenType {
	switch e := e.(type) {
	case *Ref:
		return st.types[e.Name]
	case *Lit:
		return st.literals[e.Text]
	}
	return chisel.InvalidToken
}

// alternatives splits the body of a construct into the options it
// chooses from
func alternatives(body Expr) []Expr {
	if c, ok := body.(*Choice); ok {
		return c.Alts
	}
	return []Expr{body}
}

// Program is a grammar ready to parse input: token and construct
// types are assigned, the token set is built and every construct has
// a routine interpreting its body.  A Program is never modified after
// Compile returns, and can be shared by goroutines as long as each
// one creates its own parsers.
type Program struct {
	grammar  *Grammar
	symbols  *symbolTable
	tokens   *chisel.TokenSet
	routines []chisel.ConstructFn
	start    chisel.ConstructType
}

// Compile validates g and builds the routines interpreting it.  In
// each alternative of a construct, a single reference or literal
// forwards what it matched; anything else produces a node of the
// construct's type holding everything the alternative matched.
func Compile(g *Grammar) (*Program, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	st := newSymbolTable(g)
	tokens, err := st.tokenSet(g.LongestMatch)
	if err != nil {
		return nil, err
	}
	pr := &Program{
		grammar:  g,
		symbols:  st,
		tokens:   tokens,
		routines: make([]chisel.ConstructFn, len(st.constructs)),
		start:    st.constructTypes[g.StartConstruct().Name],
	}
	for i, c := range st.constructs {
		pr.routines[i] = pr.constructRoutine(c, chisel.ConstructType(i+1))
	}
	return pr, nil
}

func (pr *Program) constructRoutine(c *Construct, typ chisel.ConstructType) chisel.ConstructFn {
	alts := alternatives(c.Body)
	fns := make([]routine.ParserFn[chisel.Node], len(alts))
	for i, alt := range alts {
		fns[i] = pr.alternative(alt, typ)
	}
	if len(fns) == 1 {
		return chisel.ConstructFn(fns[0])
	}
	return func(p *chisel.Parser) (chisel.Node, error) {
		return routine.Choice(p, fns...)
	}
}

func (pr *Program) alternative(e Expr, typ chisel.ConstructType) routine.ParserFn[chisel.Node] {
	switch e := e.(type) {
	case *Ref:
		if ct, ok := pr.symbols.constructTypes[e.Name]; ok {
			return func(p *chisel.Parser) (chisel.Node, error) {
				return p.Construct(pr.routines[ct-1])
			}
		}
		return forwardToken(pr.symbols.refType(e))
	case *Lit:
		return forwardToken(pr.symbols.refType(e))
	}
	match := pr.matcher(e)
	return func(p *chisel.Parser) (chisel.Node, error) {
		nodes, err := match(p)
		if err != nil {
			return nil, err
		}
		return chisel.NewParseNode(typ, nodes...), nil
	}
}

func forwardToken(typ chisel.TokenType) routine.ParserFn[chisel.Node] {
	return func(p *chisel.Parser) (chisel.Node, error) {
		t, err := p.Expect(typ)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func (pr *Program) matcher(e Expr) routine.ParserFn[[]chisel.Node] {
	switch e := e.(type) {
	case *Ref:
		if ct, ok := pr.symbols.constructTypes[e.Name]; ok {
			return func(p *chisel.Parser) ([]chisel.Node, error) {
				return routine.ConstructNodes(pr.routines[ct-1])(p)
			}
		}
		return routine.ExpectNodes(pr.symbols.refType(e))
	case *Lit:
		return routine.ExpectNodes(pr.symbols.refType(e))
	case *Sequence:
		items := make([]routine.ParserFn[[]chisel.Node], len(e.Items))
		for i, item := range e.Items {
			items[i] = pr.matcher(item)
		}
		return func(p *chisel.Parser) ([]chisel.Node, error) {
			return routine.Seq(p, items...)
		}
	case *Choice:
		alts := make([]routine.ParserFn[[]chisel.Node], len(e.Alts))
		for i, alt := range e.Alts {
			alts[i] = pr.matcher(alt)
		}
		return func(p *chisel.Parser) ([]chisel.Node, error) {
			return routine.Choice(p, alts...)
		}
	case *Repeat:
		body := pr.matcher(e.Body)
		return func(p *chisel.Parser) ([]chisel.Node, error) {
			return routine.Repeat(p, e.Min, body)
		}
	case *Optional:
		body := pr.matcher(e.Body)
		return func(p *chisel.Parser) ([]chisel.Node, error) {
			return routine.Optional(p, body)
		}
	}
	panic(fmt.Sprintf("grammar: unknown expression %T", e))
}

// NewParser creates a parser for the program's language reading from
// r.  A nil cfg means chisel.NewConfig().
func (pr *Program) NewParser(r io.Reader, cfg *chisel.Config) *chisel.Parser {
	return chisel.NewParser(r, pr.tokens, cfg)
}

// Parse reads r from the start construct
func (pr *Program) Parse(r io.Reader, cfg *chisel.Config) (chisel.Node, error) {
	return pr.NewParser(r, cfg).Parse(pr.routines[pr.start-1])
}

// ParseFrom reads r from the construct called name
func (pr *Program) ParseFrom(name string, r io.Reader, cfg *chisel.Config) (chisel.Node, error) {
	fn, ok := pr.Routine(name)
	if !ok {
		return nil, fmt.Errorf("construct `%s` is not defined", name)
	}
	return pr.NewParser(r, cfg).Parse(fn)
}

// Routine returns the construction routine of the construct called
// name, to be run on parsers created by NewParser
func (pr *Program) Routine(name string) (chisel.ConstructFn, bool) {
	ct, ok := pr.symbols.constructTypes[name]
	if !ok {
		return nil, false
	}
	return pr.routines[ct-1], true
}

func (pr *Program) Grammar() *Grammar           { return pr.grammar }
func (pr *Program) TokenSet() *chisel.TokenSet  { return pr.tokens }
func (pr *Program) Start() chisel.ConstructType { return pr.start }

// TokenType resolves a declared token by name
func (pr *Program) TokenType(name string) (chisel.TokenType, bool) {
	t, ok := pr.symbols.types[name]
	return t, ok
}

// LiteralType resolves the token type text is lexed as when used in a
// construct
func (pr *Program) LiteralType(text string) (chisel.TokenType, bool) {
	t, ok := pr.symbols.literals[text]
	return t, ok
}

func (pr *Program) ConstructType(name string) (chisel.ConstructType, bool) {
	t, ok := pr.symbols.constructTypes[name]
	return t, ok
}

func (pr *Program) TokenName(t chisel.TokenType) string { return pr.tokens.Name(t) }

func (pr *Program) ConstructName(c chisel.ConstructType) string {
	if c < 1 || int(c) > len(pr.symbols.constructs) {
		return fmt.Sprintf("construct(%d)", c)
	}
	return pr.symbols.constructs[c-1].Name
}

type SymbolKind int

const (
	TokenSymbol SymbolKind = iota
	SkipSymbol
	LiteralSymbol
	ConstructSymbol
)

func (k SymbolKind) String() string {
	return [...]string{"token", "skip", "literal", "construct"}[k]
}

// Symbol is an entry of the symbol table of a program
type Symbol struct {
	Kind SymbolKind
	Name string
	Type int
}

// Symbols lists the tokens and the constructs of the program with the
// types they were given
func (pr *Program) Symbols() []Symbol {
	var out []Symbol
	for _, t := range pr.symbols.tokens {
		kind := TokenSymbol
		switch {
		case t.Skip:
			kind = SkipSymbol
		case t.Decl == nil:
			kind = LiteralSymbol
		}
		out = append(out, Symbol{Kind: kind, Name: t.Name, Type: int(t.Type)})
	}
	for i, c := range pr.symbols.constructs {
		out = append(out, Symbol{Kind: ConstructSymbol, Name: c.Name, Type: i + 1})
	}
	return out
}
