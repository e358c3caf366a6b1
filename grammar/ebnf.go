package grammar

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"text/scanner"
	"unicode"
	"unicode/utf8"

	"github.com/cactircool/chisel"
	"golang.org/x/exp/ebnf"
)

// whitespace is the name of the skip token EBNF grammars get when
// `grammar.implicit_whitespace` is set
const whitespace = "_whitespace"

// FromEBNF reads a grammar in the EBNF dialect of golang.org/x/exp/ebnf
// and verifies it from the start production.  Productions with a
// lower case name are lexical: the ones used by syntactic productions
// become pattern tokens, the others are inlined where they're used.
// Productions with an upper case name become constructs.  A nil cfg
// means chisel.NewConfig().
func FromEBNF(filename string, r io.Reader, start string, cfg *chisel.Config) (*Grammar, error) {
	if cfg == nil {
		cfg = chisel.NewConfig()
	}
	src, err := ebnf.Parse(filename, r)
	if err != nil {
		return nil, err
	}
	if err := ebnf.Verify(src, start); err != nil {
		return nil, err
	}

	c := &ebnfConverter{
		src:      src,
		patterns: map[string]string{},
		tokens:   map[string]bool{},
	}
	g := &Grammar{Start: start, LongestMatch: true}

	for _, prod := range c.productions() {
		if isLexical(prod.Name.String) {
			continue
		}
		body, err := c.syntactic(prod.Expr)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, errorf(position(prod.Name.StringPos), "production `%s` is empty", prod.Name.String)
		}
		g.Constructs = append(g.Constructs, &Construct{
			Name: prod.Name.String,
			Body: body,
			Pos:  position(prod.Name.StringPos),
		})
	}

	for _, prod := range c.productions() {
		if !c.tokens[prod.Name.String] {
			continue
		}
		pattern, err := c.pattern(prod.Name.String)
		if err != nil {
			return nil, err
		}
		g.Tokens = append(g.Tokens, &TokenDecl{
			Name:    prod.Name.String,
			Kind:    Pattern,
			Pattern: pattern,
			Pos:     position(prod.Name.StringPos),
		})
	}

	if cfg.GetBool("grammar.implicit_whitespace") {
		g.Skips = append(g.Skips, &TokenDecl{Name: whitespace, Kind: Pattern, Pattern: `\s+`})
	}
	return g, nil
}

type ebnfConverter struct {
	src ebnf.Grammar

	// patterns caches the regular expressions of lexical
	// productions, tokens marks the ones used as tokens
	patterns map[string]string
	tokens   map[string]bool
}

// productions returns the productions in the order they're written
func (c *ebnfConverter) productions() []*ebnf.Production {
	out := make([]*ebnf.Production, 0, len(c.src))
	for _, prod := range c.src {
		out = append(out, prod)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.StringPos.Offset < out[j].Name.StringPos.Offset
	})
	return out
}

func (c *ebnfConverter) syntactic(e ebnf.Expression) (Expr, error) {
	switch e := e.(type) {
	case nil:
		return nil, nil
	case ebnf.Alternative:
		alts := make([]Expr, 0, len(e))
		for _, item := range e {
			alt, err := c.syntactic(item)
			if err != nil {
				return nil, err
			}
			alts = append(alts, alt)
		}
		return &Choice{Alts: alts}, nil
	case ebnf.Sequence:
		items := make([]Expr, 0, len(e))
		for _, item := range e {
			expr, err := c.syntactic(item)
			if err != nil {
				return nil, err
			}
			if s, ok := expr.(*Sequence); ok {
				items = append(items, s.Items...)
			} else {
				items = append(items, expr)
			}
		}
		return &Sequence{Items: items}, nil
	case *ebnf.Name:
		if isLexical(e.String) {
			c.tokens[e.String] = true
		}
		return &Ref{Name: e.String, Pos: position(e.StringPos)}, nil
	case *ebnf.Token:
		if e.String == "" {
			return nil, errorf(position(e.StringPos), "empty literal")
		}
		return &Lit{Text: e.String, Pos: position(e.StringPos)}, nil
	case *ebnf.Group:
		return c.nonEmpty(e.Body, e.Lparen)
	case *ebnf.Option:
		body, err := c.nonEmpty(e.Body, e.Lbrack)
		if err != nil {
			return nil, err
		}
		return &Optional{Body: body}, nil
	case *ebnf.Repetition:
		body, err := c.nonEmpty(e.Body, e.Lbrace)
		if err != nil {
			return nil, err
		}
		return &Repeat{Body: body}, nil
	case *ebnf.Range:
		return nil, errorf(position(e.Pos()), "character ranges are only allowed in lexical productions")
	case *ebnf.Bad:
		return nil, errorf(position(e.TokPos), "%s", e.Error)
	}
	return nil, fmt.Errorf("unknown EBNF expression %T", e)
}

func (c *ebnfConverter) nonEmpty(e ebnf.Expression, pos scanner.Position) (Expr, error) {
	body, err := c.syntactic(e)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errorf(position(pos), "empty group")
	}
	return body, nil
}

// pattern returns the regular expression of the lexical production
// called name, with the lexical productions it refers to inlined
func (c *ebnfConverter) pattern(name string) (string, error) {
	return c.patternOf(name, map[string]bool{})
}

func (c *ebnfConverter) patternOf(name string, visiting map[string]bool) (string, error) {
	if p, ok := c.patterns[name]; ok {
		return p, nil
	}
	prod := c.src[name]
	if visiting[name] {
		return "", errorf(position(prod.Name.StringPos), "lexical production `%s` is recursive", name)
	}
	if prod.Expr == nil {
		return "", errorf(position(prod.Name.StringPos), "lexical production `%s` is empty", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var s strings.Builder
	if err := c.regexp(&s, prod.Expr, visiting); err != nil {
		return "", err
	}
	if _, err := regexp.Compile(s.String()); err != nil {
		return "", errorf(position(prod.Name.StringPos), "lexical production `%s`: %s", name, err)
	}
	c.patterns[name] = s.String()
	return s.String(), nil
}

func (c *ebnfConverter) regexp(s *strings.Builder, e ebnf.Expression, visiting map[string]bool) error {
	switch e := e.(type) {
	case ebnf.Alternative:
		s.WriteString("(?:")
		for i, alt := range e {
			if i > 0 {
				s.WriteString("|")
			}
			if err := c.regexp(s, alt, visiting); err != nil {
				return err
			}
		}
		s.WriteString(")")
	case ebnf.Sequence:
		for _, item := range e {
			if err := c.regexp(s, item, visiting); err != nil {
				return err
			}
		}
	case *ebnf.Name:
		if !isLexical(e.String) {
			return errorf(position(e.StringPos), "lexical production refers to `%s`", e.String)
		}
		p, err := c.patternOf(e.String, visiting)
		if err != nil {
			return err
		}
		s.WriteString("(?:" + p + ")")
	case *ebnf.Token:
		s.WriteString(regexp.QuoteMeta(e.String))
	case *ebnf.Range:
		lo, _ := utf8.DecodeRuneInString(e.Begin.String)
		hi, _ := utf8.DecodeRuneInString(e.End.String)
		fmt.Fprintf(s, `[\x{%x}-\x{%x}]`, lo, hi)
	case *ebnf.Group:
		return c.wrap(s, e.Body, visiting, "")
	case *ebnf.Option:
		return c.wrap(s, e.Body, visiting, "?")
	case *ebnf.Repetition:
		return c.wrap(s, e.Body, visiting, "*")
	case *ebnf.Bad:
		return errorf(position(e.TokPos), "%s", e.Error)
	case nil:
		return fmt.Errorf("empty expression in lexical production")
	default:
		return fmt.Errorf("unknown EBNF expression %T", e)
	}
	return nil
}

func (c *ebnfConverter) wrap(s *strings.Builder, body ebnf.Expression, visiting map[string]bool, op string) error {
	s.WriteString("(?:")
	if err := c.regexp(s, body, visiting); err != nil {
		return err
	}
	s.WriteString(")" + op)
	return nil
}

func isLexical(name string) bool {
	ch, _ := utf8.DecodeRuneInString(name)
	return !unicode.IsUpper(ch)
}

func position(pos scanner.Position) chisel.Location {
	return chisel.Location{Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}
