package chisel

import (
	"strings"
)

const (
	tNum TokenType = iota + 1
	tPlus
	tLParen
	tRParen
	tIdent
	tIf
	tWS
)

const (
	cSum ConstructType = iota + 1
	cPair
	cParen
)

func arithTokens() *TokenSet {
	return NewTokenSet().
		Add(
			MustPattern(tNum, "NUM", `[0-9]+`),
			Literal(tPlus, "PLUS", "+"),
			Literal(tLParen, "LPAREN", "("),
			Literal(tRParen, "RPAREN", ")"),
		).
		Skip(MustPattern(tWS, "WS", `[ \t\r\n]+`))
}

func newArithParser(input string, cfg *Config) *Parser {
	return NewParser(strings.NewReader(input), arithTokens(), cfg)
}

type testNames struct{ tokens *TokenSet }

func (n testNames) TokenName(t TokenType) string { return n.tokens.Name(t) }
func (n testNames) ConstructName(c ConstructType) string {
	return map[ConstructType]string{cSum: "SUM", cPair: "PAIR", cParen: "PAREN"}[c]
}

// EXPR <- NUM
func constructExpr(p *Parser) (Node, error) {
	t, err := p.Expect(tNum)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SUM <- NUM PLUS SUM / NUM
func constructSum(p *Parser) (Node, error) {
	m := p.Mark()
	node := NewParseNode(cSum)
	n, err := func() (Node, error) {
		num, err := p.Expect(tNum)
		if err != nil {
			return nil, err
		}
		plus, err := p.Expect(tPlus)
		if err != nil {
			return nil, err
		}
		rest, err := p.Construct(constructSum)
		if err != nil {
			return nil, err
		}
		node.Append(num)
		node.Append(plus)
		node.Append(rest)
		return node, nil
	}()
	if err == nil {
		return n, nil
	}
	if isthrown(err) {
		return nil, err
	}
	p.Restore(m)
	return constructExpr(p)
}

// PAIR <- NUM PLUS NUM RPAREN, restoring by hand on failure
func constructPair(p *Parser) (Node, error) {
	m := p.Mark()
	node := NewParseNode(cPair)
	for _, typ := range []TokenType{tNum, tPlus, tNum, tRParen} {
		t, err := p.Expect(typ)
		if err != nil {
			p.Restore(m)
			return nil, err
		}
		node.Append(t)
	}
	return node, nil
}

// PAREN <- LPAREN PAREN RPAREN / NUM, without restoring anything and
// relying on Parser.Construct to do it
func constructParen(p *Parser) (Node, error) {
	if _, err := p.Peek(); err != nil {
		return nil, p.NoMatch("PAREN")
	}
	if lp, err := p.Expect(tLParen); err == nil {
		inner, err := p.Construct(constructParen)
		if err != nil {
			return nil, err
		}
		rp, err := p.Expect(tRParen)
		if err != nil {
			return nil, err
		}
		return NewParseNode(cParen, lp, inner, rp), nil
	}
	return constructExpr(p)
}
