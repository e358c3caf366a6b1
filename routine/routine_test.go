package routine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactircool/chisel"
)

const (
	tNum chisel.TokenType = iota + 1
	tPlus
	tLParen
	tRParen
	tWS
)

const cParen chisel.ConstructType = 1

func newArithParser(input string, cfg *chisel.Config) *chisel.Parser {
	tokens := chisel.NewTokenSet().
		Add(
			chisel.MustPattern(tNum, "NUM", `[0-9]+`),
			chisel.Literal(tPlus, "PLUS", "+"),
			chisel.Literal(tLParen, "LPAREN", "("),
			chisel.Literal(tRParen, "RPAREN", ")"),
		).
		Skip(chisel.MustPattern(tWS, "WS", `\s+`))
	return chisel.NewParser(strings.NewReader(input), tokens, cfg)
}

// NUM
func constructNum(p *chisel.Parser) (chisel.Node, error) {
	t, err := p.Expect(tNum)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// PAREN <- LPAREN PAREN RPAREN / NUM
func constructParen(p *chisel.Parser) (chisel.Node, error) {
	return Choice[chisel.Node](p,
		func(p *chisel.Parser) (chisel.Node, error) {
			nodes, err := Seq(p, ExpectNodes(tLParen), ConstructNodes(constructParen), ExpectNodes(tRParen))
			if err != nil {
				return nil, err
			}
			return chisel.NewParseNode(cParen, nodes...), nil
		},
		constructNum,
	)
}

func nextText(t *testing.T, p *chisel.Parser) string {
	tok, err := p.Next()
	require.NoError(t, err)
	return tok.Text()
}

func TestChoice(t *testing.T) {
	t.Run("first alternative to match wins", func(t *testing.T) {
		p := newArithParser("(", nil)
		tok, err := Choice(p, ExpectFn(tNum), ExpectFn(tLParen), ExpectFn(tLParen))
		require.NoError(t, err)
		assert.Equal(t, tLParen, tok.Type)
	})

	t.Run("failures merge what every alternative expected", func(t *testing.T) {
		p := newArithParser("+", nil)
		_, err := Choice(p, ExpectFn(tNum), ExpectFn(tLParen), ExpectFn(tNum))
		require.Error(t, err)
		assert.True(t, chisel.IsBacktrack(err))

		var merr *chisel.MatchError
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, "NUM or LPAREN", merr.Expected)
		assert.Equal(t, "+", nextText(t, p))
	})

	t.Run("partial matches are given back before the next attempt", func(t *testing.T) {
		p := newArithParser("1 + 2", nil)
		nodes, err := Choice(p,
			func(p *chisel.Parser) ([]chisel.Node, error) {
				return Seq(p, ExpectNodes(tNum), ExpectNodes(tRParen))
			},
			func(p *chisel.Parser) ([]chisel.Node, error) {
				return Seq(p, ExpectNodes(tNum), ExpectNodes(tPlus), ExpectNodes(tNum))
			},
		)
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, "1", nodes[0].Text())
		assert.Equal(t, "2", nodes[2].Text())
	})

	t.Run("thrown errors end the choice", func(t *testing.T) {
		cfg := chisel.NewConfig()
		cfg.SetInt("parser.max_depth", 1)
		p := newArithParser("1", cfg)

		tried := false
		_, err := p.Construct(func(p *chisel.Parser) (chisel.Node, error) {
			return Choice[chisel.Node](p,
				func(p *chisel.Parser) (chisel.Node, error) { return p.Construct(constructNum) },
				func(p *chisel.Parser) (chisel.Node, error) {
					tried = true
					return constructNum(p)
				},
			)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, chisel.ErrDepthExceeded)
		assert.False(t, chisel.IsBacktrack(err))
		assert.False(t, tried)
	})
}

func TestOptional(t *testing.T) {
	p := newArithParser("1 +", nil)

	tok, err := Optional(p, ExpectFn(tNum))
	require.NoError(t, err)
	assert.True(t, tok.Valid())

	tok, err = Optional(p, ExpectFn(tNum))
	require.NoError(t, err)
	assert.False(t, tok.Valid())
	assert.Equal(t, "+", nextText(t, p))

	_, err = Optional(p, ExpectTextFn(tPlus, "+"))
	require.NoError(t, err)
}

func TestRepetitions(t *testing.T) {
	t.Run("zero or more", func(t *testing.T) {
		p := newArithParser("1 2 3 +", nil)
		toks, err := ZeroOrMore(p, ExpectFn(tNum))
		require.NoError(t, err)
		assert.Len(t, toks, 3)
		assert.Equal(t, "+", nextText(t, p))

		toks, err = ZeroOrMore(p, ExpectFn(tNum))
		require.NoError(t, err)
		assert.Empty(t, toks)
	})

	t.Run("iterations that consume nothing end the loop", func(t *testing.T) {
		p := newArithParser("1", nil)
		calls := 0
		toks, err := ZeroOrMore(p, func(p *chisel.Parser) (chisel.Token, error) {
			calls++
			return chisel.Token{}, nil
		})
		require.NoError(t, err)
		assert.Empty(t, toks)
		assert.Equal(t, 1, calls)
	})

	t.Run("one or more", func(t *testing.T) {
		p := newArithParser("+", nil)
		_, err := OneOrMore(p, ExpectFn(tNum))
		require.Error(t, err)
		assert.True(t, chisel.IsBacktrack(err))

		p = newArithParser("7 8", nil)
		toks, err := OneOrMore(p, ExpectFn(tNum))
		require.NoError(t, err)
		assert.Len(t, toks, 2)
	})

	t.Run("repeat flattens the nodes", func(t *testing.T) {
		p := newArithParser("1 + 2 + 3", nil)
		nodes, err := Repeat(p, 1, func(p *chisel.Parser) ([]chisel.Node, error) {
			return Seq(p, ExpectNodes(tNum), ExpectNodes(tPlus))
		})
		require.NoError(t, err)
		require.Len(t, nodes, 4)
		assert.Equal(t, "3", nextText(t, p))

		p = newArithParser("1", nil)
		_, err = Repeat(p, 2, ExpectNodes(tNum))
		require.Error(t, err)
	})
}

func TestSeq(t *testing.T) {
	p := newArithParser("1 (2)", nil)
	nodes, err := Seq(p, ExpectNodes(tNum), ConstructNodes(constructParen))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.True(t, chisel.HoldsToken(nodes[0]))

	paren, ok := chisel.AsParseNode(nodes[1])
	require.True(t, ok)
	assert.Equal(t, cParen, paren.Type)
	assert.Equal(t, "(2)", paren.Text())

	p = newArithParser("1 +", nil)
	_, err = Seq(p, ExpectNodes(tNum), ConstructNodes(constructParen))
	require.Error(t, err)
	assert.True(t, chisel.IsBacktrack(err))
}
