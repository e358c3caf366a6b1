package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactircool/chisel"
)

const calcEBNF = `
Expr = Term { ( "+" | "-" ) Term } .
Term = number | ident | "(" Expr ")" .

number = digit { digit } .
ident  = letter { letter | digit } .
digit  = "0" … "9" .
letter = "a" … "z" | "_" .
`

func TestFromEBNF(t *testing.T) {
	t.Run("productions", func(t *testing.T) {
		g, err := FromEBNF("calc.ebnf", strings.NewReader(calcEBNF), "Expr", nil)
		require.NoError(t, err)

		assert.Equal(t, "Expr", g.Start)
		assert.True(t, g.LongestMatch)

		require.Len(t, g.Constructs, 2)
		assert.Equal(t, "Expr", g.Constructs[0].Name)
		assert.Equal(t, `Term (("+" | "-") Term)*`, FormatExpr(g.Constructs[0].Body))
		assert.Equal(t, `number | ident | "(" Expr ")"`, FormatExpr(g.Constructs[1].Body))
		assert.Equal(t, 2, g.Constructs[0].Pos.Line)

		require.Len(t, g.Tokens, 2)
		assert.Equal(t, "number", g.Tokens[0].Name)
		assert.Equal(t, Pattern, g.Tokens[0].Kind)
		assert.Equal(t, "ident", g.Tokens[1].Name)

		require.Len(t, g.Skips, 1)
		assert.Equal(t, `\s+`, g.Skips[0].Pattern)
	})

	t.Run("lexical productions become regular expressions", func(t *testing.T) {
		g, err := FromEBNF("calc.ebnf", strings.NewReader(calcEBNF), "Expr", nil)
		require.NoError(t, err)
		pr, err := Compile(g)
		require.NoError(t, err)

		for _, test := range []struct {
			input string
			token string
		}{
			{"0", "number"},
			{"1234", "number"},
			{"x", "ident"},
			{"_tmp9", "ident"},
		} {
			n, err := pr.ParseFrom("Term", strings.NewReader(test.input), nil)
			require.NoError(t, err, test.input)
			tok, ok := chisel.AsToken(n)
			require.True(t, ok, test.input)
			assert.Equal(t, test.token, pr.TokenName(tok.Type), test.input)
			assert.Equal(t, test.input, tok.Text())
		}

		_, err = pr.ParseFrom("Term", strings.NewReader("9x"), nil)
		require.Error(t, err)
	})

	t.Run("parses what the grammar describes", func(t *testing.T) {
		g, err := FromEBNF("calc.ebnf", strings.NewReader(calcEBNF), "Expr", nil)
		require.NoError(t, err)
		pr, err := Compile(g)
		require.NoError(t, err)

		n, err := pr.Parse(strings.NewReader("a1 + (22 - b)"), nil)
		require.NoError(t, err)
		assert.Equal(t, "a1+(22-b)", n.Text())

		expr, ok := chisel.AsParseNode(n)
		require.True(t, ok)
		require.Equal(t, 3, expr.Len())
		term, ok := chisel.AsParseNode(expr.Child(2))
		require.True(t, ok)
		assert.Equal(t, "Term", pr.ConstructName(term.Type))
	})

	t.Run("implicit whitespace can be turned off", func(t *testing.T) {
		cfg := chisel.NewConfig()
		cfg.SetBool("grammar.implicit_whitespace", false)
		g, err := FromEBNF("calc.ebnf", strings.NewReader(calcEBNF), "Expr", cfg)
		require.NoError(t, err)
		assert.Empty(t, g.Skips)

		pr, err := Compile(g)
		require.NoError(t, err)
		_, err = pr.Parse(strings.NewReader("1+2"), nil)
		require.NoError(t, err)
		_, err = pr.Parse(strings.NewReader("1 + 2"), nil)
		require.Error(t, err)
	})

	t.Run("ebnf errors", func(t *testing.T) {
		_, err := FromEBNF("bad.ebnf", strings.NewReader(`Expr = "a" `), "Expr", nil)
		require.Error(t, err)

		_, err = FromEBNF("bad.ebnf", strings.NewReader(`Expr = Term .`), "Expr", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Term")
	})

	t.Run("ranges belong to lexical productions", func(t *testing.T) {
		_, err := FromEBNF("bad.ebnf", strings.NewReader(`Expr = "a" … "z" .`), "Expr", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "character ranges are only allowed in lexical productions")
	})

	t.Run("left recursion is caught when compiling", func(t *testing.T) {
		g, err := FromEBNF("rec.ebnf", strings.NewReader(`Expr = Expr "+" "1" | "1" .`), "Expr", nil)
		require.NoError(t, err)
		_, err = Compile(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "left recursion: Expr -> Expr")
	})
}
