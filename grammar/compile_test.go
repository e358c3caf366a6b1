package grammar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactircool/chisel"
)

func compileString(t testing.TB, source string) *Program {
	g, err := ReadString(source)
	require.NoError(t, err)
	pr, err := Compile(g)
	require.NoError(t, err)
	return pr
}

func TestCompile(t *testing.T) {
	t.Run("a single token forwards", func(t *testing.T) {
		pr := compileString(t, "tok NUM = /[0-9]+/\nskip WS = /\\s+/\nEXPR = NUM ;")

		n, err := pr.Parse(strings.NewReader("42"), nil)
		require.NoError(t, err)
		tok, ok := chisel.AsToken(n)
		require.True(t, ok)
		typ, _ := pr.TokenType("NUM")
		assert.Equal(t, typ, tok.Type)
		assert.Equal(t, "42", tok.Text())

		_, err = pr.Parse(strings.NewReader(""), nil)
		require.Error(t, err)
		assert.Equal(t, "Expected NUM but got EOF @ 1", err.Error())
	})

	t.Run("arithmetic", func(t *testing.T) {
		pr := compileString(t, arithGrammar)
		n, err := pr.Parse(strings.NewReader("1 + (2+x)"), nil)
		require.NoError(t, err)

		cfg := chisel.NewConfig()
		cfg.SetBool("printer.spans", false)
		assert.Equal(t, `EXPR
    NUM "1"
    PLUS "+"
    TERM
        "(" "("
        EXPR
            NUM "2"
            PLUS "+"
            ID "x"
        ")" ")"
`, chisel.NewPrinter(pr, cfg).Sprint(n))
		assert.Equal(t, "1+(2+x)", n.Text())
	})

	t.Run("alternatives with more than one item build nodes", func(t *testing.T) {
		pr := compileString(t, arithGrammar)
		n, err := pr.Parse(strings.NewReader("-1"), nil)
		require.NoError(t, err)

		expr, ok := chisel.AsParseNode(n)
		require.True(t, ok)
		require.Equal(t, 1, expr.Len())
		term, ok := chisel.AsParseNode(expr.Child(0))
		require.True(t, ok)
		assert.Equal(t, "TERM", pr.ConstructName(term.Type))
		assert.Equal(t, 2, term.Len())
	})

	t.Run("errors come from the farthest failure", func(t *testing.T) {
		pr := compileString(t, arithGrammar)
		_, err := pr.Parse(strings.NewReader("1 +"), nil)
		require.Error(t, err)
		assert.Equal(t, "Expected NUM, ID, \"(\", MINUS but got EOF @ 4", err.Error())
	})

	t.Run("parsing from another construct", func(t *testing.T) {
		pr := compileString(t, arithGrammar)
		n, err := pr.ParseFrom("TERM", strings.NewReader("- 7"), nil)
		require.NoError(t, err)
		assert.Equal(t, "-7", n.Text())

		_, err = pr.ParseFrom("TERM", strings.NewReader("1 + 2"), nil)
		require.Error(t, err)

		_, err = pr.ParseFrom("NOPE", strings.NewReader("1"), nil)
		require.Error(t, err)
		assert.Equal(t, "construct `NOPE` is not defined", err.Error())
	})

	t.Run("nesting depth is bounded by the configuration", func(t *testing.T) {
		pr := compileString(t, arithGrammar)
		cfg := chisel.NewConfig()
		cfg.SetInt("parser.max_depth", 4)

		_, err := pr.Parse(strings.NewReader("((1))"), cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, chisel.ErrDepthExceeded)

		_, err = pr.Parse(strings.NewReader("((1))"), nil)
		require.NoError(t, err)
	})

	t.Run("literals reuse declared tokens", func(t *testing.T) {
		pr := compileString(t, "tok PLUS = \"+\"\ntok N = /[0-9]+/\nskip WS = /\\s+/\nSUM = N \"+\" N ;")
		n, err := pr.Parse(strings.NewReader("1 + 2"), nil)
		require.NoError(t, err)

		sum, _ := chisel.AsParseNode(n)
		plus, _ := chisel.AsToken(sum.Child(1))
		assert.Equal(t, "PLUS", pr.TokenName(plus.Type))

		typ, ok := pr.LiteralType("+")
		require.True(t, ok)
		assert.Equal(t, plus.Type, typ)
	})

	t.Run("longest match lets identifiers start with keywords", func(t *testing.T) {
		source := "tok ID = /[a-z]+/\nskip WS = /\\s+/\nSTMT = \"let\" ID | ID ;"

		pr := compileString(t, "longest\n"+source)
		n, err := pr.Parse(strings.NewReader("let x"), nil)
		require.NoError(t, err)
		assert.True(t, chisel.HoldsNode(n))

		n, err = pr.Parse(strings.NewReader("letter"), nil)
		require.NoError(t, err)
		tok, ok := chisel.AsToken(n)
		require.True(t, ok)
		assert.Equal(t, "ID", pr.TokenName(tok.Type))

		// the first rule to match wins otherwise
		pr = compileString(t, source)
		n, err = pr.Parse(strings.NewReader("letter"), nil)
		require.NoError(t, err)
		stmt, ok := chisel.AsParseNode(n)
		require.True(t, ok)
		assert.Equal(t, 2, stmt.Len())
		assert.Equal(t, "ter", stmt.Child(1).Text())
	})

	t.Run("invalid grammars don't compile", func(t *testing.T) {
		g, err := ReadString(`X = Y ;`)
		require.NoError(t, err)
		_, err = Compile(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "undefined reference `Y`")
	})
}

func TestProgram_Symbols(t *testing.T) {
	pr := compileString(t, arithGrammar)
	assert.Equal(t, []Symbol{
		{Kind: TokenSymbol, Name: "NUM", Type: 1},
		{Kind: TokenSymbol, Name: "ID", Type: 2},
		{Kind: TokenSymbol, Name: "PLUS", Type: 3},
		{Kind: TokenSymbol, Name: "MINUS", Type: 4},
		{Kind: TokenSymbol, Name: "HOLE", Type: 5},
		{Kind: SkipSymbol, Name: "WS", Type: 6},
		{Kind: LiteralSymbol, Name: `"("`, Type: 7},
		{Kind: LiteralSymbol, Name: `")"`, Type: 8},
		{Kind: ConstructSymbol, Name: "EXPR", Type: 1},
		{Kind: ConstructSymbol, Name: "TERM", Type: 2},
	}, pr.Symbols())

	assert.Equal(t, "literal", LiteralSymbol.String())
	assert.Equal(t, "HOLE", pr.TokenName(5))
	assert.Equal(t, "construct(9)", pr.ConstructName(9))
	assert.Equal(t, chisel.ConstructType(1), pr.Start())

	lp, ok := pr.LiteralType("(")
	require.True(t, ok)
	assert.Equal(t, chisel.TokenType(7), lp)
	_, ok = pr.TokenType("TERM")
	assert.False(t, ok)
	ct, ok := pr.ConstructType("TERM")
	require.True(t, ok)
	assert.Equal(t, chisel.ConstructType(2), ct)
}

const jsonGrammar = `# JSON, RFC 8259 minus the unicode escapes checks
tok STRING = /"(?:[^"\\]|\\.)*"/
tok NUMBER = /-?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?/
skip WS = /\s+/

Value  = Object | Array | STRING | NUMBER | "true" | "false" | "null" ;
Object = "{" (Member ("," Member)*)? "}" ;
Member = STRING ":" Value ;
Array  = "[" (Value ("," Value)*)? "]" ;
`

const jsonDocument = `{"name": "chisel", "tags": ["lexer", "parser", "tree"],
 "nested": {"x": 1, "y": [true, false, null], "z": {}},
 "n": -1.5e3, "escaped": "a \"quoted\" word"}`

func jsonMembers(t testing.TB, pr *Program, n chisel.Node) map[string]chisel.Node {
	obj, ok := chisel.AsParseNode(n)
	require.True(t, ok, "expected an object")
	member, _ := pr.ConstructType("Member")

	out := map[string]chisel.Node{}
	for _, child := range obj.Children() {
		m, ok := chisel.AsParseNode(child)
		if !ok || m.Type != member {
			continue
		}
		key, err := strconv.Unquote(m.Child(0).Text())
		require.NoError(t, err)
		out[key] = m.Child(2)
	}
	return out
}

// jsonElements skips the brackets and the commas of an array
func jsonElements(n chisel.Node) []chisel.Node {
	arr, _ := chisel.AsParseNode(n)
	var out []chisel.Node
	for i, child := range arr.Children() {
		if i%2 == 1 && i < arr.Len()-1 {
			out = append(out, child)
		}
	}
	return out
}

// compareJSON walks value with jsonparser and checks that n holds the
// same data
func compareJSON(t *testing.T, pr *Program, value []byte, dataType jsonparser.ValueType, n chisel.Node) {
	switch dataType {
	case jsonparser.Object:
		members := jsonMembers(t, pr, n)
		count := 0
		err := jsonparser.ObjectEach(value, func(key, v []byte, dt jsonparser.ValueType, _ int) error {
			count++
			child, ok := members[string(key)]
			require.True(t, ok, "missing member %s", key)
			compareJSON(t, pr, v, dt, child)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(members), count)

	case jsonparser.Array:
		elems := jsonElements(n)
		i := 0
		_, err := jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, err error) {
			require.NoError(t, err)
			require.Less(t, i, len(elems))
			compareJSON(t, pr, v, dt, elems[i])
			i++
		})
		require.NoError(t, err)
		assert.Equal(t, len(elems), i)

	case jsonparser.String:
		assert.Equal(t, `"`+string(value)+`"`, n.Text())

	default:
		assert.Equal(t, string(value), n.Text())
	}
}

func TestCompile_JSON(t *testing.T) {
	pr := compileString(t, jsonGrammar)

	t.Run("agrees with jsonparser", func(t *testing.T) {
		data := []byte(jsonDocument)
		root, err := pr.Parse(bytes.NewReader(data), nil)
		require.NoError(t, err)
		compareJSON(t, pr, data, jsonparser.Object, root)

		members := jsonMembers(t, pr, root)
		assert.Len(t, members, 5)
		assert.Len(t, jsonElements(members["tags"]), 3)
	})

	t.Run("scalars forward their token", func(t *testing.T) {
		n, err := pr.Parse(strings.NewReader(" null "), nil)
		require.NoError(t, err)
		assert.True(t, chisel.HoldsToken(n))
		assert.Equal(t, "null", n.Text())
	})

	t.Run("syntax errors", func(t *testing.T) {
		_, err := pr.Parse(strings.NewReader(`{"a": }`), nil)
		require.Error(t, err)
		assert.Equal(t,
			"Expected \"{\", \"[\", STRING, NUMBER, \"true\", \"false\", \"null\" but got `}` @ 7..8",
			err.Error())

		_, err = pr.Parse(strings.NewReader(`[1, 2,]`), nil)
		require.Error(t, err)
	})
}

func benchmarkDocument(entries int) []byte {
	var s strings.Builder
	s.WriteString("{")
	for i := 0; i < entries; i++ {
		if i > 0 {
			s.WriteString(", ")
		}
		fmt.Fprintf(&s, `"key%d": {"id": %d, "name": "entry %d", "flags": [true, false, null], "ratio": %d.5}`, i, i, i, i)
	}
	s.WriteString("}")
	return []byte(s.String())
}

func BenchmarkJSON(b *testing.B) {
	pr := compileString(b, jsonGrammar)
	data := benchmarkDocument(200)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := pr.Parse(bytes.NewReader(data), nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSON_jsonparser(b *testing.B) {
	data := benchmarkDocument(200)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
