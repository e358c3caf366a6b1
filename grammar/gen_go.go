package grammar

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"
)

// GenGoOptions controls the output of GenGo
type GenGoOptions struct {
	// Package is the package clause of the generated file
	Package string

	// Source names the grammar file in the generated header
	Source string
}

type goCodeEmitter struct {
	output      *strings.Builder
	indentLevel int

	symbols *symbolTable

	// helpers are the match functions requested but not written yet
	helpers     []goHelper
	helperNames map[Expr]string
	helperCount int

	// usesRoutine is set once the code calls into the routine package
	usesRoutine bool
}

type goHelper struct {
	name string
	expr Expr
}

func newGoCodeEmitter(st *symbolTable) *goCodeEmitter {
	return &goCodeEmitter{
		output:      &strings.Builder{},
		symbols:     st,
		helperNames: map[Expr]string{},
	}
}

// GenGo emits the Go source code of a parser for g, built on the
// chisel engine: token and construct type constants, the token set,
// and one exported ConstructX routine per construct.  The code is
// formatted with go/format.
func GenGo(g *Grammar, opts GenGoOptions) ([]byte, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	if opts.Package == "" {
		opts.Package = "parser"
	}
	e := newGoCodeEmitter(newSymbolTable(g))
	e.visitGrammar(g, opts)
	src, err := format.Source([]byte(e.String()))
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}
	return src, nil
}

func (g *goCodeEmitter) visitGrammar(gr *Grammar, opts GenGoOptions) {
	fingerprint := Fingerprint(gr)
	if opts.Source != "" {
		fmt.Fprintf(g.output, "// Code generated by chisel from %s. DO NOT EDIT.\n", opts.Source)
	} else {
		g.write("// Code generated by chisel. DO NOT EDIT.\n")
	}
	fmt.Fprintf(g.output, "// Grammar fingerprint: %016x\n\n", fingerprint)
	fmt.Fprintf(g.output, "package %s\n\n", opts.Package)

	// the imports depend on what the rest of the file uses
	header := g.output
	g.output = &strings.Builder{}

	for _, prefix := range gr.Prefixes {
		g.write(prefix)
		g.write("\n\n")
	}

	fmt.Fprintf(g.output, "// Fingerprint identifies the grammar this file was generated from\nconst Fingerprint uint64 = 0x%016x\n\n", fingerprint)

	g.visitTypes()
	g.visitTokenSet(gr)

	start := gr.StartConstruct().Name
	g.write("// NewParser creates a parser reading r.  A nil cfg means chisel.NewConfig().\n")
	g.write("func NewParser(r io.Reader, cfg *chisel.Config) *chisel.Parser {\n")
	g.write("\treturn chisel.NewParser(r, NewTokenSet(), cfg)\n}\n\n")
	fmt.Fprintf(g.output, "// Parse reads r from %s\n", start)
	g.write("func Parse(r io.Reader, cfg *chisel.Config) (chisel.Node, error) {\n")
	fmt.Fprintf(g.output, "\treturn NewParser(r, cfg).Parse(%s)\n}\n", constructFunc(start))

	for _, c := range gr.Constructs {
		g.visitConstruct(c)
	}

	// helpers may request more helpers while being written
	for i := 0; i < len(g.helpers); i++ {
		g.visitHelper(g.helpers[i])
	}

	for _, suffix := range gr.Suffixes {
		g.write("\n")
		g.write(suffix)
		g.write("\n")
	}

	body := g.output
	g.output = header
	g.write("import (\n\t\"io\"\n\n\t\"github.com/cactircool/chisel\"\n")
	if g.usesRoutine {
		g.write("\t\"github.com/cactircool/chisel/routine\"\n")
	}
	g.write(")\n\n")
	g.write(body.String())
}

func (g *goCodeEmitter) visitTypes() {
	g.write("const (\n")
	g.indent()
	for i, t := range g.symbols.tokens {
		g.writei(tokenConst(t))
		if i == 0 {
			g.write(" chisel.TokenType = iota + 1")
		}
		if t.Decl == nil {
			fmt.Fprintf(g.output, " // %s", t.Name)
		}
		g.write("\n")
	}
	g.unindent()
	g.write(")\n\n")

	g.write("const (\n")
	g.indent()
	for i, c := range g.symbols.constructs {
		g.writei(kindConst(c.Name))
		if i == 0 {
			g.write(" chisel.ConstructType = iota + 1")
		}
		g.write("\n")
	}
	g.unindent()
	g.write(")\n\n")

	g.write("var tokenNames = map[chisel.TokenType]string{\n")
	g.indent()
	for _, t := range g.symbols.tokens {
		g.writei(fmt.Sprintf("%s: %s,\n", tokenConst(t), strconv.Quote(t.Name)))
	}
	g.unindent()
	g.write("}\n\n")

	g.write("var constructNames = map[chisel.ConstructType]string{\n")
	g.indent()
	for _, c := range g.symbols.constructs {
		g.writei(fmt.Sprintf("%s: %s,\n", kindConst(c.Name), strconv.Quote(c.Name)))
	}
	g.unindent()
	g.write("}\n\n")

	g.write(`// Names gives display names to the token and construct types of
// this package
var Names chisel.Namer = names{}

type names struct{}

func (names) TokenName(t chisel.TokenType) string         { return tokenNames[t] }
func (names) ConstructName(c chisel.ConstructType) string { return constructNames[c] }

`)
}

func (g *goCodeEmitter) visitTokenSet(gr *Grammar) {
	g.write("// NewTokenSet returns the token rules of the grammar\n")
	g.write("func NewTokenSet() *chisel.TokenSet {\n")
	g.indent()
	g.writei("set := chisel.NewTokenSet()\n")
	if gr.LongestMatch {
		g.writei("set.LongestMatch = true\n")
	}
	for _, t := range g.symbols.anonymous() {
		g.writei(fmt.Sprintf("set.Add(chisel.Literal(%s, %s, %s))\n",
			tokenConst(t), strconv.Quote(t.Name), strconv.Quote(t.Literal)))
	}
	for _, t := range g.symbols.tokens {
		if t.Decl == nil {
			continue
		}
		var rule string
		switch t.Decl.Kind {
		case Bare:
			g.writei(fmt.Sprintf("set.Declare(%s, %s)\n", tokenConst(t), strconv.Quote(t.Name)))
			continue
		case Literal:
			rule = fmt.Sprintf("chisel.Literal(%s, %s, %s)", tokenConst(t), strconv.Quote(t.Name), strconv.Quote(t.Decl.Literal))
		case Pattern:
			rule = fmt.Sprintf("chisel.MustPattern(%s, %s, %s)", tokenConst(t), strconv.Quote(t.Name), strconv.Quote(t.Decl.Pattern))
		}
		if t.Decl.Precedence != 0 {
			rule += fmt.Sprintf(".WithPrecedence(%d)", t.Decl.Precedence)
		}
		if t.Skip {
			g.writei("set.Skip(" + rule + ")\n")
		} else {
			g.writei("set.Add(" + rule + ")\n")
		}
	}
	g.writei("return set\n")
	g.unindent()
	g.write("}\n\n")
}

func (g *goCodeEmitter) visitConstruct(c *Construct) {
	fmt.Fprintf(g.output, "\n// %s = %s ;\n", c.Name, FormatExpr(c.Body))
	fmt.Fprintf(g.output, "func %s(p *chisel.Parser) (chisel.Node, error) {\n", constructFunc(c.Name))
	g.indent()

	alts := alternatives(c.Body)
	if len(alts) == 1 {
		g.visitAlternative(alts[0], c.Name)
	} else {
		g.usesRoutine = true
		g.writei("return routine.Choice[chisel.Node](p,\n")
		g.indent()
		for _, alt := range alts {
			g.writei("func(p *chisel.Parser) (chisel.Node, error) {\n")
			g.indent()
			g.visitAlternative(alt, c.Name)
			g.unindent()
			g.writei("},\n")
		}
		g.unindent()
		g.writei(")\n")
	}

	g.unindent()
	g.write("}\n")
}

// visitAlternative writes the statements of one alternative: a
// single reference forwards what it matched, anything else builds a
// node of the construct's type
func (g *goCodeEmitter) visitAlternative(e Expr, construct string) {
	if ref, ok := e.(*Ref); ok {
		if _, isConstruct := g.symbols.constructTypes[ref.Name]; isConstruct {
			g.writei(fmt.Sprintf("return p.Construct(%s)\n", constructFunc(ref.Name)))
			return
		}
	}
	switch e.(type) {
	case *Ref, *Lit:
		g.writei(fmt.Sprintf("t, err := p.Expect(%s)\n", g.tokenConstOf(e)))
		g.writeIfErr()
		g.writei("return t, nil\n")
	default:
		g.writei(fmt.Sprintf("nodes, err := %s(p)\n", g.matchFn(e)))
		g.writeIfErr()
		g.writei(fmt.Sprintf("return chisel.NewParseNode(%s, nodes...), nil\n", kindConst(construct)))
	}
}

func (g *goCodeEmitter) visitHelper(h goHelper) {
	fmt.Fprintf(g.output, "\n// %s\n", FormatExpr(h.expr))
	fmt.Fprintf(g.output, "func %s(p *chisel.Parser) ([]chisel.Node, error) {\n", h.name)
	g.indent()

	switch e := h.expr.(type) {
	case *Sequence:
		g.writei("return routine.Seq(p,\n")
		g.writeArgs(e.Items)
		g.writei(")\n")
	case *Choice:
		g.writei("return routine.Choice[[]chisel.Node](p,\n")
		g.writeArgs(e.Alts)
		g.writei(")\n")
	case *Repeat:
		g.writei(fmt.Sprintf("return routine.Repeat(p, %d, %s)\n", e.Min, g.matchFn(e.Body)))
	case *Optional:
		g.writei(fmt.Sprintf("return routine.Optional[[]chisel.Node](p, %s)\n", g.matchFn(e.Body)))
	}

	g.unindent()
	g.write("}\n")
}

func (g *goCodeEmitter) writeArgs(items []Expr) {
	g.indent()
	for _, item := range items {
		g.writei(g.matchFn(item) + ",\n")
	}
	g.unindent()
}

// matchFn returns a Go expression for a function matching e and
// returning the nodes it matched.  Composite expressions get a
// numbered helper.
func (g *goCodeEmitter) matchFn(e Expr) string {
	g.usesRoutine = true
	switch e := e.(type) {
	case *Ref:
		if _, ok := g.symbols.constructTypes[e.Name]; ok {
			return fmt.Sprintf("routine.ConstructNodes(%s)", constructFunc(e.Name))
		}
		return fmt.Sprintf("routine.ExpectNodes(%s)", g.tokenConstOf(e))
	case *Lit:
		return fmt.Sprintf("routine.ExpectNodes(%s)", g.tokenConstOf(e))
	}
	if name, ok := g.helperNames[e]; ok {
		return name
	}
	g.helperCount++
	var kind string
	switch e.(type) {
	case *Sequence:
		kind = "Seq"
	case *Choice:
		kind = "Choice"
	case *Repeat:
		kind = "Repeat"
	case *Optional:
		kind = "Optional"
	}
	name := fmt.Sprintf("match%s%d", kind, g.helperCount)
	g.helperNames[e] = name
	g.helpers = append(g.helpers, goHelper{name: name, expr: e})
	return name
}

func (g *goCodeEmitter) tokenConstOf(e Expr) string {
	typ := g.symbols.refType(e)
	return tokenConst(g.symbols.tokens[typ-1])
}

func tokenConst(t tokenSymbol) string {
	if t.Decl == nil {
		return fmt.Sprintf("TokenLiteral%d", t.Type)
	}
	return "Token" + t.Name
}

func kindConst(construct string) string     { return "Kind" + construct }
func constructFunc(construct string) string { return "Construct" + construct }

// Utilities to write data into the output buffer

func (g *goCodeEmitter) writeIfErr() {
	g.writei("if err != nil {\n")
	g.indent()
	g.writei("return nil, err\n")
	g.unindent()
	g.writei("}\n")
}

func (g *goCodeEmitter) writei(s string) {
	g.writeIndent()
	g.write(s)
}

func (g *goCodeEmitter) write(s string) {
	g.output.WriteString(s)
}

func (g *goCodeEmitter) writeIndent() {
	for i := 0; i < g.indentLevel; i++ {
		g.output.WriteString("\t")
	}
}

// Indentation related utilities

func (g *goCodeEmitter) indent() {
	g.indentLevel++
}

func (g *goCodeEmitter) unindent() {
	g.indentLevel--
}

func (g *goCodeEmitter) String() string {
	return g.output.String()
}
