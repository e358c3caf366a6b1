package grammar

import (
	"io"
	"strconv"
	"strings"

	"github.com/cactircool/chisel"
	"github.com/cactircool/chisel/routine"
)

// Token and construct types of the chisel grammar format itself
const (
	tIdent chisel.TokenType = iota + 1
	tInt
	tString
	tRegex
	tBlock
	tEq
	tOr
	tStar
	tPlus
	tQuestion
	tLParen
	tRParen
	tSemi
	tSpace
	tComment
)

const (
	mGrammar chisel.ConstructType = iota + 1
	mPrefix
	mSuffix
	mStart
	mLongest
	mTok
	mSkip
	mTokenDef
	mConstruct
	mChoice
	mSequence
	mPostfix
	mGroup
)

var metaConstructNames = map[chisel.ConstructType]string{
	mGrammar:   "Grammar",
	mPrefix:    "Prefix",
	mSuffix:    "Suffix",
	mStart:     "Start",
	mLongest:   "Longest",
	mTok:       "Tok",
	mSkip:      "Skip",
	mTokenDef:  "TokenDef",
	mConstruct: "Construct",
	mChoice:    "Choice",
	mSequence:  "Sequence",
	mPostfix:   "Postfix",
	mGroup:     "Group",
}

func metaTokens() *chisel.TokenSet {
	return chisel.NewTokenSet().
		Add(
			chisel.MustPattern(tIdent, "IDENT", `[A-Za-z_][A-Za-z0-9_]*`),
			chisel.MustPattern(tInt, "INT", `[0-9]+`),
			chisel.MustPattern(tString, "STRING", `"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'`),
			chisel.MustPattern(tRegex, "REGEX", `/(?:[^/\\\n]|\\.)+/`),
			chisel.Func(tBlock, "BLOCK", matchBlock),
			chisel.Literal(tEq, "EQ", "="),
			chisel.Literal(tOr, "OR", "|"),
			chisel.Literal(tStar, "STAR", "*"),
			chisel.Literal(tPlus, "PLUS", "+"),
			chisel.Literal(tQuestion, "QUESTION", "?"),
			chisel.Literal(tLParen, "LPAREN", "("),
			chisel.Literal(tRParen, "RPAREN", ")"),
			chisel.Literal(tSemi, "SEMI", ";"),
		).
		Skip(
			chisel.MustPattern(tSpace, "SPACE", `\s+`),
			chisel.MustPattern(tComment, "COMMENT", `#[^\n]*`),
		)
}

// matchBlock matches a brace delimited block of verbatim code,
// nested braces included
func matchBlock(in *chisel.Input) int {
	if c, ok := in.ByteAt(0); !ok || c != '{' {
		return 0
	}
	depth := 0
	for i := 0; ; i++ {
		c, ok := in.ByteAt(i)
		if !ok {
			return 0
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
}

// Read parses a grammar written in the chisel text format
func Read(r io.Reader) (*Grammar, error) {
	p := chisel.NewParser(r, metaTokens(), nil)
	n, err := p.Parse(readGrammar)
	if err != nil {
		return nil, err
	}
	return convert(n)
}

func ReadString(s string) (*Grammar, error) {
	return Read(strings.NewReader(s))
}

// GR: Grammar <- Item*
func readGrammar(p *chisel.Parser) (chisel.Node, error) {
	items, err := routine.ZeroOrMore(p, readItem)
	if err != nil {
		return nil, err
	}
	return chisel.NewParseNode(mGrammar, items...), nil
}

// GR: Item <- Prefix / Suffix / Start / Longest / Tok / Skip / Construct
func readItem(p *chisel.Parser) (chisel.Node, error) {
	return routine.Choice(p,
		readBlock("prefix", mPrefix),
		readBlock("suffix", mSuffix),
		readStart,
		readLongest,
		readTokens("tok", mTok),
		readTokens("skip", mSkip),
		readConstruct,
	)
}

// GR: Prefix <- "prefix" BLOCK
// GR: Suffix <- "suffix" BLOCK
func readBlock(keyword string, typ chisel.ConstructType) routine.ParserFn[chisel.Node] {
	return func(p *chisel.Parser) (chisel.Node, error) {
		kw, err := p.ExpectText(tIdent, keyword)
		if err != nil {
			return nil, err
		}
		block, err := p.Expect(tBlock)
		if err != nil {
			return nil, err
		}
		return chisel.NewParseNode(typ, kw, block), nil
	}
}

// GR: Start <- "start" IDENT
func readStart(p *chisel.Parser) (chisel.Node, error) {
	kw, err := p.ExpectText(tIdent, "start")
	if err != nil {
		return nil, err
	}
	name, err := p.Expect(tIdent)
	if err != nil {
		return nil, err
	}
	return chisel.NewParseNode(mStart, kw, name), nil
}

// GR: Longest <- "longest" !EQ
func readLongest(p *chisel.Parser) (chisel.Node, error) {
	kw, err := p.ExpectText(tIdent, "longest")
	if err != nil {
		return nil, err
	}
	if next, err := p.Peek(); err == nil && next.Type == tEq {
		return nil, p.NoMatch("longest")
	}
	return chisel.NewParseNode(mLongest, kw), nil
}

// GR: Tok  <- "tok" (LPAREN TokenDef+ RPAREN / TokenDef)
// GR: Skip <- "skip" (LPAREN TokenDef+ RPAREN / TokenDef)
func readTokens(keyword string, typ chisel.ConstructType) routine.ParserFn[chisel.Node] {
	return func(p *chisel.Parser) (chisel.Node, error) {
		kw, err := p.ExpectText(tIdent, keyword)
		if err != nil {
			return nil, err
		}
		defs, err := routine.Choice(p, readTokenGroup, readSingleTokenDef)
		if err != nil {
			return nil, err
		}
		return chisel.NewParseNode(typ, append([]chisel.Node{kw}, defs...)...), nil
	}
}

func readTokenGroup(p *chisel.Parser) ([]chisel.Node, error) {
	if _, err := p.Expect(tLParen); err != nil {
		return nil, err
	}
	defs, err := routine.OneOrMore(p, readTokenDef)
	if err != nil {
		return nil, err
	}
	if _, err := p.Expect(tRParen); err != nil {
		return nil, err
	}
	return defs, nil
}

func readSingleTokenDef(p *chisel.Parser) ([]chisel.Node, error) {
	def, err := readTokenDef(p)
	if err != nil {
		return nil, err
	}
	return []chisel.Node{def}, nil
}

// GR: TokenDef <- INT? IDENT (EQ (STRING / REGEX))?
func readTokenDef(p *chisel.Parser) (chisel.Node, error) {
	node := chisel.NewParseNode(mTokenDef)
	prec, err := routine.Optional(p, routine.ExpectFn(tInt))
	if err != nil {
		return nil, err
	}
	if prec.Valid() {
		node.Append(prec)
	}
	name, err := p.Expect(tIdent)
	if err != nil {
		return nil, err
	}
	node.Append(name)
	value, err := routine.Optional(p, readTokenValue)
	if err != nil {
		return nil, err
	}
	if value.Valid() {
		node.Append(value)
	}
	return node, nil
}

func readTokenValue(p *chisel.Parser) (chisel.Token, error) {
	if _, err := p.Expect(tEq); err != nil {
		return chisel.Token{}, err
	}
	return routine.Choice(p, routine.ExpectFn(tString), routine.ExpectFn(tRegex))
}

// GR: Construct <- IDENT EQ Expression SEMI
func readConstruct(p *chisel.Parser) (chisel.Node, error) {
	name, err := p.Expect(tIdent)
	if err != nil {
		return nil, err
	}
	eq, err := p.Expect(tEq)
	if err != nil {
		return nil, err
	}
	expr, err := p.Construct(readExpression)
	if err != nil {
		return nil, err
	}
	semi, err := p.Expect(tSemi)
	if err != nil {
		return nil, err
	}
	return chisel.NewParseNode(mConstruct, name, eq, expr, semi), nil
}

// GR: Expression <- Sequence (OR Sequence)*
func readExpression(p *chisel.Parser) (chisel.Node, error) {
	head, err := p.Construct(readSequence)
	if err != nil {
		return nil, err
	}
	tail, err := routine.ZeroOrMore(p, func(p *chisel.Parser) ([]chisel.Node, error) {
		return routine.Seq(p, routine.ExpectNodes(tOr), routine.ConstructNodes(readSequence))
	})
	if err != nil {
		return nil, err
	}
	node := chisel.NewParseNode(mChoice, head)
	for _, alt := range tail {
		for _, n := range alt {
			node.Append(n)
		}
	}
	return node, nil
}

// GR: Sequence <- Postfix+
func readSequence(p *chisel.Parser) (chisel.Node, error) {
	items, err := routine.OneOrMore(p, readPostfix)
	if err != nil {
		return nil, err
	}
	return chisel.NewParseNode(mSequence, items...), nil
}

// GR: Postfix <- Primary (STAR / PLUS / QUESTION)?
func readPostfix(p *chisel.Parser) (chisel.Node, error) {
	primary, err := readPrimary(p)
	if err != nil {
		return nil, err
	}
	op, err := routine.Optional(p, func(p *chisel.Parser) (chisel.Token, error) {
		return routine.Choice(p,
			routine.ExpectFn(tStar),
			routine.ExpectFn(tPlus),
			routine.ExpectFn(tQuestion),
		)
	})
	if err != nil {
		return nil, err
	}
	node := chisel.NewParseNode(mPostfix, primary)
	if op.Valid() {
		node.Append(op)
	}
	return node, nil
}

// GR: Primary <- IDENT / STRING / LPAREN Expression RPAREN
func readPrimary(p *chisel.Parser) (chisel.Node, error) {
	return routine.Choice(p,
		tokenNode(tIdent),
		tokenNode(tString),
		readGroup,
	)
}

func readGroup(p *chisel.Parser) (chisel.Node, error) {
	lp, err := p.Expect(tLParen)
	if err != nil {
		return nil, err
	}
	expr, err := p.Construct(readExpression)
	if err != nil {
		return nil, err
	}
	rp, err := p.Expect(tRParen)
	if err != nil {
		return nil, err
	}
	return chisel.NewParseNode(mGroup, lp, expr, rp), nil
}

func tokenNode(typ chisel.TokenType) routine.ParserFn[chisel.Node] {
	return func(p *chisel.Parser) (chisel.Node, error) {
		t, err := p.Expect(typ)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// convert turns the tree of a chisel grammar into a Grammar
func convert(root chisel.Node) (*Grammar, error) {
	g := &Grammar{}
	top, ok := chisel.AsParseNode(root)
	if !ok {
		return nil, errorf(root.Span().Start, "expected a grammar")
	}
	var errs ErrorList
	for _, child := range top.Children() {
		item, _ := chisel.AsParseNode(child)
		switch item.Type {
		case mPrefix:
			g.Prefixes = append(g.Prefixes, blockContents(item.Child(1)))
		case mSuffix:
			g.Suffixes = append(g.Suffixes, blockContents(item.Child(1)))
		case mStart:
			g.Start = item.Child(1).Text()
		case mLongest:
			g.LongestMatch = true
		case mTok, mSkip:
			for _, def := range item.Children()[1:] {
				decl, err := convertTokenDef(def.(*chisel.ParseNode))
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if item.Type == mTok {
					g.Tokens = append(g.Tokens, decl)
				} else {
					g.Skips = append(g.Skips, decl)
				}
			}
		case mConstruct:
			name, _ := chisel.AsToken(item.Child(0))
			body, err := convertExpr(item.Child(2))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			g.Constructs = append(g.Constructs, &Construct{
				Name: name.Text(),
				Body: body,
				Pos:  name.Span().Start,
			})
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return g, nil
}

func blockContents(n chisel.Node) string {
	text := n.Text()
	return text[1 : len(text)-1]
}

func convertTokenDef(n *chisel.ParseNode) (*TokenDecl, *Error) {
	decl := &TokenDecl{Kind: Bare}
	for _, child := range n.Children() {
		t, _ := chisel.AsToken(child)
		switch t.Type {
		case tInt:
			prec, err := strconv.Atoi(t.Text())
			if err != nil {
				return nil, errorf(t.Span().Start, "bad precedence `%s`", t.Text())
			}
			decl.Precedence = prec
		case tIdent:
			decl.Name = t.Text()
			decl.Pos = t.Span().Start
		case tString:
			lit, err := unquoteLiteral(t.Text())
			if err != nil {
				return nil, errorf(t.Span().Start, "bad literal %s: %s", t.Text(), err)
			}
			decl.Kind = Literal
			decl.Literal = lit
		case tRegex:
			text := t.Text()
			decl.Kind = Pattern
			decl.Pattern = unescapeSlashes(text[1 : len(text)-1])
		}
	}
	return decl, nil
}

func convertExpr(n chisel.Node) (Expr, *Error) {
	if t, ok := chisel.AsToken(n); ok {
		switch t.Type {
		case tIdent:
			return &Ref{Name: t.Text(), Pos: t.Span().Start}, nil
		case tString:
			lit, err := unquoteLiteral(t.Text())
			if err != nil {
				return nil, errorf(t.Span().Start, "bad literal %s: %s", t.Text(), err)
			}
			if lit == "" {
				return nil, errorf(t.Span().Start, "empty literal")
			}
			return &Lit{Text: lit, Pos: t.Span().Start}, nil
		}
		return nil, errorf(t.Span().Start, "unexpected `%s`", t.Text())
	}

	pn, _ := chisel.AsParseNode(n)
	switch pn.Type {
	case mChoice:
		var alts []Expr
		for _, child := range pn.Children() {
			if t, ok := chisel.AsToken(child); ok && t.Type == tOr {
				continue
			}
			alt, err := convertExpr(child)
			if err != nil {
				return nil, err
			}
			if c, ok := alt.(*Choice); ok {
				alts = append(alts, c.Alts...)
			} else {
				alts = append(alts, alt)
			}
		}
		if len(alts) == 1 {
			return alts[0], nil
		}
		return &Choice{Alts: alts}, nil

	case mSequence:
		var items []Expr
		for _, child := range pn.Children() {
			item, err := convertExpr(child)
			if err != nil {
				return nil, err
			}
			if s, ok := item.(*Sequence); ok {
				items = append(items, s.Items...)
			} else {
				items = append(items, item)
			}
		}
		if len(items) == 1 {
			return items[0], nil
		}
		return &Sequence{Items: items}, nil

	case mPostfix:
		inner, err := convertExpr(pn.Child(0))
		if err != nil || pn.Len() == 1 {
			return inner, err
		}
		switch pn.Child(1).Text() {
		case "*":
			return &Repeat{Body: inner}, nil
		case "+":
			return &Repeat{Body: inner, Min: 1}, nil
		default:
			return &Optional{Body: inner}, nil
		}

	case mGroup:
		return convertExpr(pn.Child(1))
	}
	return nil, errorf(pn.Span().Start, "unexpected %s", metaConstructNames[pn.Type])
}

// unquoteLiteral accepts Go style double quoted strings, and the same
// with single quotes
func unquoteLiteral(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' {
		return strconv.Unquote(s)
	}
	var q strings.Builder
	q.WriteByte('"')
	body := s[1 : len(s)-1]
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body):
			if body[i+1] != '\'' {
				q.WriteByte(c)
			}
			q.WriteByte(body[i+1])
			i++
		case c == '"':
			q.WriteString(`\"`)
		default:
			q.WriteByte(c)
		}
	}
	q.WriteByte('"')
	return strconv.Unquote(q.String())
}
