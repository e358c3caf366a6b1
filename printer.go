package chisel

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Namer gives display names to token and construct types
type Namer interface {
	TokenName(TokenType) string
	ConstructName(ConstructType) string
}

type numericNamer struct{}

func (numericNamer) TokenName(t TokenType) string         { return fmt.Sprintf("token(%d)", t) }
func (numericNamer) ConstructName(c ConstructType) string { return fmt.Sprintf("construct(%d)", c) }

const printerIndent = "    "

// Printer renders a tree as indented text, one line per token or
// interior node, children one level deeper than their parent.
type Printer struct {
	names Namer
	spans bool

	nameColor    *color.Color
	literalColor *color.Color
	spanColor    *color.Color
	errorColor   *color.Color
}

// NewPrinter creates a printer.  A nil names prints numeric types and
// a nil cfg means NewConfig().
func NewPrinter(names Namer, cfg *Config) *Printer {
	if names == nil {
		names = numericNamer{}
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	pr := &Printer{
		names:        names,
		spans:        cfg.GetBool("printer.spans"),
		nameColor:    color.New(color.FgCyan, color.Bold),
		literalColor: color.New(color.FgHiBlack),
		spanColor:    color.New(color.FgYellow),
		errorColor:   color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range []*color.Color{pr.nameColor, pr.literalColor, pr.spanColor, pr.errorColor} {
		if cfg.GetBool("printer.color") {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return pr
}

// Sprint returns the dump of n as a string
func (pr *Printer) Sprint(n Node) string {
	var s strings.Builder
	pr.visit(&s, n, 0)
	return s.String()
}

// Fprint writes the dump of n to w
func (pr *Printer) Fprint(w io.Writer, n Node) error {
	_, err := io.WriteString(w, pr.Sprint(n))
	return err
}

func (pr *Printer) visit(s *strings.Builder, n Node, depth int) {
	s.WriteString(strings.Repeat(printerIndent, depth))

	switch v := n.(type) {
	case Token:
		s.WriteString(pr.nameColor.Sprint(pr.names.TokenName(v.Type)))
		s.WriteString(" ")
		s.WriteString(pr.literalColor.Sprint(strconv.Quote(v.Text())))
		pr.writeSpan(s, v.Span())
		s.WriteString("\n")

	case *ParseNode:
		if v == nil {
			s.WriteString(pr.errorColor.Sprint("<failed>"))
			s.WriteString("\n")
			return
		}
		s.WriteString(pr.nameColor.Sprint(pr.names.ConstructName(v.Type)))
		pr.writeSpan(s, v.Span())
		s.WriteString("\n")
		for _, child := range v.Children() {
			pr.visit(s, child, depth+1)
		}

	default:
		s.WriteString(pr.errorColor.Sprint("<failed>"))
		s.WriteString("\n")
	}
}

func (pr *Printer) writeSpan(s *strings.Builder, span Span) {
	if !pr.spans {
		return
	}
	s.WriteString(" ")
	s.WriteString(pr.spanColor.Sprintf("(%s)", span))
}
