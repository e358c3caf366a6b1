package chisel

import (
	"fmt"
	"strings"
)

// ConstructType identifies a grammar nonterminal.  Zero is reserved.
type ConstructType int

// Node is a value in the syntax tree: either a Token (leaf) or a
// *ParseNode (interior).  The set of implementations is closed, use a
// type switch or AsToken/AsParseNode to get to the payload.
//
// A nil Node is what a construction routine returns alongside an
// error when its production didn't match.
type Node interface {
	Span() Span
	Text() string
	String() string
	isNode()
}

// Failed reports whether n is the failure value
func Failed(n Node) bool {
	if n == nil {
		return true
	}
	pn, ok := n.(*ParseNode)
	return ok && pn == nil
}

func HoldsToken(n Node) bool {
	_, ok := n.(Token)
	return ok
}

func HoldsNode(n Node) bool {
	pn, ok := n.(*ParseNode)
	return ok && pn != nil
}

func AsToken(n Node) (Token, bool) {
	t, ok := n.(Token)
	return t, ok
}

func AsParseNode(n Node) (*ParseNode, bool) {
	pn, ok := n.(*ParseNode)
	return pn, ok && pn != nil
}

// ParseNode is an interior node of the tree.  It exclusively owns its
// children: a node attached to one parent must not be attached to
// another one (Clone it first).
type ParseNode struct {
	Type     ConstructType
	children []Node
}

func NewParseNode(typ ConstructType, children ...Node) *ParseNode {
	n := &ParseNode{Type: typ}
	for _, child := range children {
		n.Append(child)
	}
	return n
}

func (*ParseNode) isNode() {}

// Append attaches child as the last child of n.  Attaching nil or an
// ancestor of n is a programming error and panics.
func (n *ParseNode) Append(child Node) {
	if Failed(child) {
		panic("chisel: appending a failed node")
	}
	if pn, ok := child.(*ParseNode); ok && pn.contains(n) {
		panic("chisel: appending a node to its own subtree")
	}
	n.children = append(n.children, child)
}

// Detach removes and returns the children of n
func (n *ParseNode) Detach() []Node {
	children := n.children
	n.children = nil
	return children
}

func (n *ParseNode) Children() []Node { return n.children }
func (n *ParseNode) Len() int         { return len(n.children) }
func (n *ParseNode) Child(i int) Node { return n.children[i] }

func (n *ParseNode) contains(target *ParseNode) bool {
	if n == target {
		return true
	}
	for _, child := range n.children {
		if pn, ok := child.(*ParseNode); ok && pn.contains(target) {
			return true
		}
	}
	return false
}

// Span covers the first to the last token under n.  A node without
// tokens has an empty span.
func (n *ParseNode) Span() Span {
	var (
		span  Span
		found bool
	)
	for _, child := range n.children {
		if !hasToken(child) {
			continue
		}
		if found {
			span = span.Join(child.Span())
			continue
		}
		span, found = child.Span(), true
	}
	return span
}

func hasToken(n Node) bool {
	switch v := n.(type) {
	case Token:
		return true
	case *ParseNode:
		if v == nil {
			return false
		}
		for _, child := range v.children {
			if hasToken(child) {
				return true
			}
		}
	}
	return false
}

// Tokens returns the leaves under n in input order
func (n *ParseNode) Tokens() []Token {
	var out []Token
	Walk(n, func(child Node, _ int) bool {
		if t, ok := child.(Token); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Text concatenates the data of all the tokens under n
func (n *ParseNode) Text() string {
	var s strings.Builder
	for _, t := range n.Tokens() {
		s.Write(t.Data)
	}
	return s.String()
}

func (n *ParseNode) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "<%d [", n.Type)
	for i, child := range n.children {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(child.String())
	}
	fmt.Fprintf(&s, "] @ %s>", n.Span())
	return s.String()
}

// Clone returns a deep copy of n.  Nothing is shared between the
// result and n, token buffers included.
func Clone(n Node) Node {
	switch v := n.(type) {
	case Token:
		return v.Clone()
	case *ParseNode:
		if v == nil {
			return nil
		}
		out := &ParseNode{Type: v.Type, children: make([]Node, 0, len(v.children))}
		for _, child := range v.children {
			out.children = append(out.children, Clone(child))
		}
		return out
	default:
		return nil
	}
}

// Walk visits n and its descendants depth first, parents before
// children.  Returning false from fn skips the children of the node
// it was called with.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if Failed(n) || !fn(n, depth) {
		return
	}
	if pn, ok := n.(*ParseNode); ok {
		for _, child := range pn.children {
			walk(child, depth+1, fn)
		}
	}
}
