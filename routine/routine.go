// Package routine has the building blocks construction routines are
// written with, by hand or by the grammar package: ordered choice,
// repetitions and sequences over a chisel.Parser, all following its
// backtracking protocol.
package routine

import (
	"errors"
	"strings"

	"github.com/cactircool/chisel"
)

// ParserFn is anything that matches a piece of the token stream on
// top of a Parser
type ParserFn[T any] func(p *chisel.Parser) (T, error)

// ExpectFn returns a function wrapping an `Expect` call
func ExpectFn(typ chisel.TokenType) ParserFn[chisel.Token] {
	return func(p *chisel.Parser) (chisel.Token, error) { return p.Expect(typ) }
}

// ExpectTextFn returns a function wrapping an `ExpectText` call
func ExpectTextFn(typ chisel.TokenType, text string) ParserFn[chisel.Token] {
	return func(p *chisel.Parser) (chisel.Token, error) { return p.ExpectText(typ, text) }
}

// Choice walks through fns and returns the first to succeed.  The
// parser is restored before each attempt, and the whole choice fails
// if no alternatives match.  Thrown errors are returned right away.
func Choice[T any](p *chisel.Parser, fns ...ParserFn[T]) (T, error) {
	var (
		zero        T
		expected    []string
		expectedMap = map[string]struct{}{}
		start       = p.Mark()
	)
	for _, fn := range fns {
		item, err := fn(p)
		if err == nil {
			return item, nil
		}
		p.Restore(start)
		if !chisel.IsBacktrack(err) {
			return zero, err
		}
		var merr *chisel.MatchError
		if errors.As(err, &merr) {
			if _, ok := expectedMap[merr.Expected]; !ok {
				expectedMap[merr.Expected] = struct{}{}
				expected = append(expected, merr.Expected)
			}
		}
	}
	return zero, &chisel.MatchError{
		Expected: strings.Join(expected, " or "),
		Location: p.Lexer().Location(),
	}
}

// Optional is a syntax sugar for an ordered choice in which the
// second option matches nothing and returns the zero value
func Optional[T any](p *chisel.Parser, fn ParserFn[T]) (T, error) {
	return Choice(p, fn, func(p *chisel.Parser) (T, error) {
		var zero T
		return zero, nil
	})
}

// ZeroOrMore matches fn as many times as it can.  An iteration that
// doesn't consume any token ends the loop, which keeps nullable
// expressions from spinning forever.
func ZeroOrMore[T any](p *chisel.Parser, fn ParserFn[T]) ([]T, error) {
	var output []T
	for {
		state := p.Mark()
		item, err := fn(p)
		if err != nil {
			p.Restore(state)
			if !chisel.IsBacktrack(err) {
				return nil, err
			}
			break
		}
		if p.Consumed(state) == 0 {
			break
		}
		output = append(output, item)
	}
	return output, nil
}

// OneOrMore will match `fn` once and then pass fn to ZeroOrMore
func OneOrMore[T any](p *chisel.Parser, fn ParserFn[T]) ([]T, error) {
	head, err := fn(p)
	if err != nil {
		return nil, err
	}
	tail, err := ZeroOrMore(p, fn)
	if err != nil {
		return nil, err
	}
	return append([]T{head}, tail...), nil
}

// The functions below work on lists of nodes: what a grammar driven
// routine collects as the children of the node it builds.

// Seq matches every fn in order and concatenates their nodes
func Seq(p *chisel.Parser, fns ...ParserFn[[]chisel.Node]) ([]chisel.Node, error) {
	var nodes []chisel.Node
	for _, fn := range fns {
		items, err := fn(p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, items...)
	}
	return nodes, nil
}

// Repeat matches fn at least atLeast times, then as many times as it
// can, and flattens the nodes
func Repeat(p *chisel.Parser, atLeast int, fn ParserFn[[]chisel.Node]) ([]chisel.Node, error) {
	var nodes []chisel.Node
	for i := 0; i < atLeast; i++ {
		items, err := fn(p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, items...)
	}
	rest, err := ZeroOrMore(p, fn)
	if err != nil {
		return nil, err
	}
	for _, items := range rest {
		nodes = append(nodes, items...)
	}
	return nodes, nil
}

// ExpectNodes is ExpectFn for node lists
func ExpectNodes(typ chisel.TokenType) ParserFn[[]chisel.Node] {
	return func(p *chisel.Parser) ([]chisel.Node, error) {
		t, err := p.Expect(typ)
		if err != nil {
			return nil, err
		}
		return []chisel.Node{t}, nil
	}
}

// ConstructNodes runs fn through Parser.Construct and wraps its node
// in a list
func ConstructNodes(fn chisel.ConstructFn) ParserFn[[]chisel.Node] {
	return func(p *chisel.Parser) ([]chisel.Node, error) {
		n, err := p.Construct(fn)
		if err != nil {
			return nil, err
		}
		return []chisel.Node{n}, nil
	}
}
