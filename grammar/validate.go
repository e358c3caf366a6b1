package grammar

import (
	"regexp"
	"strings"

	"github.com/cactircool/chisel"
)

// Validate checks that g describes a parser that can be built:
// unique names, references that resolve, a known start construct,
// token rules that compile, and no left recursion.  All the problems
// found are returned as an ErrorList.
func Validate(g *Grammar) error {
	var errs ErrorList

	if len(g.Constructs) == 0 {
		errs = append(errs, errorf(zeroPos, "grammar has no constructs"))
		return errs.err()
	}

	tokens := map[string]*TokenDecl{}
	skips := map[string]bool{}
	declare := func(t *TokenDecl, skip bool) {
		if prev, ok := tokens[t.Name]; ok {
			errs = append(errs, errorf(t.Pos, "token `%s` already declared @ %s", t.Name, prev.Pos))
			return
		}
		tokens[t.Name] = t
		skips[t.Name] = skip
		switch t.Kind {
		case Literal:
			if t.Literal == "" {
				errs = append(errs, errorf(t.Pos, "token `%s` has an empty literal", t.Name))
			}
		case Pattern:
			if _, err := regexp.Compile(t.Pattern); err != nil {
				errs = append(errs, errorf(t.Pos, "token `%s`: %s", t.Name, err))
			}
		case Bare:
			if skip {
				errs = append(errs, errorf(t.Pos, "skip token `%s` needs a literal or a pattern", t.Name))
			}
		}
	}
	for _, t := range g.Tokens {
		declare(t, false)
	}
	for _, t := range g.Skips {
		declare(t, true)
	}

	constructs := map[string]*Construct{}
	for _, c := range g.Constructs {
		if prev, ok := constructs[c.Name]; ok {
			errs = append(errs, errorf(c.Pos, "construct `%s` already defined @ %s", c.Name, prev.Pos))
			continue
		}
		if t, ok := tokens[c.Name]; ok {
			errs = append(errs, errorf(c.Pos, "construct `%s` clashes with the token declared @ %s", c.Name, t.Pos))
			continue
		}
		constructs[c.Name] = c
	}

	if g.Start != "" {
		if _, ok := constructs[g.Start]; !ok {
			errs = append(errs, errorf(zeroPos, "start construct `%s` is not defined", g.Start))
		}
	}

	for _, c := range g.Constructs {
		walkExpr(c.Body, func(e Expr) {
			ref, ok := e.(*Ref)
			if !ok {
				return
			}
			if _, ok := constructs[ref.Name]; ok {
				return
			}
			if _, ok := tokens[ref.Name]; !ok {
				errs = append(errs, errorf(ref.Pos, "undefined reference `%s`", ref.Name))
				return
			}
			if skips[ref.Name] {
				errs = append(errs, errorf(ref.Pos, "skip token `%s` can't be referenced", ref.Name))
			}
		})
	}

	// left recursion only makes sense to look for once references
	// resolve
	if len(errs) == 0 {
		errs = append(errs, leftRecursion(g, constructs)...)
	}
	return errs.err()
}

// problems about the grammar as a whole have no position
var zeroPos chisel.Location

func walkExpr(e Expr, fn func(Expr)) {
	fn(e)
	switch e := e.(type) {
	case *Sequence:
		for _, item := range e.Items {
			walkExpr(item, fn)
		}
	case *Choice:
		for _, alt := range e.Alts {
			walkExpr(alt, fn)
		}
	case *Repeat:
		walkExpr(e.Body, fn)
	case *Optional:
		walkExpr(e.Body, fn)
	}
}

// nullable computes which constructs can match without consuming any
// token, iterating until nothing changes
func nullable(g *Grammar) map[string]bool {
	out := map[string]bool{}
	var isNullable func(Expr) bool
	isNullable = func(e Expr) bool {
		switch e := e.(type) {
		case *Ref:
			return out[e.Name]
		case *Lit:
			return false
		case *Sequence:
			for _, item := range e.Items {
				if !isNullable(item) {
					return false
				}
			}
			return true
		case *Choice:
			for _, alt := range e.Alts {
				if isNullable(alt) {
					return true
				}
			}
			return false
		case *Repeat:
			return e.Min == 0 || isNullable(e.Body)
		case *Optional:
			return true
		}
		return false
	}
	for changed := true; changed; {
		changed = false
		for _, c := range g.Constructs {
			if !out[c.Name] && isNullable(c.Body) {
				out[c.Name] = true
				changed = true
			}
		}
	}
	return out
}

// leftCalls collects the constructs e may call before consuming any
// token, and reports whether e can match without consuming anything
func leftCalls(e Expr, constructs map[string]*Construct, null map[string]bool, out *[]*Ref) bool {
	switch e := e.(type) {
	case *Ref:
		if _, ok := constructs[e.Name]; ok {
			*out = append(*out, e)
			return null[e.Name]
		}
		return false
	case *Lit:
		return false
	case *Sequence:
		for _, item := range e.Items {
			if !leftCalls(item, constructs, null, out) {
				return false
			}
		}
		return true
	case *Choice:
		empty := false
		for _, alt := range e.Alts {
			if leftCalls(alt, constructs, null, out) {
				empty = true
			}
		}
		return empty
	case *Repeat:
		return leftCalls(e.Body, constructs, null, out) || e.Min == 0
	case *Optional:
		leftCalls(e.Body, constructs, null, out)
		return true
	}
	return false
}

func leftRecursion(g *Grammar, constructs map[string]*Construct) ErrorList {
	null := nullable(g)
	edges := map[string][]*Ref{}
	for _, c := range g.Constructs {
		var refs []*Ref
		leftCalls(c.Body, constructs, null, &refs)
		edges[c.Name] = refs
	}

	const (
		unvisited = iota
		visiting
		done
	)
	var (
		errs  ErrorList
		state = map[string]int{}
		path  []string
		visit func(name string)
	)
	visit = func(name string) {
		state[name] = visiting
		path = append(path, name)
		for _, ref := range edges[name] {
			switch state[ref.Name] {
			case visiting:
				i := len(path) - 1
				for path[i] != ref.Name {
					i--
				}
				cycle := append(append([]string{}, path[i:]...), ref.Name)
				errs = append(errs, errorf(ref.Pos, "left recursion: %s", strings.Join(cycle, " -> ")))
			case unvisited:
				visit(ref.Name)
			}
		}
		path = path[:len(path)-1]
		state[name] = done
	}
	for _, c := range g.Constructs {
		if state[c.Name] == unvisited {
			visit(c.Name)
		}
	}
	return errs
}
