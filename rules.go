package chisel

import (
	"fmt"
	"regexp"
	"sort"
)

// MatchFn inspects the input ahead of the cursor and returns how many
// bytes of it form a lexeme.  Zero means no match.
type MatchFn func(in *Input) int

// TokenRule describes one lexical class of a grammar
type TokenRule struct {
	Type TokenType
	Name string

	// Precedence orders rules within a TokenSet: lower values are
	// tried first.  Rules with the same precedence keep the order in
	// which they were added.
	Precedence int

	Match MatchFn
}

// Literal creates a rule matching exactly text
func Literal(typ TokenType, name, text string) TokenRule {
	return TokenRule{
		Type: typ,
		Name: name,
		Match: func(in *Input) int {
			if text != "" && in.HasPrefix(text) {
				return len(text)
			}
			return 0
		},
	}
}

// Pattern creates a rule matching the regular expression expr, which
// is anchored at the cursor
func Pattern(typ TokenType, name, expr string) (TokenRule, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return TokenRule{}, fmt.Errorf("token %s: %w", name, err)
	}
	return TokenRule{
		Type: typ,
		Name: name,
		Match: func(in *Input) int {
			loc := re.FindReaderIndex(in.Reader())
			if loc == nil {
				return 0
			}
			return loc[1]
		},
	}, nil
}

// MustPattern is like Pattern but panics if expr doesn't compile
func MustPattern(typ TokenType, name, expr string) TokenRule {
	r, err := Pattern(typ, name, expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Func creates a rule out of a hand written matcher
func Func(typ TokenType, name string, fn MatchFn) TokenRule {
	return TokenRule{Type: typ, Name: name, Match: fn}
}

// WithPrecedence returns a copy of r with the precedence changed
func (r TokenRule) WithPrecedence(p int) TokenRule {
	r.Precedence = p
	return r
}

// TokenSet holds the lexical classes of a grammar: the rules that
// produce tokens and the rules whose matches are skipped between
// tokens.
type TokenSet struct {
	rules []TokenRule
	skip  []TokenRule
	names map[TokenType]string

	// LongestMatch makes the lexer pick the rule with the longest
	// match instead of the first one that matches
	LongestMatch bool
}

func NewTokenSet() *TokenSet {
	return &TokenSet{names: map[TokenType]string{}}
}

// Add appends rules to the set, keeping it sorted by precedence
func (s *TokenSet) Add(rules ...TokenRule) *TokenSet {
	for _, r := range rules {
		s.checkRule(r)
		s.rules = append(s.rules, r)
		s.names[r.Type] = r.Name
	}
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].Precedence < s.rules[j].Precedence
	})
	return s
}

// Skip appends rules whose matches are discarded between tokens
func (s *TokenSet) Skip(rules ...TokenRule) *TokenSet {
	for _, r := range rules {
		s.checkRule(r)
		s.skip = append(s.skip, r)
		s.names[r.Type] = r.Name
	}
	return s
}

// Declare names a token type that no rule produces.  Such tokens can
// only enter the stream through Lexer.CacheFront/CacheBack.
func (s *TokenSet) Declare(typ TokenType, name string) *TokenSet {
	s.names[typ] = name
	return s
}

func (s *TokenSet) checkRule(r TokenRule) {
	if r.Type == InvalidToken {
		panic(fmt.Sprintf("token rule `%s` uses the reserved type 0", r.Name))
	}
	if r.Match == nil {
		panic(fmt.Sprintf("token rule `%s` has no matcher", r.Name))
	}
}

// Rules returns the token producing rules in the order the lexer
// tries them
func (s *TokenSet) Rules() []TokenRule { return s.rules }

// Name returns the display name of typ
func (s *TokenSet) Name(typ TokenType) string {
	if name, ok := s.names[typ]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", typ)
}

// match runs the rules against the input and returns the winner and
// the length of its match
func (s *TokenSet) match(in *Input, longest bool) (TokenRule, int) {
	var (
		best    TokenRule
		bestLen int
	)
	for _, r := range s.rules {
		n := r.Match(in)
		if n <= 0 {
			continue
		}
		if !longest {
			return r, n
		}
		if n > bestLen {
			best, bestLen = r, n
		}
	}
	return best, bestLen
}

// skipAll consumes skip matches until none of the skip rules match
func (s *TokenSet) skipAll(in *Input) {
	for {
		progress := false
		for _, r := range s.skip {
			if n := r.Match(in); n > 0 {
				in.consume(n)
				progress = true
			}
		}
		if !progress {
			return
		}
	}
}
