package chisel

import (
	"fmt"
	"io"
	"sort"
)

// Config holds typed settings by dotted key
type Config map[string]*setting

// NewConfig creates a new configuration object primed with all the
// default values expected by the lexer, the parser, the printer and
// the grammar loaders.
func NewConfig() *Config {
	m := make(Config)
	// pick the longest match among token rules instead of the first
	m.SetBool("lexer.longest_match", false)
	// how deep construction routines may nest, 0 means unlimited
	m.SetInt("parser.max_depth", 4096)
	// Parse fails if tokens are left after the root construct
	m.SetBool("parser.require_eof", true)
	// colorize tree dumps
	m.SetBool("printer.color", false)
	// show spans in tree dumps
	m.SetBool("printer.spans", true)
	// EBNF grammars get a whitespace skip rule
	m.SetBool("grammar.implicit_whitespace", true)
	// package clause of generated parsers
	m.SetString("gen.package", "parser")
	return &m
}

// Debug writes every setting, one per line, sorted by key
func (c *Config) Debug(w io.Writer) {
	keys := make([]string, 0, len(*c))
	width := 0
	for k := range *c {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "Configuration")
	for _, k := range keys {
		fmt.Fprintf(w, "%-*s : %s\n", width, k, (*c)[k])
	}
}

type settingKind int

const (
	boolSetting settingKind = iota + 1
	intSetting
	stringSetting
)

func (k settingKind) String() string {
	switch k {
	case boolSetting:
		return "bool"
	case intSetting:
		return "int"
	case stringSetting:
		return "string"
	}
	return "undefined"
}

type setting struct {
	kind  settingKind
	value any
}

func (s *setting) String() string {
	return fmt.Sprintf("%v (%s)", s.value, s.kind)
}

// set stores v under key.  A key keeps the kind it was first given.
func (c *Config) set(key string, kind settingKind, v any) {
	if s, ok := (*c)[key]; ok {
		if s.kind != kind {
			panic(fmt.Sprintf("setting `%s` is %s, not %s", key, s.kind, kind))
		}
		s.value = v
		return
	}
	(*c)[key] = &setting{kind: kind, value: v}
}

func lookup[T any](c *Config, key string, kind settingKind) T {
	s, ok := (*c)[key]
	if !ok {
		panic(fmt.Sprintf("no %s setting named `%s`", kind, key))
	}
	if s.kind != kind {
		panic(fmt.Sprintf("setting `%s` is %s, not %s", key, s.kind, kind))
	}
	return s.value.(T)
}

func (c *Config) SetBool(key string, v bool)     { c.set(key, boolSetting, v) }
func (c *Config) SetInt(key string, v int)       { c.set(key, intSetting, v) }
func (c *Config) SetString(key string, v string) { c.set(key, stringSetting, v) }

func (c *Config) GetBool(key string) bool     { return lookup[bool](c, key, boolSetting) }
func (c *Config) GetInt(key string) int       { return lookup[int](c, key, intSetting) }
func (c *Config) GetString(key string) string { return lookup[string](c, key, stringSetting) }
