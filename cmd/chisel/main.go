package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"

	"github.com/cactircool/chisel"
	"github.com/cactircool/chisel/grammar"
)

const defaultWritePermission = 0644 // -rw-r--r--

const usage = `usage: chisel [options] grammar [input]

Reads a grammar in the chisel format (or EBNF) and parses input with
it, printing the tree.  Without input and without -f, -t or -o, lines
typed on the standard input are parsed one at a time.

options:
  -e        read the grammar as EBNF (implied by the .ebnf extension)
  -s NAME   construct (or EBNF production) to start from
  -l        pick the longest match among token rules
  -d DEPTH  maximum construct nesting depth (0 = unlimited)
  -c        colorize the output
  -n        don't print spans in trees
  -f        print the grammar in the chisel format
  -t        print the symbol table
  -o FILE   generate a Go parser into FILE ("-" for stdout)
  -p NAME   package of the generated parser
  -v        print the configuration
  -h        show this help
`

var (
	errorColor = color.New(color.FgRed, color.Bold)
	noteColor  = color.New(color.FgHiBlack)
)

type args struct {
	ebnf        bool
	start       string
	format      bool
	symbols     bool
	output      string
	debugConfig bool

	grammarPath string
	inputPath   string
}

func readArgs(cfg *chisel.Config) *args {
	opts, optind, err := getopt.Getopts(os.Args, "es:ld:cnfto:p:vh")
	if err != nil {
		fatal("%s", err)
	}
	a := &args{}
	for _, opt := range opts {
		switch opt.Option {
		case 'e':
			a.ebnf = true
		case 's':
			a.start = opt.Value
		case 'l':
			cfg.SetBool("lexer.longest_match", true)
		case 'd':
			depth, err := strconv.Atoi(opt.Value)
			if err != nil || depth < 0 {
				fatal("invalid -d parameter `%s`", opt.Value)
			}
			cfg.SetInt("parser.max_depth", depth)
		case 'c':
			cfg.SetBool("printer.color", true)
		case 'n':
			cfg.SetBool("printer.spans", false)
		case 'f':
			a.format = true
		case 't':
			a.symbols = true
		case 'o':
			a.output = opt.Value
		case 'p':
			cfg.SetString("gen.package", opt.Value)
		case 'v':
			a.debugConfig = true
		case 'h':
			fmt.Print(usage)
			os.Exit(0)
		}
	}

	rest := os.Args[optind:]
	switch len(rest) {
	case 1:
		a.grammarPath = rest[0]
	case 2:
		a.grammarPath, a.inputPath = rest[0], rest[1]
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if filepath.Ext(a.grammarPath) == ".ebnf" {
		a.ebnf = true
	}
	return a
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("chisel: ")

	cfg := chisel.NewConfig()
	a := readArgs(cfg)
	if cfg.GetBool("printer.color") {
		errorColor.EnableColor()
		noteColor.EnableColor()
	}

	if a.debugConfig {
		cfg.Debug(os.Stdout)
	}

	g, err := loadGrammar(a, cfg)
	if err != nil {
		fatal("Can't read grammar: %s", err)
	}
	if a.start != "" {
		g.Start = a.start
	}

	if a.format {
		fmt.Print(grammar.Format(g))
	}

	if a.output != "" {
		if err := generate(g, a, cfg); err != nil {
			fatal("Can't emit code: %s", err)
		}
	}

	program, err := grammar.Compile(g)
	if err != nil {
		fatal("Invalid grammar:\n%s", err)
	}

	if a.symbols {
		printSymbols(os.Stdout, program, g)
	}

	switch {
	case a.inputPath != "":
		if ok := parseFile(program, a.inputPath, cfg); !ok {
			os.Exit(1)
		}
	case !a.format && !a.symbols && a.output == "":
		interactive(program, cfg)
	}
}

func loadGrammar(a *args, cfg *chisel.Config) (*grammar.Grammar, error) {
	f, err := os.Open(a.grammarPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !a.ebnf {
		return grammar.Read(f)
	}
	if a.start == "" {
		return nil, errors.New("EBNF grammars need a start production (-s)")
	}
	return grammar.FromEBNF(a.grammarPath, f, a.start, cfg)
}

func generate(g *grammar.Grammar, a *args, cfg *chisel.Config) error {
	src, err := grammar.GenGo(g, grammar.GenGoOptions{
		Package: cfg.GetString("gen.package"),
		Source:  filepath.Base(a.grammarPath),
	})
	if err != nil {
		return err
	}
	if a.output == "-" {
		_, err = os.Stdout.Write(src)
		return err
	}
	if err := os.WriteFile(a.output, src, defaultWritePermission); err != nil {
		return err
	}
	log.Printf("wrote %s (grammar fingerprint %016x)", a.output, grammar.Fingerprint(g))
	return nil
}

func printSymbols(w io.Writer, program *grammar.Program, g *grammar.Grammar) {
	fmt.Fprintf(w, "# fingerprint %016x, start %s\n", grammar.Fingerprint(g), g.StartConstruct().Name)
	for _, s := range program.Symbols() {
		fmt.Fprintf(w, "%-9s %4d  %s\n", s.Kind, s.Type, s.Name)
	}
}

func parseFile(program *grammar.Program, path string, cfg *chisel.Config) bool {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fatal("Can't open input file: %s", err)
		}
		defer f.Close()
		r = f
	}
	return parseAndPrint(program, r, cfg)
}

// interactive parses each line read from the standard input
func interactive(program *grammar.Program, cfg *chisel.Config) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if text == "" && err != nil {
			fmt.Println("")
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parseAndPrint(program, strings.NewReader(text), cfg)
	}
}

func parseAndPrint(program *grammar.Program, r io.Reader, cfg *chisel.Config) bool {
	n, err := program.Parse(r, cfg)
	if err != nil {
		printParsingError(err)
		return false
	}
	if err := chisel.NewPrinter(program, cfg).Fprint(os.Stdout, n); err != nil {
		fatal("Can't write output: %s", err)
	}
	return true
}

// printParsingError prints a parsing error, with what the parser was
// trying to match when there's more to say than the message
func printParsingError(err error) {
	fmt.Printf("%s %s\n", errorColor.Sprint("ERROR:"), err)
	var perr *chisel.ParsingError
	if errors.As(err, &perr) && perr.Got != nil {
		fmt.Println(noteColor.Sprintf(" at line %d, column %d", perr.Span.Start.Line, perr.Span.Start.Column))
	}
}

// fatal prints an error message and exits with code 1
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s ", errorColor.Sprint("error:"))
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, "\n")
	os.Exit(1)
}
