package chisel

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoToken is matched by every lexical failure: the end of the
	// input or a character no token rule recognizes
	ErrNoToken = errors.New("no token")

	// ErrNoMatch is matched by every syntactic failure that can be
	// recovered from by backtracking
	ErrNoMatch = errors.New("no match")

	// ErrDepthExceeded is thrown when construction routines nest
	// deeper than `parser.max_depth`
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")
)

// LexError is returned by the lexer when it can't produce a token
type LexError struct {
	Location Location
	EOF      bool
	Rune     rune
}

func (e *LexError) Error() string {
	if e.EOF {
		return fmt.Sprintf("unexpected end of input @ %s", e.Location)
	}
	return fmt.Sprintf("unexpected character %q @ %s", e.Rune, e.Location)
}

func (e *LexError) Is(target error) bool { return target == ErrNoToken }

// MatchError is the backtracking error a construction routine returns
// when its production doesn't match.  Alternatives catch it and try
// the next option.
type MatchError struct {
	Expected string
	Got      *Token
	Location Location
	Err      error
}

func (e *MatchError) Error() string {
	switch {
	case e.Got != nil:
		return fmt.Sprintf("Expected %s but got `%s` @ %s", e.Expected, e.Got.Text(), e.Got.Span())
	case e.Err != nil:
		return fmt.Sprintf("Expected %s: %s", e.Expected, e.Err)
	default:
		return fmt.Sprintf("Expected %s @ %s", e.Expected, e.Location)
	}
}

func (e *MatchError) Is(target error) bool { return target == ErrNoMatch }
func (e *MatchError) Unwrap() error        { return e.Err }

// ParsingError is the error a parse finishes with.  It either
// describes the farthest point the parser failed at or carries the
// error that aborted parsing.
type ParsingError struct {
	Message  string
	Expected []string
	Got      *Token
	Span     Span
	Err      error
}

func (e *ParsingError) Error() string {
	var s strings.Builder
	switch {
	case e.Message != "":
		s.WriteString(e.Message)
	case len(e.Expected) > 0:
		fmt.Fprintf(&s, "Expected %s", strings.Join(e.Expected, ", "))
		if e.Got != nil {
			fmt.Fprintf(&s, " but got `%s`", e.Got.Text())
		} else {
			s.WriteString(" but got EOF")
		}
	case e.Err != nil:
		s.WriteString(e.Err.Error())
	default:
		s.WriteString("parsing failed")
	}
	fmt.Fprintf(&s, " @ %s", e.Span)
	return s.String()
}

func (e *ParsingError) Unwrap() error { return e.Err }

// IsBacktrack reports whether err is a failure alternatives may
// recover from.  Anything else must abort the parse.
func IsBacktrack(err error) bool {
	if err == nil {
		return false
	}
	var perr *ParsingError
	if errors.As(err, &perr) {
		return false
	}
	return errors.Is(err, ErrNoMatch) || errors.Is(err, ErrNoToken)
}

func isthrown(err error) bool {
	return err != nil && !IsBacktrack(err)
}
