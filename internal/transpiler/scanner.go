package transpiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/livetemplate/cssplay"
)

// scanner holds all mutable state for a single pass over src.
type scanner struct {
	raw  string
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // current 1-based column
}

func newScanner(src string) *scanner {
	return &scanner{raw: src, src: []rune(src), line: 1, col: 1}
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

// peek returns the rune at the current position without advancing.
func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (s *scanner) peek2() rune {
	if s.pos+1 >= len(s.src) {
		return 0
	}
	return s.src[s.pos+1]
}

// advance consumes one rune and returns it.
func (s *scanner) advance() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *scanner) advanceN(n int) {
	for i := 0; i < n; i++ {
		s.advance()
	}
}

// hasPrefix reports whether the unread input starts with lit.
func (s *scanner) hasPrefix(lit string) bool {
	i := s.pos
	for _, r := range lit {
		if i >= len(s.src) || s.src[i] != r {
			return false
		}
		i++
	}
	return true
}

func (s *scanner) here() Pos { return Pos{Line: s.line, Column: s.col} }

func (s *scanner) slice(from int) string { return string(s.src[from:s.pos]) }

// errorf builds a positioned ParseError carrying the full source for context.
func (s *scanner) errorf(at Pos, format string, args ...any) *cssplay.ParseError {
	return cssplay.NewParseError(at.Line, fmt.Sprintf(format, args...)).
		WithColumn(at.Column).
		WithSource(s.raw)
}

// skipLineComment discards everything up to end-of-line. The opening "//"
// must already have been consumed.
func (s *scanner) skipLineComment() {
	for !s.eof() && s.peek() != '\n' {
		s.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (s *scanner) skipBlockComment(start Pos) error {
	for !s.eof() {
		if s.peek() == '*' && s.peek2() == '/' {
			s.advanceN(2)
			return nil
		}
		s.advance()
	}
	return s.errorf(start, "unterminated comment (opened on line %d)", start.Line)
}

// skipString consumes a quoted string. The opening quote must still be at
// peek().
func (s *scanner) skipString() error {
	start := s.here()
	quote := s.advance()
	for !s.eof() {
		switch r := s.advance(); r {
		case '\\':
			s.advance()
		case quote:
			return nil
		case '\n':
			return s.errorf(start, "unterminated string literal")
		}
	}
	return s.errorf(start, "unterminated string literal")
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}

// scanWord consumes an identifier, keyword or number.
func (s *scanner) scanWord() string {
	start := s.pos
	for !s.eof() && isIdentRune(s.peek()) {
		s.advance()
	}
	return s.slice(start)
}

// skipRegex consumes a regular expression literal and its flags. The opening
// '/' must still be at peek().
func (s *scanner) skipRegex() error {
	start := s.here()
	s.advance()
	inClass := false
	for !s.eof() {
		switch r := s.advance(); {
		case r == '\\':
			if s.peek() == '\n' {
				return s.errorf(start, "unterminated regular expression literal")
			}
			s.advance()
		case r == '\n':
			return s.errorf(start, "unterminated regular expression literal")
		case r == '[':
			inClass = true
		case r == ']':
			inClass = false
		case r == '/' && !inClass:
			for !s.eof() && isIdentRune(s.peek()) {
				s.advance()
			}
			return nil
		}
	}
	return s.errorf(start, "unterminated regular expression literal")
}

// regexKeywords are the keywords after which '/' starts a regular expression.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// hostContext remembers the last significant token of host JavaScript, which
// decides whether '/' is division or the start of a regular expression.
type hostContext struct {
	prev rune   // last significant rune, 0 at start of input
	word string // set when the last token was an identifier or keyword
}

func (c *hostContext) note(r rune) { c.prev, c.word = r, "" }

func (c *hostContext) noteWord(w string) { c.prev, c.word = 'a', w }

func (c *hostContext) regexAllowed() bool {
	if c.word != "" {
		return regexKeywords[c.word]
	}
	return c.prev == 0 || strings.ContainsRune("(,=:[!&|?{};+-*%<>~^", c.prev)
}
