package transpiler

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	styleOpen  = "<style>"
	styleClose = "</style>"
)

// parser walks the JavaScript host text, checking bracket balance, and
// switches to the style grammar inside <style> blocks:
//
//	block       = item* "</style>"
//	item        = atRule | rule | declaration | ";"
//	rule        = prelude "{" item* "}"
//	declaration = prelude ":" prelude (";" | "}" | "</style>")
//	atRule      = "@" name prelude ("{" item* "}" | ";")
//	prelude     = (text | string | comment | "`" expr "`")*
type parser struct {
	*scanner
}

// Parse builds the AST of a CSSX source.
func Parse(src string) (*Program, error) {
	p := &parser{scanner: newScanner(src)}
	return p.parseProgram()
}

type bracket struct {
	open rune
	at   Pos
}

func closerOf(r rune) rune {
	switch r {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func (p *parser) parseProgram() (*Program, error) {
	prog := newProgram()
	var stack []bracket

	chunkStart, chunkPos := p.pos, p.here()
	flush := func() {
		if p.pos > chunkStart {
			prog.Body = append(prog.Body, newCode(chunkPos, p.slice(chunkStart)))
		}
	}

	var host hostContext
	for !p.eof() {
		r := p.peek()
		switch {
		case r == '/' && p.peek2() == '/':
			p.advanceN(2)
			p.skipLineComment()
		case r == '/' && p.peek2() == '*':
			at := p.here()
			p.advanceN(2)
			if err := p.skipBlockComment(at); err != nil {
				return nil, err
			}
		case r == '/' && host.regexAllowed():
			if err := p.skipRegex(); err != nil {
				return nil, err
			}
			host.note('"')
		case r == '"' || r == '\'':
			if err := p.skipString(); err != nil {
				return nil, err
			}
			host.note(r)
		case r == '`':
			if err := p.skipTemplate(); err != nil {
				return nil, err
			}
			host.note(r)
		case p.hasPrefix(styleOpen):
			flush()
			block, err := p.parseStyleBlock()
			if err != nil {
				return nil, err
			}
			prog.Body = append(prog.Body, block)
			chunkStart, chunkPos = p.pos, p.here()
			host.note(')')
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, bracket{open: r, at: p.here()})
			p.advance()
			host.note(r)
		case r == ')' || r == ']' || r == '}':
			at := p.here()
			if len(stack) == 0 {
				return nil, p.errorf(at, "unexpected '%c'", r).
					WithHint("remove it or add the matching opening bracket")
			}
			top := stack[len(stack)-1]
			if want := closerOf(top.open); want != r {
				return nil, p.errorf(at, "unexpected '%c': expected '%c'", r, want).
					WithRelated(fmt.Sprintf("'%c' opened at line %d, column %d", top.open, top.at.Line, top.at.Column))
			}
			stack = stack[:len(stack)-1]
			p.advance()
			host.note(r)
		case isIdentRune(r):
			host.noteWord(p.scanWord())
		default:
			if !unicode.IsSpace(r) {
				host.note(r)
			}
			p.advance()
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, p.errorf(top.at, "unclosed '%c'", top.open).
			WithHint("add a matching '" + string(closerOf(top.open)) + "'")
	}
	flush()
	return prog, nil
}

// skipTemplate consumes a template literal including its substitutions. The
// opening backtick must still be at peek().
func (p *parser) skipTemplate() error {
	start := p.here()
	p.advance()
	for !p.eof() {
		r := p.peek()
		switch {
		case r == '\\':
			p.advanceN(2)
		case r == '`':
			p.advance()
			return nil
		case r == '$' && p.peek2() == '{':
			p.advanceN(2)
			if err := p.skipSubstitution(); err != nil {
				return err
			}
		default:
			p.advance()
		}
	}
	return p.errorf(start, "unterminated template literal")
}

// skipSubstitution consumes the JavaScript inside "${ ... }" up to and
// including the closing brace.
func (p *parser) skipSubstitution() error {
	start := p.here()
	depth := 0
	var host hostContext
	for !p.eof() {
		r := p.peek()
		switch {
		case r == '"' || r == '\'':
			if err := p.skipString(); err != nil {
				return err
			}
			host.note(r)
		case r == '`':
			if err := p.skipTemplate(); err != nil {
				return err
			}
			host.note(r)
		case r == '/' && p.peek2() == '*':
			at := p.here()
			p.advanceN(2)
			if err := p.skipBlockComment(at); err != nil {
				return err
			}
		case r == '/' && p.peek2() == '/':
			p.advanceN(2)
			p.skipLineComment()
		case r == '/' && host.regexAllowed():
			if err := p.skipRegex(); err != nil {
				return err
			}
			host.note('"')
		case r == '{':
			depth++
			p.advance()
			host.note(r)
		case r == '}':
			p.advance()
			if depth == 0 {
				return nil
			}
			depth--
			host.note(r)
		case isIdentRune(r):
			host.noteWord(p.scanWord())
		default:
			if !unicode.IsSpace(r) {
				host.note(r)
			}
			p.advance()
		}
	}
	return p.errorf(start, "unterminated template substitution")
}

func (p *parser) parseStyleBlock() (*StyleBlock, error) {
	open := p.here()
	p.advanceN(len(styleOpen))

	block := newStyleBlock(open)
	body, err := p.parseBody(true, "", open)
	if err != nil {
		return nil, err
	}
	block.Body = body
	return block, nil
}

// parseBody parses style items until "</style>" (top) or the "}" closing the
// block named owner.
func (p *parser) parseBody(top bool, owner string, open Pos) ([]Node, error) {
	var body []Node
	for {
		if err := p.skipStyleSpace(); err != nil {
			return nil, err
		}
		at := p.here()

		switch {
		case p.eof():
			if top {
				return nil, p.errorf(open, "unterminated <style> block").
					WithHint("close the block with </style>")
			}
			return nil, p.errorf(open, "unterminated block %q (opened on line %d)", owner, open.Line).
				WithHint("add a closing }")
		case p.hasPrefix(styleClose):
			if !top {
				return nil, p.errorf(at, "unexpected </style>: block %q opened on line %d is not closed", owner, open.Line).
					WithHint("add a closing } before </style>")
			}
			p.advanceN(len(styleClose))
			return body, nil
		case p.peek() == '}':
			if top {
				return nil, p.errorf(at, "unexpected '}' in style block")
			}
			p.advance()
			return body, nil
		case p.peek() == ';':
			p.advance()
		case p.peek() == '@':
			node, err := p.parseAtRule()
			if err != nil {
				return nil, err
			}
			if node != nil {
				body = append(body, node)
			}
		default:
			node, err := p.parseRuleOrDeclaration()
			if err != nil {
				return nil, err
			}
			if node != nil {
				body = append(body, node)
			}
		}
	}
}

// skipStyleSpace skips whitespace and /* */ comments between style items.
func (p *parser) skipStyleSpace() error {
	for !p.eof() {
		switch {
		case unicode.IsSpace(p.peek()):
			p.advance()
		case p.peek() == '/' && p.peek2() == '*':
			at := p.here()
			p.advanceN(2)
			if err := p.skipBlockComment(at); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parseRuleOrDeclaration() (Node, error) {
	at := p.here()
	pr, err := p.scanPrelude()
	if err != nil {
		return nil, err
	}

	switch pr.term {
	case termEOF:
		// parseBody reports the unterminated block.
		return nil, nil
	case termBrace:
		sel := normalize(pr.joined())
		rule := newRule(at, sel)
		body, err := p.parseBody(false, sel.String(), at)
		if err != nil {
			return nil, err
		}
		rule.Body = body
		return rule, nil
	}

	if !pr.colon {
		return nil, p.errorf(at, "expected ':' after %q", normalize(pr.before).String()).
			WithHint("declarations look like `property: value;`")
	}
	return newDeclaration(at, normalize(pr.before), normalize(pr.after)), nil
}

func (p *parser) parseAtRule() (Node, error) {
	at := p.here()
	p.advance() // @

	from := p.pos
	for !p.eof() {
		r := p.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			break
		}
		p.advance()
	}
	name := p.slice(from)
	if name == "" {
		return nil, p.errorf(at, "expected at-rule name after '@'")
	}

	pr, err := p.scanPrelude()
	if err != nil {
		return nil, err
	}
	rule := newAtRule(at, name, normalize(pr.joined()))

	switch pr.term {
	case termEOF:
		return nil, nil
	case termBrace:
		rule.Block = true
		body, err := p.parseBody(false, rule.Header(), at)
		if err != nil {
			return nil, err
		}
		rule.Body = body
	}
	return rule, nil
}

type terminator int

const (
	termEOF       terminator = iota
	termBrace                // "{" consumed
	termSemicolon            // ";" consumed
	termClose                // "}" left in place
	termStyleEnd             // "</style>" left in place
)

// prelude is the raw text of a selector, declaration or at-rule header,
// split at its first top-level colon.
type prelude struct {
	before Value
	after  Value
	colon  bool
	term   terminator
}

func (pr prelude) joined() Value {
	if !pr.colon {
		return pr.before
	}
	out := append(Value{}, pr.before...)
	out = append(out, Part{Text: ":"})
	return append(out, pr.after...)
}

func (p *parser) scanPrelude() (prelude, error) {
	var (
		pr    prelude
		text  strings.Builder
		depth int
	)
	cur := &pr.before
	flush := func() {
		if text.Len() > 0 {
			*cur = append(*cur, Part{Text: text.String()})
			text.Reset()
		}
	}

	for {
		if p.eof() {
			flush()
			pr.term = termEOF
			return pr, nil
		}

		r := p.peek()
		switch {
		case p.hasPrefix(styleClose):
			flush()
			pr.term = termStyleEnd
			return pr, nil
		case r == '/' && p.peek2() == '*':
			at := p.here()
			p.advanceN(2)
			if err := p.skipBlockComment(at); err != nil {
				return pr, err
			}
		case r == '"' || r == '\'':
			from := p.pos
			if err := p.skipString(); err != nil {
				return pr, err
			}
			text.WriteString(p.slice(from))
		case r == '`':
			at := p.here()
			p.advance()
			from := p.pos
			for !p.eof() && p.peek() != '`' {
				p.advance()
			}
			if p.eof() {
				return pr, p.errorf(at, "unterminated interpolation").
					WithHint("close the expression with a backtick")
			}
			expr := p.slice(from)
			p.advance()
			flush()
			*cur = append(*cur, Part{Expr: true, Text: expr})
		case r == '(' || r == '[':
			depth++
			text.WriteRune(p.advance())
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
			text.WriteRune(p.advance())
		case depth > 0:
			text.WriteRune(p.advance())
		case r == ':' && !pr.colon:
			flush()
			pr.colon = true
			cur = &pr.after
			p.advance()
		case r == '{':
			flush()
			p.advance()
			pr.term = termBrace
			return pr, nil
		case r == ';':
			flush()
			p.advance()
			pr.term = termSemicolon
			return pr, nil
		case r == '}':
			flush()
			pr.term = termClose
			return pr, nil
		default:
			text.WriteRune(p.advance())
		}
	}
}

// normalize collapses whitespace runs outside quotes to a single space, trims
// the ends and merges adjacent text parts.
func normalize(v Value) Value {
	var out Value
	for _, part := range v {
		if part.Expr {
			out = append(out, part)
			continue
		}
		text := collapseSpace(part.Text)
		if n := len(out); n > 0 && !out[n-1].Expr {
			out[n-1].Text = collapseSpace(out[n-1].Text + text)
			continue
		}
		out = append(out, Part{Text: text})
	}

	if len(out) > 0 && !out[0].Expr {
		out[0].Text = strings.TrimLeft(out[0].Text, " ")
	}
	if n := len(out); n > 0 && !out[n-1].Expr {
		out[n-1].Text = strings.TrimRight(out[n-1].Text, " ")
	}

	trimmed := out[:0]
	for _, part := range out {
		if part.Expr || part.Text != "" {
			trimmed = append(trimmed, part)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

func collapseSpace(s string) string {
	var (
		b     strings.Builder
		quote rune
		space bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			b.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		case r == '"' || r == '\'':
			quote = r
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}
