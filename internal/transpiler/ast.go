package transpiler

import (
	"fmt"
	"strings"
)

// Node is implemented by every AST node. Nodes marshal to JSON with a "type"
// discriminator so the AST view can dump them as-is.
type Node interface {
	node()
	Position() Pos
}

// Pos is a 1-based source position.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Pos) Position() Pos { return p }

// Part is a fragment of a Value: literal text or an interpolated
// JavaScript expression.
//
//	margin: 0 `gap`px;
//	        ^^ ^^^ ^^  Text("0 "), Expr("gap"), Text("px")
type Part struct {
	Expr bool   `json:"expr,omitempty"`
	Text string `json:"text"`
}

// Value is a sequence of parts making up a selector, property or value.
type Value []Part

// Static reports whether the value contains no interpolation.
func (v Value) Static() bool {
	for _, p := range v {
		if p.Expr {
			return false
		}
	}
	return true
}

// String renders the value with interpolations in backticks.
func (v Value) String() string {
	var b strings.Builder
	for _, p := range v {
		if p.Expr {
			b.WriteString("`" + p.Text + "`")
		} else {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Program is the root of a parsed source.
type Program struct {
	Type string `json:"type"`
	Body []Node `json:"body"`
}

// StyleBlocks returns the number of top-level style blocks.
func (p *Program) StyleBlocks() int {
	n := 0
	for _, node := range p.Body {
		if _, ok := node.(*StyleBlock); ok {
			n++
		}
	}
	return n
}

// Code is a verbatim chunk of JavaScript between style blocks.
type Code struct {
	Type string `json:"type"`
	Pos
	Text string `json:"text"`
}

func (*Code) node() {}

// StyleBlock is a <style> ... </style> expression.
type StyleBlock struct {
	Type string `json:"type"`
	Pos
	Body []Node `json:"body"`
}

func (*StyleBlock) node() {}

// Rule is a selector with a declaration block, possibly holding nested rules.
type Rule struct {
	Type string `json:"type"`
	Pos
	Selector Value  `json:"selector"`
	Body     []Node `json:"body"`
}

func (*Rule) node() {}

// Declaration is a property: value pair.
type Declaration struct {
	Type string `json:"type"`
	Pos
	Property Value `json:"property"`
	Value    Value `json:"value"`
}

func (*Declaration) node() {}

// AtRule is an @-rule, either a block (@media, @keyframes) or a statement
// (@import).
type AtRule struct {
	Type string `json:"type"`
	Pos
	Name    string `json:"name"`
	Prelude Value  `json:"prelude"`
	Block   bool   `json:"block"`
	Body    []Node `json:"body,omitempty"`
}

func (*AtRule) node() {}

// Header returns "@name prelude".
func (a *AtRule) Header() string {
	if len(a.Prelude) == 0 {
		return "@" + a.Name
	}
	return fmt.Sprintf("@%s %s", a.Name, a.Prelude)
}

func newProgram() *Program { return &Program{Type: "Program"} }

func newCode(pos Pos, text string) *Code { return &Code{Type: "Code", Pos: pos, Text: text} }

func newStyleBlock(pos Pos) *StyleBlock { return &StyleBlock{Type: "StyleBlock", Pos: pos} }

func newRule(pos Pos, sel Value) *Rule { return &Rule{Type: "Rule", Pos: pos, Selector: sel} }

func newDeclaration(pos Pos, prop, val Value) *Declaration {
	return &Declaration{Type: "Declaration", Pos: pos, Property: prop, Value: val}
}

func newAtRule(pos Pos, name string, prelude Value) *AtRule {
	return &AtRule{Type: "AtRule", Pos: pos, Name: name, Prelude: prelude}
}
