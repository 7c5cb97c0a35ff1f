package transpiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/livetemplate/cssplay/internal/registry"
)

// generator emits JavaScript for a Program. Host code is copied verbatim and
// each style block becomes a call into the runtime:
//
//	cssx.stylesheet("_1", function (_s0) {
//	  _s0.add("body", {
//	    "color": "red"
//	  });
//	})
type generator struct {
	b        strings.Builder
	minified bool
	indent   int
	nextID   func() string
}

// selector is a resolved rule selector: static text, or a JS expression
// when interpolation is involved.
type selector struct {
	static bool
	text   string
	js     string
}

func (s selector) expr() string {
	if s.static {
		return jsString(s.text)
	}
	return s.js
}

func (g *generator) program(prog *Program) (string, error) {
	for _, n := range prog.Body {
		switch n := n.(type) {
		case *Code:
			g.b.WriteString(n.Text)
		case *StyleBlock:
			if err := g.styleBlock(n); err != nil {
				return "", err
			}
		}
	}
	return g.b.String(), nil
}

func (g *generator) styleBlock(sb *StyleBlock) error {
	id := g.nextID()
	g.open(fmt.Sprintf("cssx.stylesheet(%s%s%s {", jsString(id), g.sep(", ", ","), g.fn("_s0")))
	if err := g.body(sb.Body, "_s0", 0, nil); err != nil {
		return err
	}
	g.close("})")
	return nil
}

// body emits the declarations of the enclosing selector followed by the
// nested rules and at-rules, in source order.
func (g *generator) body(nodes []Node, sheet string, depth int, sel *selector) error {
	var decls []*Declaration
	for _, n := range nodes {
		if d, ok := n.(*Declaration); ok {
			decls = append(decls, d)
		}
	}
	if len(decls) > 0 {
		if sel == nil {
			d := decls[0]
			return errorAt(d.Pos, "declaration %q must be inside a rule", d.Property.String())
		}
		if err := g.add(sheet, sel.expr(), decls); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		switch n := n.(type) {
		case *Rule:
			if len(n.Selector) == 0 {
				return errorAt(n.Pos, "rule without a selector")
			}
			if err := checkInterpolation(n.Selector, n.Pos); err != nil {
				return err
			}
			child := g.combine(sel, n.Selector)
			if err := g.body(n.Body, sheet, depth, &child); err != nil {
				return err
			}
		case *AtRule:
			if err := g.atRule(n, sheet, depth, sel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *generator) atRule(a *AtRule, sheet string, depth int, sel *selector) error {
	if err := checkInterpolation(a.Prelude, a.Pos); err != nil {
		return err
	}
	header := g.valueExpr(headerValue(a))
	name := strings.ToLower(a.Name)

	if !a.Block {
		if sel != nil || depth > 0 {
			return errorAt(a.Pos, "@%s must be at the top level of a style block", a.Name)
		}
		stmt := normalize(append(headerValue(a), Part{Text: ";"}))
		g.stmt(fmt.Sprintf("%s.raw(%s);", sheet, g.valueExpr(stmt)))
		return nil
	}

	switch {
	case strings.HasSuffix(name, "keyframes"):
		if sel != nil {
			return errorAt(a.Pos, "@%s cannot be nested inside a rule", a.Name)
		}
		child := fmt.Sprintf("_s%d", depth+1)
		g.open(fmt.Sprintf("%s.nested(%s%s%s {", sheet, header, g.sep(", ", ","), g.fn(child)))
		for _, n := range a.Body {
			frame, ok := n.(*Rule)
			if !ok {
				return errorAt(n.Position(), "@%s may only contain keyframe selectors", a.Name)
			}
			if err := checkInterpolation(frame.Selector, frame.Pos); err != nil {
				return err
			}
			decls, err := onlyDeclarations(frame.Body, "keyframe "+frame.Selector.String())
			if err != nil {
				return err
			}
			if len(decls) == 0 {
				continue
			}
			if err := g.add(child, g.valueExpr(frame.Selector), decls); err != nil {
				return err
			}
		}
		g.close("});")
		g.nl()
	case name == "font-face" || name == "page":
		if sel != nil {
			return errorAt(a.Pos, "@%s cannot be nested inside a rule", a.Name)
		}
		decls, err := onlyDeclarations(a.Body, "@"+a.Name)
		if err != nil {
			return err
		}
		if len(decls) > 0 {
			return g.add(sheet, header, decls)
		}
	default:
		child := fmt.Sprintf("_s%d", depth+1)
		g.open(fmt.Sprintf("%s.nested(%s%s%s {", sheet, header, g.sep(", ", ","), g.fn(child)))
		if err := g.body(a.Body, child, depth+1, sel); err != nil {
			return err
		}
		g.close("});")
		g.nl()
	}
	return nil
}

func onlyDeclarations(nodes []Node, owner string) ([]*Declaration, error) {
	var decls []*Declaration
	for _, n := range nodes {
		d, ok := n.(*Declaration)
		if !ok {
			return nil, errorAt(n.Position(), "%s cannot contain nested rules", owner)
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (g *generator) add(sheet, sel string, decls []*Declaration) error {
	for _, d := range decls {
		if len(d.Property) == 0 {
			return errorAt(d.Pos, "missing property name")
		}
		if len(d.Value) == 0 {
			return errorAt(d.Pos, "missing value for property %q", d.Property.String())
		}
		if err := checkInterpolation(d.Property, d.Pos); err != nil {
			return err
		}
		if err := checkInterpolation(d.Value, d.Pos); err != nil {
			return err
		}
	}

	g.open(fmt.Sprintf("%s.add(%s%s{", sheet, sel, g.sep(", ", ",")))
	for i, d := range decls {
		key := jsString(d.Property.String())
		if !d.Property.Static() {
			key = "[" + g.valueExpr(d.Property) + "]"
		}
		line := key + g.sep(": ", ":") + g.valueExpr(d.Value)
		if i < len(decls)-1 {
			line += ","
		}
		g.stmt(line)
	}
	g.close("});")
	g.nl()
	return nil
}

func (g *generator) combine(parent *selector, child Value) selector {
	switch {
	case parent == nil && child.Static():
		return selector{static: true, text: child.String()}
	case parent == nil:
		return selector{js: g.valueExpr(child)}
	case parent.static && child.Static():
		return selector{static: true, text: registry.NestSelector(parent.text, child.String())}
	}
	return selector{js: fmt.Sprintf("cssx.nest(%s%s%s)", parent.expr(), g.sep(", ", ","), g.valueExpr(child))}
}

// valueExpr renders a Value as a JavaScript expression. A single
// interpolation keeps its runtime type.
func (g *generator) valueExpr(v Value) string {
	if len(v) == 0 {
		return `""`
	}
	parts := make([]string, 0, len(v)+1)
	if len(v) > 1 && v[0].Expr && v[1].Expr {
		parts = append(parts, `""`)
	}
	for _, p := range v {
		if p.Expr {
			parts = append(parts, "("+strings.TrimSpace(p.Text)+")")
		} else {
			parts = append(parts, jsString(p.Text))
		}
	}
	return strings.Join(parts, g.sep(" + ", "+"))
}

func headerValue(a *AtRule) Value {
	v := Value{{Text: "@" + a.Name}}
	if len(a.Prelude) > 0 {
		v = append(v, Part{Text: " "})
		v = append(v, a.Prelude...)
	}
	return normalize(v)
}

func checkInterpolation(v Value, pos Pos) error {
	for _, p := range v {
		if p.Expr && strings.TrimSpace(p.Text) == "" {
			return errorAt(pos, "empty interpolation in %q", v.String())
		}
	}
	return nil
}

func (g *generator) fn(param string) string {
	return g.sep("function ("+param+")", "function("+param+")")
}

func (g *generator) sep(pretty, minified string) string {
	if g.minified {
		return minified
	}
	return pretty
}

func (g *generator) pad() {
	if !g.minified {
		g.b.WriteString(strings.Repeat("  ", g.indent))
	}
}

func (g *generator) nl() {
	if !g.minified {
		g.b.WriteByte('\n')
	}
}

// open writes a line ending in an opening brace and indents what follows.
func (g *generator) open(s string) {
	g.pad()
	g.b.WriteString(s)
	g.nl()
	g.indent++
}

func (g *generator) stmt(s string) {
	g.pad()
	g.b.WriteString(s)
	g.nl()
}

func (g *generator) close(s string) {
	g.indent--
	g.pad()
	g.b.WriteString(s)
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
