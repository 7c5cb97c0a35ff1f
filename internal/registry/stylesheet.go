package registry

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// Declaration is one property/value pair as produced by executed code. Value
// holds the exported runtime value: strings, numbers and booleans are valid,
// anything else fails materialization.
type Declaration struct {
	Property string
	Value    any
}

// ValueError is returned by CompileNow when a declaration cannot be turned
// into CSS text.
type ValueError struct {
	Selector string
	Property string
	Kind     string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %q in %q: %s", e.Property, e.Selector, e.Kind)
}

type itemKind int

const (
	itemRule itemKind = iota
	itemNested
	itemRaw
)

type item struct {
	kind     itemKind
	selector string
	decls    []Declaration
	nested   *Stylesheet
	raw      string
}

// Stylesheet is an ordered list of rules, raw statements and nested
// at-rule blocks.
type Stylesheet struct {
	ID      string
	Prelude string // at-rule prelude for nested stylesheets, empty at top level

	reg *Registry

	mu       sync.Mutex
	items    []item
	compiled bool
	text     string
}

// Add appends a rule. Declarations are validated when the stylesheet is
// compiled, not here.
func (s *Stylesheet) Add(selector string, decls []Declaration) *Stylesheet {
	s.mu.Lock()
	s.items = append(s.items, item{kind: itemRule, selector: selector, decls: decls})
	s.compiled = false
	s.mu.Unlock()

	s.reg.notify(s)
	return s
}

// Nested appends an at-rule block such as "@media (max-width: 600px)" and
// returns the stylesheet holding its contents.
func (s *Stylesheet) Nested(prelude string) *Stylesheet {
	child := &Stylesheet{ID: s.ID, Prelude: prelude, reg: s.reg}

	s.mu.Lock()
	s.items = append(s.items, item{kind: itemNested, nested: child})
	s.compiled = false
	s.mu.Unlock()

	s.reg.notify(s)
	return child
}

// Raw appends a statement emitted verbatim, such as an @import.
func (s *Stylesheet) Raw(text string) *Stylesheet {
	s.mu.Lock()
	s.items = append(s.items, item{kind: itemRaw, raw: text})
	s.compiled = false
	s.mu.Unlock()

	s.reg.notify(s)
	return s
}

// CompileNow materializes the stylesheet text synchronously.
func (s *Stylesheet) CompileNow() (*Stylesheet, error) {
	var b strings.Builder
	if err := s.render(&b, 0); err != nil {
		return nil, err
	}

	text := b.String()
	if s.reg.Minified() && text != "" {
		min, err := minifyCSS(text)
		if err != nil {
			return nil, fmt.Errorf("minify stylesheet %s: %w", s.ID, err)
		}
		text = min
	}

	s.mu.Lock()
	s.text = text
	s.compiled = true
	s.mu.Unlock()
	return s, nil
}

// Text returns the text produced by the last CompileNow.
func (s *Stylesheet) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Compiled reports whether Text reflects every mutation so far.
func (s *Stylesheet) Compiled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiled
}

func (s *Stylesheet) render(b *strings.Builder, depth int) error {
	s.mu.Lock()
	items := make([]item, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	indent := strings.Repeat("  ", depth)
	for _, it := range items {
		switch it.kind {
		case itemRaw:
			b.WriteString(indent + it.raw + "\n")
		case itemRule:
			if len(it.decls) == 0 {
				continue
			}
			b.WriteString(indent + it.selector + " {\n")
			for _, d := range it.decls {
				v, err := formatValue(it.selector, d)
				if err != nil {
					return err
				}
				b.WriteString(fmt.Sprintf("%s  %s: %s;\n", indent, d.Property, v))
			}
			b.WriteString(indent + "}\n")
		case itemNested:
			var inner strings.Builder
			if err := it.nested.render(&inner, depth+1); err != nil {
				return err
			}
			if inner.Len() == 0 {
				continue
			}
			b.WriteString(indent + it.nested.Prelude + " {\n")
			b.WriteString(inner.String())
			b.WriteString(indent + "}\n")
		}
	}
	return nil
}

func formatValue(selector string, d Declaration) (string, error) {
	switch v := d.Value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", &ValueError{Selector: selector, Property: d.Property, Kind: "not a finite number"}
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", &ValueError{Selector: selector, Property: d.Property, Kind: "null or undefined"}
	}
	return "", &ValueError{Selector: selector, Property: d.Property, Kind: describe(d.Value)}
}

func describe(v any) string {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func:
		return "function"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct, reflect.Pointer:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

var cssMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	return m
}()

func minifyCSS(text string) (string, error) {
	return cssMinifier.String("text/css", text)
}
