package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylesheetText(t *testing.T) {
	r := New()
	s := r.Stylesheet("_1")
	s.Add("body", []Declaration{{"color", "red"}, {"margin", int64(0)}})
	media := s.Nested("@media (max-width: 600px)")
	media.Add("body", []Declaration{{"color", "blue"}})
	s.Raw("@import url(reset.css);")

	compiled, err := s.CompileNow()
	require.NoError(t, err)

	want := "body {\n  color: red;\n  margin: 0;\n}\n" +
		"@media (max-width: 600px) {\n  body {\n    color: blue;\n  }\n}\n" +
		"@import url(reset.css);\n"
	assert.Equal(t, want, compiled.Text())
	assert.True(t, s.Compiled())
}

func TestStylesheetSkipsEmptyRules(t *testing.T) {
	r := New()
	s := r.Stylesheet("_1")
	s.Add("div", nil)
	s.Nested("@media print")

	compiled, err := s.CompileNow()
	require.NoError(t, err)
	assert.Empty(t, compiled.Text())
}

func TestStylesheetValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
		kind  string
	}{
		{"nil", nil, "null or undefined"},
		{"object", map[string]any{"a": 1}, "object"},
		{"array", []any{1}, "array"},
		{"function", func() {}, "function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			s := r.Stylesheet("_1")
			s.Add(".a", []Declaration{{"color", tt.value}})

			_, err := s.CompileNow()
			var ve *ValueError
			require.True(t, errors.As(err, &ve), "expected ValueError, got %v", err)
			assert.Equal(t, "color", ve.Property)
			assert.Equal(t, ".a", ve.Selector)
			assert.Equal(t, tt.kind, ve.Kind)
		})
	}
}

func TestStylesheetNumbers(t *testing.T) {
	r := New()
	s := r.Stylesheet("_1")
	s.Add(".a", []Declaration{{"opacity", 0.5}, {"z-index", 10}})

	compiled, err := s.CompileNow()
	require.NoError(t, err)
	assert.Contains(t, compiled.Text(), "opacity: 0.5;")
	assert.Contains(t, compiled.Text(), "z-index: 10;")
}

func TestStylesheetBooleans(t *testing.T) {
	r := New()
	s := r.Stylesheet("_1")
	s.Add(".a", []Declaration{{"visible", true}, {"hidden", false}})

	compiled, err := s.CompileNow()
	require.NoError(t, err)
	assert.Equal(t, ".a {\n  visible: true;\n  hidden: false;\n}\n", compiled.Text())
}

func TestRegistryMinify(t *testing.T) {
	r := New()
	r.SetMinify(true)
	s := r.Stylesheet("_1")
	s.Add("body", []Declaration{{"color", "red"}, {"margin", "0px"}})

	compiled, err := s.CompileNow()
	require.NoError(t, err)
	text := compiled.Text()
	assert.NotContains(t, text, "\n")
	assert.True(t, strings.HasPrefix(text, "body{"), "got %q", text)
	assert.Contains(t, text, "color:red")
}

func TestRegistryOrderAndClear(t *testing.T) {
	r := New()
	r.Stylesheet("b").Add(".b", []Declaration{{"color", "blue"}})
	r.Stylesheet("a").Add(".a", []Declaration{{"color", "red"}})
	// Re-requesting an id returns the existing sheet.
	r.Stylesheet("b").Add(".b2", []Declaration{{"color", "green"}})

	require.Equal(t, 2, r.Len())
	ids := []string{r.List()[0].ID, r.List()[1].ID}
	assert.Equal(t, []string{"b", "a"}, ids)

	css, err := r.Collect()
	require.NoError(t, err)
	assert.Less(t, strings.Index(css, ".b2"), strings.Index(css, ".a"))

	r.ClearAll()
	assert.Equal(t, 0, r.Len())
	css, err = r.Collect()
	require.NoError(t, err)
	assert.Empty(t, css)
}

func TestRegistryDOMChanges(t *testing.T) {
	r := New()
	var changes int
	r.OnChange(func(*Stylesheet) { changes++ })

	s := r.Stylesheet("_1")
	s.Add(".a", nil)
	assert.Equal(t, 1, changes)

	r.SetDOMChanges(false)
	s.Add(".b", nil)
	s.Raw("@charset \"utf-8\";")
	assert.Equal(t, 1, changes)
	assert.False(t, r.DOMChanges())
}

func TestNestSelector(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"body", "a", "body a"},
		{"body", "&:hover", "body:hover"},
		{"ul, ol", "li", "ul li, ol li"},
		{".a", "& + &", ".a + .a"},
		{"", ".x", ".x"},
		{".x", "", ".x"},
		{":is(h1, h2)", "span", ":is(h1, h2) span"},
		{"a[title='x,y']", "b", "a[title='x,y'] b"},
	}
	for _, tt := range tests {
		t.Run(tt.parent+"|"+tt.child, func(t *testing.T) {
			assert.Equal(t, tt.want, NestSelector(tt.parent, tt.child))
		})
	}
}
