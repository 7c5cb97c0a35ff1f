package toggle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/cssplay/internal/ports"
	"github.com/livetemplate/cssplay/internal/store"
)

type call struct {
	label  string
	active bool
}

func record(calls *[]call, label string) func(bool) {
	return func(v bool) { *calls = append(*calls, call{label, v}) }
}

func newGroup() (*Group, *store.Adapter) {
	a := store.NewAdapter(store.NewMemory(), "")
	return NewGroup(a, "cssx-"), a
}

func TestRegisterRendersAndRestores(t *testing.T) {
	g, a := newGroup()
	a.Set("cssx-View JS", "true")

	var calls []call
	var astLabel, jsLabel ports.Label
	ast := g.Register(&astLabel, "View AST", true, record(&calls, "ast"))
	js := g.Register(&jsLabel, "View JS", true, record(&calls, "js"))

	assert.Equal(t, "cssx-View AST", ast.Key)
	assert.False(t, ast.Active())
	assert.True(t, js.Active())
	assert.Equal(t, "✘ View AST", astLabel.Text())
	assert.Equal(t, "✔ View JS", jsLabel.Text())
	assert.Equal(t, []call{{"js", true}}, calls, "only the restored active toggle fires")
}

func TestRegisterRestoresOneExclusive(t *testing.T) {
	g, a := newGroup()
	a.Set("cssx-View AST", "true")
	a.Set("cssx-View JS", "true")
	a.Set("cssx-Minify", "true")

	var calls []call
	var jsLabel ports.Label
	ast := g.Register(nil, "View AST", true, record(&calls, "ast"))
	js := g.Register(&jsLabel, "View JS", true, record(&calls, "js"))
	minify := g.Register(nil, "Minify", false, record(&calls, "min"))

	assert.True(t, ast.Active())
	assert.False(t, js.Active(), "a second restored exclusive toggle stays off")
	assert.True(t, minify.Active())
	assert.Equal(t, "✘ View JS", jsLabel.Text())
	assert.Equal(t, []call{{"ast", true}, {"min", true}}, calls)

	v, _ := a.Get("cssx-View JS")
	assert.Equal(t, "false", v, "the stale state is corrected in the store")
}

func TestRegisterIgnoresNonTrueValues(t *testing.T) {
	g, a := newGroup()
	a.Set("cssx-Minify", "yes")

	m := g.Register(nil, "Minify", false, nil)
	assert.False(t, m.Active())
}

func TestClickExclusiveDeactivatesOthers(t *testing.T) {
	g, a := newGroup()
	var calls []call
	var astLabel, jsLabel, minLabel ports.Label
	ast := g.Register(&astLabel, "View AST", true, record(&calls, "ast"))
	js := g.Register(&jsLabel, "View JS", true, record(&calls, "js"))
	minify := g.Register(&minLabel, "Minify", false, record(&calls, "min"))

	require.NoError(t, g.Click("cssx-Minify"))
	require.NoError(t, g.Click("cssx-View AST"))
	calls = nil

	require.NoError(t, g.Click("cssx-View JS"))

	assert.Equal(t, []call{{"ast", false}, {"js", true}}, calls)
	assert.False(t, ast.Active())
	assert.True(t, js.Active())
	assert.True(t, minify.Active(), "independent toggles are untouched")

	v, _ := a.Get("cssx-View AST")
	assert.Equal(t, "false", v)
	v, _ = a.Get("cssx-View JS")
	assert.Equal(t, "true", v)
	v, _ = a.Get("cssx-Minify")
	assert.Equal(t, "true", v)

	assert.Equal(t, "✘ View AST", astLabel.Text())
	assert.Equal(t, "✔ View JS", jsLabel.Text())
}

func TestClickActiveExclusiveTurnsItOff(t *testing.T) {
	g, _ := newGroup()
	var calls []call
	g.Register(nil, "View AST", true, record(&calls, "ast"))
	g.Register(nil, "View JS", true, record(&calls, "js"))

	require.NoError(t, g.Click("cssx-View AST"))
	calls = nil
	require.NoError(t, g.Click("cssx-View AST"))

	assert.Equal(t, []call{{"js", false}, {"ast", false}}, calls)
	for _, m := range g.Toggles() {
		assert.False(t, m.Active(), m.Label)
	}
}

func TestClickIndependentDoesNotBroadcast(t *testing.T) {
	g, _ := newGroup()
	var calls []call
	g.Register(nil, "View AST", true, record(&calls, "ast"))
	g.Register(nil, "Minify", false, record(&calls, "min"))

	require.NoError(t, g.Click("cssx-Minify"))
	assert.Equal(t, []call{{"min", true}}, calls)
}

func TestClickUnknown(t *testing.T) {
	g, _ := newGroup()
	err := g.Click("cssx-nope")
	assert.True(t, errors.Is(err, ErrUnknownToggle))
}

func TestTogglesOrder(t *testing.T) {
	g, _ := newGroup()
	g.Register(nil, "View AST", true, nil)
	g.Register(nil, "View JS", true, nil)
	g.Register(nil, "Minify", false, nil)

	var labels []string
	for _, m := range g.Toggles() {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"View AST", "View JS", "Minify"}, labels)
}
