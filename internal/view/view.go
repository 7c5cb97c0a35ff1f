// Package view selects which pipeline artifact the output pane shows.
package view

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/pipeline"
	"github.com/livetemplate/cssplay/internal/ports"
	"github.com/livetemplate/cssplay/internal/transpiler"
)

// Target is what renderers read from: the latest pipeline artifacts and the
// surface they print to.
type Target interface {
	State() pipeline.State
	Materialize(ctx context.Context) (string, bool)
	Surface() *ports.Surface
}

// Selector holds the active view mode and renders it.
type Selector struct {
	mu     sync.RWMutex
	mode   cssplay.ViewMode
	target Target
}

// New creates a selector showing compiled CSS.
func New(target Target) *Selector {
	return &Selector{mode: cssplay.ViewCompiled, target: target}
}

// Mode returns the active view.
func (s *Selector) Mode() cssplay.ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Select switches the active view. Unknown modes fall back to compiled.
func (s *Selector) Select(mode cssplay.ViewMode) {
	if m, ok := cssplay.ParseViewMode(string(mode)); ok {
		mode = m
	} else {
		mode = cssplay.ViewCompiled
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// Render writes the active view to the target's surface and reports
// whether it succeeded.
func (s *Selector) Render(ctx context.Context) bool {
	switch s.Mode() {
	case cssplay.ViewAST:
		return renderAST(s.target)
	case cssplay.ViewJS:
		return renderJS(s.target)
	default:
		return renderCompiled(ctx, s.target)
	}
}

func renderCompiled(ctx context.Context, t Target) bool {
	css, ok := t.Materialize(ctx)
	if !ok {
		return false
	}
	t.Surface().Print(css, cssplay.EmptyCSSPlaceholder)
	return true
}

func renderAST(t Target) bool {
	text, err := FormatAST(t.State().AST)
	if err != nil {
		t.Surface().ReportError(cssplay.NewStageError(cssplay.StageAST, err))
		return false
	}
	t.Surface().Print(text, "")
	return true
}

func renderJS(t Target) bool {
	st := t.State()
	t.Surface().Print(st.Transpiled, "")
	return true
}

// FormatAST dumps prog as indented JSON. A nil program yields "".
func FormatAST(prog *transpiler.Program) (string, error) {
	if prog == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(prog, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
