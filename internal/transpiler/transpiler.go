// Package transpiler turns CSSX source (JavaScript with embedded <style>
// blocks) into plain JavaScript that registers its rules with the style
// registry when executed.
package transpiler

import (
	"fmt"
	"sync"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/registry"
)

// TranspileError is a semantic error found after the source parsed
// successfully.
type TranspileError struct {
	Line    int
	Column  int
	Message string
}

func (e *TranspileError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

func errorAt(pos Pos, format string, args ...any) *TranspileError {
	return &TranspileError{Line: pos.Line, Column: pos.Column, Message: fmt.Sprintf(format, args...)}
}

// Transpiler carries the state shared between runs: the stylesheet id
// counter and the global minify / DOM change switches, which it mirrors to
// the registry it was created with.
type Transpiler struct {
	mu         sync.Mutex
	counter    int
	reg        *registry.Registry
	minify     bool
	domChanges bool
}

// New creates a transpiler bound to reg. reg may be nil for one-shot use.
func New(reg *registry.Registry) *Transpiler {
	return &Transpiler{reg: reg, domChanges: true}
}

// Reset clears the stylesheet id counter. Without it ids keep growing across
// runs and stylesheets from earlier runs are never replaced.
func (t *Transpiler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter = 0
}

// AST parses src. Errors are *cssplay.ParseError.
func (t *Transpiler) AST(src string) (*Program, error) {
	return Parse(src)
}

// Transpile generates JavaScript for src. Parse failures are returned as
// *cssplay.ParseError, semantic failures as *TranspileError.
func (t *Transpiler) Transpile(src string, opts cssplay.Options) (string, error) {
	prog, err := Parse(src)
	if err != nil {
		return "", err
	}
	g := &generator{minified: opts.Minified, nextID: t.nextID}
	return g.program(prog)
}

func (t *Transpiler) nextID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter++
	return fmt.Sprintf("_%d", t.counter)
}

// SetMinify toggles minified CSS output.
func (t *Transpiler) SetMinify(on bool) {
	t.mu.Lock()
	t.minify = on
	t.mu.Unlock()
	if t.reg != nil {
		t.reg.SetMinify(on)
	}
}

// Minified reports the current minify switch.
func (t *Transpiler) Minified() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minify
}

// SetDOMChanges toggles registry change notifications.
func (t *Transpiler) SetDOMChanges(on bool) {
	t.mu.Lock()
	t.domChanges = on
	t.mu.Unlock()
	if t.reg != nil {
		t.reg.SetDOMChanges(on)
	}
}

// DOMChanges reports the current DOM change switch.
func (t *Transpiler) DOMChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.domChanges
}
