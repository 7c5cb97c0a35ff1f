// Package pipeline runs the playground stages (reset, parse, transpile,
// compile, execute, extract) against the editor source, isolating and
// reporting failures at the stage where they occur.
package pipeline

import (
	"context"
	"errors"
	"log"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/ports"
	"github.com/livetemplate/cssplay/internal/registry"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/store"
	"github.com/livetemplate/cssplay/internal/transpiler"
)

// errNotTranspiled is reported when the compiled view is asked for before
// any source transpiled successfully.
var errNotTranspiled = errors.New("no transpiled code to run")

// Persistence is the best-effort key-value port the last good source is
// saved through.
type Persistence interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Renderer is the active view, invoked after each run.
type Renderer interface {
	Mode() cssplay.ViewMode
	Render(ctx context.Context) bool
}

// State holds the artifacts of the latest run.
type State struct {
	Source        string
	AST           *transpiler.Program
	Transpiled    string
	HasTranspiled bool
	CSS           string
	HasCSS        bool
	LastError     *cssplay.StageError
}

// Result is returned by Run.
type Result struct {
	State  State
	Output string
	OK     bool
	Err    *cssplay.StageError
}

// Config wires an Orchestrator. Nil fields get working defaults.
type Config struct {
	Transpiler *transpiler.Transpiler
	Registry   *registry.Registry
	Sandbox    *sandbox.Sandbox
	Cache      *cache.ArtifactCache
	Store      Persistence
	Surface    *ports.Surface
	Debug      bool
}

// Orchestrator owns the pipeline state. It is not safe for concurrent use;
// the owning session serializes runs.
type Orchestrator struct {
	tr       *transpiler.Transpiler
	reg      *registry.Registry
	box      *sandbox.Sandbox
	cache    *cache.ArtifactCache
	store    Persistence
	surface  *ports.Surface
	renderer Renderer
	debug    bool

	opts   cssplay.Options
	state  State
	cssKey string // cache key of state.CSS
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		reg:     cfg.Registry,
		tr:      cfg.Transpiler,
		box:     cfg.Sandbox,
		cache:   cfg.Cache,
		store:   cfg.Store,
		surface: cfg.Surface,
		debug:   cfg.Debug,
	}
	if o.reg == nil {
		o.reg = registry.New()
	}
	if o.tr == nil {
		o.tr = transpiler.New(o.reg)
	}
	if o.box == nil {
		o.box = sandbox.New()
	}
	if o.store == nil {
		o.store = store.NewAdapter(store.Noop{}, "")
	}
	if o.surface == nil {
		o.surface = ports.NewSurface()
	}
	return o
}

// SetRenderer installs the view rendered after each run.
func (o *Orchestrator) SetRenderer(r Renderer) { o.renderer = r }

// State returns a copy of the current artifacts.
func (o *Orchestrator) State() State { return o.state }

// Surface returns the output surface errors are reported to.
func (o *Orchestrator) Surface() *ports.Surface { return o.surface }

// Transpiler returns the transpiler the orchestrator drives.
func (o *Orchestrator) Transpiler() *transpiler.Transpiler { return o.tr }

// Options returns the transpile options used by the next run.
func (o *Orchestrator) Options() cssplay.Options { return o.opts }

// SetMinified switches both generated code and extracted CSS between
// pretty and minified output. It takes effect on the next run.
func (o *Orchestrator) SetMinified(on bool) {
	o.opts.Minified = on
	o.tr.SetMinify(on)
}

// Run executes every stage against source, stopping at the first failure.
// On full success the source is persisted and the active view rendered.
func (o *Orchestrator) Run(ctx context.Context, source string) Result {
	o.state.Source = source

	// Reset
	o.tr.Reset()
	o.reg.ClearAll()

	// Parse
	ast, err := o.tr.AST(source)
	if err != nil {
		o.state.AST = nil
		o.dropTranspiled()
		// A parse failure supersedes whatever a later stage reported before.
		o.surface.ClearError()
		return o.result(o.fail(cssplay.StageAST, err))
	}
	o.state.AST = ast

	// Transpile
	code, err := o.tr.Transpile(source, o.opts)
	if err != nil {
		o.dropTranspiled()
		se := o.fail(cssplay.StageTranspile, err)
		o.renderPartial(ctx)
		return o.result(se)
	}
	o.state.Transpiled = code
	o.state.HasTranspiled = true
	o.surface.ClearError()

	// Compile, execute, extract
	if _, ok := o.Materialize(ctx); !ok {
		o.renderPartial(ctx)
		return o.result(o.state.LastError)
	}

	o.surface.ClearError()
	o.store.Set(cssplay.SourceKey, source)
	if o.renderer != nil {
		o.renderer.Render(ctx)
	}
	return o.result(nil)
}

// Materialize compiles and executes the current transpiled code and
// extracts the registered CSS. Each sub-stage reports its own failure and
// clears the banner on success. Results are reused while the code and the
// minify setting are unchanged.
func (o *Orchestrator) Materialize(ctx context.Context) (string, bool) {
	if !o.state.HasTranspiled {
		if o.state.LastError != nil {
			o.surface.ReportError(o.state.LastError)
			return "", false
		}
		o.fail(cssplay.StageCompile, errNotTranspiled)
		return "", false
	}

	key := cache.Key(o.state.Transpiled, o.reg.Minified())
	if o.state.HasCSS && o.cssKey == key {
		return o.state.CSS, true
	}
	if o.cache != nil {
		if css, ok := o.cache.Get(key); ok {
			o.setCSS(key, css)
			return css, true
		}
	}

	o.reg.ClearAll()
	o.state.HasCSS = false

	unit, err := o.box.Compile("playground.js", o.state.Transpiled)
	if err != nil {
		o.fail(cssplay.StageCompile, err)
		return "", false
	}
	o.surface.ClearError()

	trace, err := unit.Execute(ctx, o.reg)
	if err != nil {
		o.fail(cssplay.StageExecute, err)
		return "", false
	}
	o.surface.ClearError()

	css, err := o.reg.Collect()
	if err != nil {
		o.fail(cssplay.StageExtract, err)
		return "", false
	}
	o.surface.ClearError()

	// Output that depends on the clock or Math.random is not shared.
	if o.cache != nil && !trace.Nondeterministic {
		o.cache.Set(key, css)
	}
	o.setCSS(key, css)
	return css, true
}

func (o *Orchestrator) setCSS(key, css string) {
	o.state.CSS = css
	o.state.HasCSS = true
	o.state.LastError = nil
	o.cssKey = key
}

func (o *Orchestrator) dropTranspiled() {
	o.state.Transpiled = ""
	o.state.HasTranspiled = false
	o.state.CSS = ""
	o.state.HasCSS = false
	o.cssKey = ""
}

func (o *Orchestrator) fail(stage cssplay.Stage, err error) *cssplay.StageError {
	se := cssplay.NewStageError(stage, err)
	o.state.LastError = se
	o.state.HasCSS = false
	o.surface.ReportError(se)
	if o.debug {
		log.Printf("[Pipeline] %s stage failed: %v", stage, err)
	}
	return se
}

// renderPartial renders the active alternate view after a failed run when
// the artifact it shows survived. The compiled view keeps its last output.
func (o *Orchestrator) renderPartial(ctx context.Context) {
	if o.renderer == nil {
		return
	}
	switch o.renderer.Mode() {
	case cssplay.ViewAST:
		if o.state.AST != nil {
			o.renderer.Render(ctx)
		}
	case cssplay.ViewJS:
		if o.state.HasTranspiled {
			o.renderer.Render(ctx)
		}
	}
}

func (o *Orchestrator) result(se *cssplay.StageError) Result {
	if se == nil {
		o.state.LastError = nil
	}
	return Result{
		State:  o.state,
		Output: o.surface.Output.Value(),
		OK:     se == nil,
		Err:    se,
	}
}
