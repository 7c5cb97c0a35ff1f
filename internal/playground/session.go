// Package playground wires the editor, pipeline, view selector and toggle
// group into one playground session, booted the way the browser page is.
package playground

import (
	"context"
	_ "embed"
	"sync"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/pipeline"
	"github.com/livetemplate/cssplay/internal/ports"
	"github.com/livetemplate/cssplay/internal/registry"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/store"
	"github.com/livetemplate/cssplay/internal/toggle"
	"github.com/livetemplate/cssplay/internal/transpiler"
	"github.com/livetemplate/cssplay/internal/view"
)

// DefaultSource is shown when nothing was persisted yet.
//
//go:embed default.cssx
var DefaultSource string

// Persistence is the per-client key-value port.
type Persistence interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Config configures a session.
type Config struct {
	Store         Persistence
	Sandbox       *sandbox.Sandbox
	Cache         *cache.ArtifactCache
	DefaultSource string
	Debug         bool
}

// Session is one running playground. All methods are safe for concurrent
// use; runs are serialized.
type Session struct {
	mu sync.Mutex

	editor   *ports.Buffer
	surface  *ports.Surface
	orch     *pipeline.Orchestrator
	view     *view.Selector
	toggles  *toggle.Group
	labels   map[string]*ports.Label
	store    Persistence
	fallback string
	booted   bool

	// ctx is the context of the operation currently holding mu.
	ctx context.Context
}

// New creates an unbooted session.
func New(cfg Config) *Session {
	if cfg.Store == nil {
		cfg.Store = store.NewAdapter(store.Noop{}, "")
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = DefaultSource
	}

	reg := registry.New()
	surface := ports.NewSurface()
	orch := pipeline.New(pipeline.Config{
		Transpiler: transpiler.New(reg),
		Registry:   reg,
		Sandbox:    cfg.Sandbox,
		Cache:      cfg.Cache,
		Store:      cfg.Store,
		Surface:    surface,
		Debug:      cfg.Debug,
	})
	sel := view.New(orch)
	orch.SetRenderer(sel)

	return &Session{
		editor:   ports.NewBuffer(),
		surface:  surface,
		orch:     orch,
		view:     sel,
		toggles:  toggle.NewGroup(cfg.Store, cssplay.StorageKeyPrefix),
		labels:   make(map[string]*ports.Label),
		store:    cfg.Store,
		fallback: cfg.DefaultSource,
		ctx:      context.Background(),
	}
}

// Boot runs the page initialization once: global transpiler switches,
// editor wiring with the persisted or default source, then the toggles.
// Later calls only return the current snapshot.
func (s *Session) Boot(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.boot()
	return s.snapshot()
}

func (s *Session) boot() {
	if s.booted {
		return
	}
	s.booted = true

	s.orch.Transpiler().SetDOMChanges(false)
	s.orch.SetMinified(false)

	s.editor.OnChange(func(src string) {
		s.orch.Run(s.ctx, src)
	})
	src, ok := s.store.Get(cssplay.SourceKey)
	if !ok || src == "" {
		src = s.fallback
	}
	s.editor.SetValue(src)

	s.register(cssplay.LabelViewAST, true, s.viewCallback(cssplay.ViewAST))
	s.register(cssplay.LabelViewJS, true, s.viewCallback(cssplay.ViewJS))
	s.register(cssplay.LabelMinify, false, func(active bool) {
		s.orch.SetMinified(active)
		s.orch.Run(s.ctx, s.editor.Value())
	})
}

func (s *Session) register(label string, exclusive bool, fn func(bool)) {
	l := &ports.Label{}
	s.labels[label] = l
	s.toggles.Register(l, label, exclusive, fn)
}

func (s *Session) viewCallback(mode cssplay.ViewMode) func(bool) {
	return func(active bool) {
		switch {
		case active:
			s.view.Select(mode)
		case s.view.Mode() == mode:
			s.view.Select(cssplay.ViewCompiled)
		default:
			return
		}
		s.view.Render(s.ctx)
	}
}

// Edit replaces the editor content, which runs the pipeline. An unbooted
// session is booted first.
func (s *Session) Edit(ctx context.Context, source string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.boot()
	s.editor.SetValue(source)
	return s.snapshot()
}

// Click flips the toggle identified by key.
func (s *Session) Click(ctx context.Context, key string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.boot()
	err := s.toggles.Click(key)
	return s.snapshot(), err
}

// Snapshot returns the current UI state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// State returns the latest pipeline artifacts.
func (s *Session) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch.State()
}
