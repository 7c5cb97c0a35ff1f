// Package registry holds the style containers populated by executed CSSX
// code and materializes them into CSS text.
package registry

import (
	"sync"
)

// ChangeFunc is notified after a stylesheet is mutated while DOM changes are
// enabled.
type ChangeFunc func(*Stylesheet)

// Registry is the ordered set of stylesheets registered by one runtime.
type Registry struct {
	mu         sync.Mutex
	sheets     []*Stylesheet
	byID       map[string]*Stylesheet
	minify     bool
	domChanges bool
	onChange   ChangeFunc
}

// New creates an empty registry with DOM changes enabled, matching the
// runtime's defaults.
func New() *Registry {
	return &Registry{
		byID:       make(map[string]*Stylesheet),
		domChanges: true,
	}
}

// Stylesheet returns the stylesheet registered under id, creating and
// appending it when it does not exist yet.
func (r *Registry) Stylesheet(id string) *Stylesheet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byID[id]; ok {
		return s
	}
	s := &Stylesheet{ID: id, reg: r}
	r.byID[id] = s
	r.sheets = append(r.sheets, s)
	return s
}

// List returns the top-level stylesheets in registration order.
func (r *Registry) List() []*Stylesheet {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Stylesheet, len(r.sheets))
	copy(out, r.sheets)
	return out
}

// Len returns the number of registered stylesheets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sheets)
}

// ClearAll drops every registered stylesheet.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sheets = nil
	r.byID = make(map[string]*Stylesheet)
}

// SetMinify switches the text produced by CompileNow between pretty and
// minified CSS.
func (r *Registry) SetMinify(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minify = on
}

// Minified reports whether minified output is enabled.
func (r *Registry) Minified() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minify
}

// SetDOMChanges enables or disables change notifications.
func (r *Registry) SetDOMChanges(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domChanges = on
}

// DOMChanges reports whether change notifications are enabled.
func (r *Registry) DOMChanges() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.domChanges
}

// OnChange installs the change notification callback.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Registry) notify(s *Stylesheet) {
	r.mu.Lock()
	fn := r.onChange
	enabled := r.domChanges
	r.mu.Unlock()

	if enabled && fn != nil {
		fn(s)
	}
}

// Collect compiles every registered stylesheet and concatenates their text in
// registration order.
func (r *Registry) Collect() (string, error) {
	var out string
	for _, s := range r.List() {
		compiled, err := s.CompileNow()
		if err != nil {
			return "", err
		}
		out += compiled.Text()
	}
	return out, nil
}
