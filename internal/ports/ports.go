// Package ports defines the UI surface the playground core drives: the
// editor, the output pane with its status attribute, the message banner and
// the toggle indicators. The in-memory implementations here are what the
// server snapshots and streams to the browser.
package ports

import (
	"sync"

	"github.com/livetemplate/cssplay"
)

// Output status values.
const (
	StatusOK    = ""
	StatusError = "error"
)

// Indicator glyphs.
const (
	CheckMark = "✔"
	CrossMark = "✘"
)

// Editor is the source pane.
type Editor interface {
	Value() string
	// SetValue replaces the text and notifies change listeners.
	SetValue(string)
	OnChange(func(string))
}

// Output is the read-only result pane.
type Output interface {
	Value() string
	SetValue(string)
	Status() string
	SetStatus(string)
}

// Banner is the message area above the output.
type Banner interface {
	Show(text string)
	Hide()
	Text() string
	Visible() bool
}

// Indicator renders the state of one toggle control.
type Indicator interface {
	Render(label string, active bool)
}

// Buffer is an in-memory Editor.
type Buffer struct {
	mu        sync.Mutex
	value     string
	listeners []func(string)
}

// NewBuffer creates an empty editor buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// SetValue stores v and calls every listener synchronously, in registration
// order.
func (b *Buffer) SetValue(v string) {
	b.mu.Lock()
	b.value = v
	listeners := make([]func(string), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

func (b *Buffer) OnChange(fn func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Pane is an in-memory Output.
type Pane struct {
	mu     sync.Mutex
	value  string
	status string
}

// NewPane creates an empty output pane.
func NewPane() *Pane {
	return &Pane{}
}

func (p *Pane) Value() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *Pane) SetValue(v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}

func (p *Pane) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pane) SetStatus(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

// MessageBanner is an in-memory Banner.
type MessageBanner struct {
	mu      sync.Mutex
	text    string
	visible bool
}

// NewMessageBanner creates a hidden banner.
func NewMessageBanner() *MessageBanner {
	return &MessageBanner{}
}

func (m *MessageBanner) Show(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.visible = true
}

func (m *MessageBanner) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = ""
	m.visible = false
}

func (m *MessageBanner) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func (m *MessageBanner) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Label is an in-memory Indicator holding the rendered text.
type Label struct {
	mu   sync.Mutex
	text string
}

func (l *Label) Render(label string, active bool) {
	mark := CrossMark
	if active {
		mark = CheckMark
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text = mark + " " + label
}

// Text returns the last rendered text, e.g. "✔ View AST".
func (l *Label) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// Surface couples the output pane with the banner to report pipeline
// failures.
type Surface struct {
	Output Output
	Banner Banner
}

// NewSurface creates a surface over in-memory ports.
func NewSurface() *Surface {
	return &Surface{Output: NewPane(), Banner: NewMessageBanner()}
}

// ReportError flags the output as failed and shows the stage-prefixed
// message. The output content is left untouched.
func (s *Surface) ReportError(err *cssplay.StageError) {
	s.Output.SetStatus(StatusError)
	s.Banner.Show(err.Banner())
}

// ClearError resets the status flag and hides the banner.
func (s *Surface) ClearError() {
	s.Output.SetStatus(StatusOK)
	s.Banner.Hide()
}

// Print writes text, or fallback when text is empty.
func (s *Surface) Print(text, fallback string) {
	if text == "" {
		text = fallback
	}
	s.Output.SetValue(text)
}
