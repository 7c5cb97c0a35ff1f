package playground

import "github.com/livetemplate/cssplay"

// Snapshot is the UI state sent to the browser after every action.
type Snapshot struct {
	Source  string           `json:"source"`
	Output  string           `json:"output"`
	Status  string           `json:"status"`
	Banner  BannerState      `json:"banner"`
	View    cssplay.ViewMode `json:"view"`
	Toggles []ToggleState    `json:"toggles"`
	Error   *ErrorInfo       `json:"error"`
}

// BannerState mirrors the message banner.
type BannerState struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

// ToggleState describes one toggle control.
type ToggleState struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	Text   string `json:"text"`
}

// ErrorInfo is the failure of the latest run, if any.
type ErrorInfo struct {
	Stage   cssplay.Stage `json:"stage"`
	Message string        `json:"message"`
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Source: s.editor.Value(),
		Output: s.surface.Output.Value(),
		Status: s.surface.Output.Status(),
		Banner: BannerState{
			Visible: s.surface.Banner.Visible(),
			Text:    s.surface.Banner.Text(),
		},
		View:    s.view.Mode(),
		Toggles: make([]ToggleState, 0, 3),
	}
	for _, t := range s.toggles.Toggles() {
		ts := ToggleState{Key: t.Key, Label: t.Label, Active: t.Active()}
		if l, ok := s.labels[t.Label]; ok {
			ts.Text = l.Text()
		}
		snap.Toggles = append(snap.Toggles, ts)
	}
	if se := s.orch.State().LastError; se != nil {
		snap.Error = &ErrorInfo{Stage: se.Stage, Message: se.Message()}
	}
	return snap
}
