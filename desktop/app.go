package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/pkg/embedded"
)

// App struct holds the application state.
type App struct {
	ctx        context.Context
	instance   *embedded.Instance
	sourceFile string
	mu         sync.RWMutex
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.start(""); err != nil {
		runtime.LogErrorf(ctx, "failed to start playground: %v", err)
	}
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	a.stopServer()
}

// stopServer stops the current playground if running.
func (a *App) stopServer() {
	a.mu.Lock()
	inst := a.instance
	a.instance = nil
	a.mu.Unlock()

	if inst != nil {
		inst.Stop()
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// dataDir is where the desktop playground keeps its database.
func dataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = homeDir()
	}
	return filepath.Join(dir, "cssplay")
}

// openDir is where the Open dialog starts: the current source's directory,
// then ~/Documents, then home.
func (a *App) openDir() string {
	if f := a.GetSourceFile(); f != "" {
		return filepath.Dir(f)
	}
	docs := filepath.Join(homeDir(), "Documents")
	if _, err := os.Stat(docs); err == nil {
		return docs
	}
	return homeDir()
}

// desktopConfig returns the configuration for a playground whose default
// source is sourceFile (or the built-in one when empty).
func desktopConfig(sourceFile string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(dataDir(), "cssplay.db")
	if sourceFile != "" {
		cfg.Playground.SourceFile = sourceFile
		cfg.Playground.Watch = true
	}
	return cfg
}

// start (re)starts the playground on a free local port and points the
// window at it.
func (a *App) start(sourceFile string) error {
	a.stopServer()

	if err := os.MkdirAll(dataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	inst, err := embedded.Start(a.ctx, embedded.Options{
		Config: desktopConfig(sourceFile),
		Addr:   "127.0.0.1:0",
		Quiet:  true,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.instance = inst
	a.sourceFile = sourceFile
	a.mu.Unlock()

	title := "CSSX Playground"
	if sourceFile != "" {
		title += " - " + filepath.Base(sourceFile)
	}
	runtime.WindowSetTitle(a.ctx, title)
	runtime.EventsEmit(a.ctx, "navigate", inst.URL())
	return nil
}

// OpenFile opens a file dialog to pick a CSSX source to live-edit.
func (a *App) OpenFile() (string, error) {
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title:            "Open CSSX Source",
		DefaultDirectory: a.openDir(),
		Filters: []runtime.FileFilter{
			{
				DisplayName: "CSSX Sources (*.cssx, *.js)",
				Pattern:     "*.cssx;*.js",
			},
			{
				DisplayName: "All Files (*.*)",
				Pattern:     "*.*",
			},
		},
	})
	if err != nil {
		return "", err
	}
	if selection == "" {
		return "", nil
	}

	abs, err := filepath.Abs(selection)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := a.start(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// CloseFile returns to the built-in default source.
func (a *App) CloseFile() error {
	return a.start("")
}

// GetSourceFile returns the watched source file, if any.
func (a *App) GetSourceFile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sourceFile
}

// GetServerURL returns the URL of the running playground, or empty string
// if not running.
func (a *App) GetServerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.instance == nil {
		return ""
	}
	return a.instance.URL()
}

// Toggle names the playground controls the View menu can click.
type Toggle string

const (
	ToggleAST    Toggle = ".js-view-ast"
	ToggleJS     Toggle = ".js-view-js"
	ToggleMinify Toggle = ".js-minify"
)

// ClickToggle clicks a toggle in the page, so the change goes through the
// same websocket event as a mouse click and is persisted for the window.
func (a *App) ClickToggle(t Toggle) {
	runtime.WindowExecJS(a.ctx, fmt.Sprintf(`document.querySelector(%q)?.click()`, string(t)))
}

// CopyCSS puts the output pane's text on the clipboard.
func (a *App) CopyCSS() {
	runtime.WindowExecJS(a.ctx, `(() => {
		const out = document.querySelector('.js-output-editor');
		if (out) navigator.clipboard.writeText(out.textContent);
	})()`)
}

// FocusEditor moves keyboard focus to the source editor.
func (a *App) FocusEditor() {
	runtime.WindowExecJS(a.ctx, `document.querySelector('.js-code-editor')?.focus()`)
}

// OpenInBrowser opens the running playground in the system browser.
func (a *App) OpenInBrowser() {
	if url := a.GetServerURL(); url != "" {
		runtime.BrowserOpenURL(a.ctx, url)
	}
}

// Reload reloads the current page.
func (a *App) Reload() {
	runtime.WindowReload(a.ctx)
}

// ToggleFullscreen switches the window in or out of full screen.
func (a *App) ToggleFullscreen() {
	if runtime.WindowIsFullscreen(a.ctx) {
		runtime.WindowUnfullscreen(a.ctx)
		return
	}
	runtime.WindowFullscreen(a.ctx)
}

// OpenHelp shows the playground help page in the system browser.
func (a *App) OpenHelp() {
	if url := a.GetServerURL(); url != "" {
		runtime.BrowserOpenURL(a.ctx, url+"help")
	}
}

// About shows the version dialog.
func (a *App) About() {
	runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:    runtime.InfoDialog,
		Title:   "About CSSX Playground",
		Message: "CSSX Playground " + cssplay.Version,
	})
}

// GetHandler serves the page shown before the window is pointed at the
// local playground server.
func (a *App) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := loadingPage.Execute(w, a.GetServerURL()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

var loadingPage = template.Must(template.New("loading").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8"/>
  <title>CSSX Playground</title>
  <style>
    body { font-family: sans-serif; background: #1b2636; color: #cbd5e1;
           display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  </style>
</head>
<body>
  <p>Starting playground...</p>
  <script>
    var target = {{.}};
    function go(url) { if (url) { window.location.replace(url); } }
    if (window.runtime) { window.runtime.EventsOn("navigate", go); }
    go(target);
  </script>
</body>
</html>
`))
