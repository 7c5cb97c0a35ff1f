package main

import (
	"fmt"
	"os"
	goruntime "runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
)

const appTitle = "CSSX Playground"

func main() {
	app := NewApp()
	if err := wails.Run(appOptions(app)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func appOptions(app *App) *options.App {
	return &options.App{
		Title:            appTitle,
		Width:            1280,
		Height:           800,
		MinWidth:         800,
		MinHeight:        600,
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		Menu:             buildMenu(app, goruntime.GOOS == "darwin"),
		AssetServer:      &assetserver.Options{Handler: app.GetHandler()},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             []any{app},
		Mac: &mac.Options{
			TitleBar: mac.TitleBarDefault(),
			About: &mac.AboutInfo{
				Title:   appTitle,
				Message: "Edit CSSX and see the generated CSS as you type.",
			},
		},
	}
}

// action is one menu entry. A nil run marks a separator.
type action struct {
	label string
	key   *keys.Accelerator
	run   func()
}

var separator = action{}

func addActions(m *menu.Menu, actions []action) {
	for _, a := range actions {
		if a.run == nil {
			m.AddSeparator()
			continue
		}
		run := a.run
		m.AddText(a.label, a.key, func(*menu.CallbackData) { run() })
	}
}

// buildMenu lays out the playground's menus. On macOS the system Edit
// menu supplies clipboard shortcuts and About lives in the app menu.
func buildMenu(app *App, darwin bool) *menu.Menu {
	m := menu.NewMenu()
	if darwin {
		m.Append(menu.AppMenu())
	}

	file := []action{
		{"Open Source File...", keys.CmdOrCtrl("o"), func() { app.OpenFile() }},
		{"Close Source File", keys.CmdOrCtrl("w"), func() { app.CloseFile() }},
	}
	if !darwin {
		file = append(file, separator, action{"Exit", keys.OptionOrAlt("F4"), func() { os.Exit(0) }})
	}
	addActions(m.AddSubmenu("File"), file)

	if darwin {
		m.Append(menu.EditMenu())
	}
	addActions(m.AddSubmenu("Playground"), []action{
		{"Focus Editor", keys.CmdOrCtrl("e"), app.FocusEditor},
		{"Copy CSS", keys.CmdOrCtrl("shift+c"), app.CopyCSS},
		separator,
		{"Minify", keys.CmdOrCtrl("m"), func() { app.ClickToggle(ToggleMinify) }},
	})

	addActions(m.AddSubmenu("View"), []action{
		{"View AST", keys.CmdOrCtrl("1"), func() { app.ClickToggle(ToggleAST) }},
		{"View JS", keys.CmdOrCtrl("2"), func() { app.ClickToggle(ToggleJS) }},
		separator,
		{"Reload", keys.CmdOrCtrl("r"), app.Reload},
		{"Open in Browser", keys.CmdOrCtrl("shift+o"), app.OpenInBrowser},
		{"Toggle Full Screen", keys.Key("F11"), app.ToggleFullscreen},
	})

	help := []action{{"CSSX Reference", nil, app.OpenHelp}}
	if !darwin {
		help = append(help, separator, action{"About " + appTitle, nil, app.About})
	}
	addActions(m.AddSubmenu("Help"), help)

	return m
}
