// Package assets embeds the playground page, its script and stylesheet, and
// the language reference served at /help.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"path"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetPageTemplate returns the playground HTML template
func GetPageTemplate() ([]byte, error) {
	return clientFS.ReadFile("client/playground.html")
}

// GetClientJS returns the browser script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/playground.js")
}

// GetClientCSS returns the page stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/playground.css")
}

// GetHelpMarkdown returns the language reference
func GetHelpMarkdown() ([]byte, error) {
	return clientFS.ReadFile("client/help.md")
}

// Get returns a public asset by name and its content type. The page
// template and help source are not public.
func Get(name string) ([]byte, string, error) {
	switch name {
	case "playground.js", "playground.css":
	default:
		return nil, "", fs.ErrNotExist
	}
	data, err := clientFS.ReadFile("client/" + name)
	if err != nil {
		return nil, "", err
	}
	return data, mime.TypeByExtension(path.Ext(name)), nil
}
