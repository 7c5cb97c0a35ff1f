package server

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/livetemplate/cssplay/internal/assets"
)

var helpPage = template.Must(template.New("help").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} - Help</title>
  <link rel="stylesheet" href="/assets/playground.css">
</head>
<body class="help">
  <main>{{.Body}}</main>
</body>
</html>
`))

// renderHelp converts the embedded language reference to a full HTML page.
func renderHelp(title string) ([]byte, error) {
	src, err := assets.GetHelpMarkdown()
	if err != nil {
		return nil, fmt.Errorf("failed to read help: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("failed to render help: %w", err)
	}

	var page bytes.Buffer
	err = helpPage.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("failed to render help page: %w", err)
	}
	return page.Bytes(), nil
}
