// Package cssplay provides the shared vocabulary of the CSSX live playground:
// pipeline stage names, view modes, transpile options and the error types
// reported at each stage boundary.
package cssplay

// Version is the playground release reported by the CLI and the server.
var Version = "0.3.0"

// Stage identifies one step of the playground pipeline.
type Stage string

const (
	StageAST       Stage = "ast"
	StageTranspile Stage = "transpile"
	StageCompile   Stage = "compile"
	StageExecute   Stage = "execute"
	StageExtract   Stage = "extract"
)

// Describe returns the human readable banner heading for the stage.
func (s Stage) Describe() string {
	switch s {
	case StageAST:
		return "Error while generating the AST"
	case StageTranspile:
		return "Error while transpiling"
	case StageCompile:
		return "Error while using the transpiled code"
	case StageExecute:
		return "Error while running the transpiled code"
	case StageExtract:
		return "Error while fetching the generated CSS"
	default:
		return "Error"
	}
}

// ViewMode selects which artifact the output pane shows.
type ViewMode string

const (
	ViewCompiled ViewMode = "compiled"
	ViewAST      ViewMode = "ast"
	ViewJS       ViewMode = "js"
)

// ParseViewMode maps user input (CLI flags, API payloads) to a ViewMode.
// "css" is accepted as an alias for the compiled view.
func ParseViewMode(s string) (ViewMode, bool) {
	switch s {
	case "", "css", string(ViewCompiled):
		return ViewCompiled, true
	case string(ViewAST):
		return ViewAST, true
	case string(ViewJS), "javascript":
		return ViewJS, true
	}
	return "", false
}

// Options are the runtime switches read by the transpile stage.
type Options struct {
	Minified bool `json:"minified" yaml:"minified"`
}

// Storage keys shared by the browser page and the server-side session.
const (
	StorageKeyPrefix = "cssx-"
	SourceKey        = StorageKeyPrefix + "playground-code"
)

// Toggle labels, in the order they are registered at boot.
const (
	LabelViewAST = "View AST"
	LabelViewJS  = "View JS"
	LabelMinify  = "Minify"
)

// EmptyCSSPlaceholder is shown when the generated code registers no rules.
const EmptyCSSPlaceholder = "The generated JavaScript does not produce any CSS."
