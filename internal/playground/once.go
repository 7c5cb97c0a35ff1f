package playground

import (
	"context"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/pipeline"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/transpiler"
	"github.com/livetemplate/cssplay/internal/view"
)

// OnceOptions configures RunOnce.
type OnceOptions struct {
	Minified bool
	Sandbox  *sandbox.Sandbox
	Cache    *cache.ArtifactCache
}

// Artifacts are the results of a single pipeline run outside any session.
type Artifacts struct {
	AST    *transpiler.Program
	JS     string
	CSS    string
	HasJS  bool
	HasCSS bool
	Err    *cssplay.StageError
}

// OK reports whether every stage succeeded.
func (a Artifacts) OK() bool { return a.Err == nil }

// RunOnce runs the full pipeline against source with nothing persisted,
// for the CLI and the JSON API.
func RunOnce(ctx context.Context, source string, opts OnceOptions) Artifacts {
	o := pipeline.New(pipeline.Config{Sandbox: opts.Sandbox, Cache: opts.Cache})
	o.Transpiler().SetDOMChanges(false)
	o.SetMinified(opts.Minified)

	res := o.Run(ctx, source)
	return Artifacts{
		AST:    res.State.AST,
		JS:     res.State.Transpiled,
		CSS:    res.State.CSS,
		HasJS:  res.State.HasTranspiled,
		HasCSS: res.State.HasCSS,
		Err:    res.Err,
	}
}

// View renders the artifact shown by mode: the CSS (or the empty-output
// placeholder), the indented AST or the transpiled code.
func (a Artifacts) View(mode cssplay.ViewMode) (string, error) {
	switch mode {
	case cssplay.ViewAST:
		return view.FormatAST(a.AST)
	case cssplay.ViewJS:
		return a.JS, nil
	default:
		if a.HasCSS && a.CSS == "" {
			return cssplay.EmptyCSSPlaceholder, nil
		}
		return a.CSS, nil
	}
}
