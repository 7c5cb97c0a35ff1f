package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/playground"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/view"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

// TranspileRequest is the body of POST /api/transpile.
type TranspileRequest struct {
	Source   string `json:"source"`
	Minified bool   `json:"minified"`
	View     string `json:"view,omitempty"`
}

// TranspileResponse carries every artifact the run produced.
type TranspileResponse struct {
	OK     bool            `json:"ok"`
	Output string          `json:"output"`
	AST    json.RawMessage `json:"ast,omitempty"`
	JS     string          `json:"js,omitempty"`
	CSS    string          `json:"css,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError describes a failed stage.
type APIError struct {
	Stage   cssplay.Stage `json:"stage"`
	Message string        `json:"message"`
}

// APIHandler serves one-shot pipeline runs.
type APIHandler struct {
	sandbox *sandbox.Sandbox
	cache   *cache.ArtifactCache
	debug   bool
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(box *sandbox.Sandbox, c *cache.ArtifactCache, debug bool) *APIHandler {
	return &APIHandler{sandbox: box, cache: c, debug: debug}
}

// ServeHTTP handles POST /api/transpile.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req TranspileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode, ok := cssplay.ParseViewMode(req.View)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown view: "+req.View)
		return
	}

	a := playground.RunOnce(r.Context(), req.Source, playground.OnceOptions{
		Minified: req.Minified,
		Sandbox:  h.sandbox,
		Cache:    h.cache,
	})

	resp := TranspileResponse{OK: a.OK(), JS: a.JS, CSS: a.CSS}
	if a.AST != nil {
		tree, err := view.FormatAST(a.AST)
		if err == nil {
			resp.AST = json.RawMessage(tree)
		}
	}
	if a.Err != nil {
		resp.Error = &APIError{Stage: a.Err.Stage, Message: a.Err.Message()}
		if h.debug {
			log.Printf("[API] transpile failed at %s: %s", a.Err.Stage, a.Err.Message())
		}
	}
	if out, err := a.View(mode); err == nil {
		resp.Output = out
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.OK {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
