// Package server serves the playground page, drives per-client sessions over
// websockets and exposes the one-shot JSON API.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/assets"
	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/internal/playground"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/store"
)

// shutdownTimeout bounds graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Server is the playground server.
type Server struct {
	config   *config.Config
	store    *store.Adapter
	sandbox  *sandbox.Sandbox
	cache    *cache.ArtifactCache
	sessions *Sessions
	ws       *WebSocketHandler
	page     *template.Template
	help     []byte
	handler  http.Handler

	mu      sync.RWMutex
	source  string // default source for new sessions
	watcher *Watcher

	ctx       context.Context
	cancel    context.CancelFunc
	limitDone <-chan struct{}
	closeOnce sync.Once
}

// New creates a server for cfg. st persists per-client state and stays
// owned by the caller.
func New(cfg *config.Config, st *store.Adapter) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if st == nil {
		st = store.NewAdapter(store.Noop{}, "")
	}

	source := playground.DefaultSource
	if cfg.Playground.SourceFile != "" {
		data, err := os.ReadFile(cfg.Playground.SourceFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
		source = string(data)
	}

	pageSrc, err := assets.GetPageTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load page template: %w", err)
	}
	page, err := template.New("playground").Parse(string(pageSrc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	help, err := renderHelp(cfg.Title)
	if err != nil {
		return nil, err
	}

	debug := cfg.Server.Debug
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  cfg,
		store:   st,
		sandbox: sandbox.New(sandbox.WithTimeout(cfg.Sandbox.GetTimeout()), sandbox.WithDebug(debug)),
		cache:   cache.New(cfg.Playground.GetCacheTTL()),
		page:    page,
		help:    help,
		source:  source,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.sessions = NewSessions(st, s.sandbox, s.cache, s.DefaultSource, debug)
	s.ws = NewWebSocketHandler(s.sessions, debug)
	go s.sessions.cleanupLoop(ctx)

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.HandleFunc("GET /assets/{name}", s.serveAsset)
	mux.HandleFunc("GET /help", s.serveHelp)
	mux.Handle("GET /ws", s.ws)

	if s.config.IsAPIEnabled() {
		api := s.config.API
		limit, done := RateLimitMiddleware(s.ctx, api.GetRateLimitRPS(), api.GetRateLimitBurst(), defaultMaxTrackedIPs)
		s.limitDone = done

		var h http.Handler = NewAPIHandler(s.sandbox, s.cache, s.config.Server.Debug)
		h = limit(h)
		h = CORSMiddleware(api.GetCORSOrigins())(h)
		mux.Handle("/api/transpile", h)
	}

	return WithCompression(SecurityHeadersMiddleware()(mux))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions returns the live session table.
func (s *Server) Sessions() *Sessions { return s.sessions }

// DefaultSource returns the editor content given to clients with nothing
// persisted.
func (s *Server) DefaultSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	// Issue the identity cookie before the websocket connects.
	clientID(w, r)

	var buf bytes.Buffer
	err := s.page.Execute(&buf, struct {
		Title   string
		Version string
	}{s.config.Title, cssplay.Version})
	if err != nil {
		log.Printf("[Server] Failed to render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := assets.Get(r.PathValue("name"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[Server] Failed to read asset %s: %v", r.PathValue("name"), err)
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) serveHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.help)
}

// EnableWatch follows the configured source file. Each change becomes the
// default source and is applied to every live session as an edit.
func (s *Server) EnableWatch() error {
	path := s.config.Playground.SourceFile
	if path == "" {
		return errors.New("watch requires a source file")
	}

	w, err := NewWatcher(path, s.reloadSource, s.config.Server.Debug)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	w.Start()

	log.Printf("[Watch] File watcher started for %s", w.Path())
	return nil
}

// reloadSource pushes content into every session and their open tabs.
func (s *Server) reloadSource(content string) {
	s.mu.Lock()
	s.source = content
	s.mu.Unlock()

	n := 0
	s.sessions.Each(func(id string, sess *playground.Session) {
		snap := sess.Edit(s.ctx, content)
		s.ws.BroadcastTo(id, snap)
		n++
	})
	log.Printf("[Watch] Source reloaded into %d session(s)", n)
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		return w.Stop()
	}
	return nil
}

// Close stops background work and closes open connections.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.StopWatch()
		s.cancel()
		if s.limitDone != nil {
			<-s.limitDone
		}
		s.cache.Stop()
		if s.config.Server.Debug {
			st := s.cache.Stats()
			log.Printf("[Server] Artifact cache: %d hits, %d misses, %d evictions, %d entries",
				st.Hits, st.Misses, st.Evictions, st.Entries)
		}
		s.ws.CloseAll()
	})
	return err
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	// Hijacked websocket connections are not tracked by Shutdown.
	s.ws.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
