// Package embedded runs the CSSX playground inside another Go program: the
// cssplay CLI, the desktop shell, or any binary that wants a playground on a
// local port.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/internal/server"
	"github.com/livetemplate/cssplay/internal/store"
)

// Options configures an embedded playground.
type Options struct {
	// Config is the playground configuration (default: config.DefaultConfig()).
	Config *config.Config

	// Store overrides the backend selected by Config.Storage. It is not
	// closed by Stop.
	Store *store.Adapter

	// Addr is the address to listen on. Defaults to Config's host and port;
	// "127.0.0.1:0" picks a free port.
	Addr string

	// OnReady is called with the playground URL once it accepts connections.
	OnReady func(url string)

	// Quiet suppresses startup messages when true
	Quiet bool
}

// Instance is a running playground.
type Instance struct {
	srv       *server.Server
	store     *store.Adapter
	ownsStore bool
	url       string
	cancel    context.CancelFunc
	done      chan error
}

// StoreOptions maps the storage configuration to backend options, expanding
// environment variables in secrets.
func StoreOptions(c config.StorageConfig) store.Options {
	return store.Options{
		Backend:  c.Backend,
		Path:     c.Path,
		DSN:      c.GetDSN(),
		Addr:     c.Addr,
		Password: c.GetPassword(),
		DB:       c.DB,
		Prefix:   c.Prefix,
	}
}

// Start opens the store, starts watching the source file when configured and
// serves in the background until Stop is called or ctx is cancelled.
func Start(ctx context.Context, opts Options) (*Instance, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	st, owns := opts.Store, false
	if st == nil {
		st, owns = store.OpenBestEffort(ctx, StoreOptions(cfg.Storage)), true
	}
	closeStore := func() {
		if owns {
			st.Close()
		}
	}

	srv, err := server.New(cfg, st)
	if err != nil {
		closeStore()
		return nil, err
	}

	if cfg.Playground.Watch {
		if err := srv.EnableWatch(); err != nil {
			srv.Close()
			closeStore()
			return nil, fmt.Errorf("failed to enable watch mode: %w", err)
		}
	}

	addr := opts.Addr
	if addr == "" {
		addr = srv.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		srv.Close()
		closeStore()
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	inst := &Instance{
		srv:       srv,
		store:     st,
		ownsStore: owns,
		url:       "http://" + ln.Addr().String() + "/",
		cancel:    cancel,
		done:      make(chan error, 1),
	}
	go func() {
		inst.done <- srv.Serve(ctx, ln)
	}()

	if !opts.Quiet {
		printBanner(cfg, inst.url)
	}
	if opts.OnReady != nil {
		opts.OnReady(inst.url)
	}
	return inst, nil
}

// URL returns the playground's base URL.
func (i *Instance) URL() string { return i.url }

// Server returns the underlying playground server.
func (i *Instance) Server() *server.Server { return i.srv }

// Wait blocks until the server stops and returns its error.
func (i *Instance) Wait() error {
	err := <-i.done
	i.done <- err
	return err
}

// Stop shuts the server down and closes the store it opened.
func (i *Instance) Stop() error {
	i.cancel()
	err := i.Wait()
	if i.ownsStore {
		if cerr := i.store.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

// Serve runs the playground until ctx is cancelled or the process receives
// SIGINT or SIGTERM.
func Serve(ctx context.Context, opts Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst, err := Start(ctx, opts)
	if err != nil {
		return err
	}

	<-ctx.Done()
	if !opts.Quiet {
		fmt.Printf("\n🛑 Shutting down gracefully...\n")
	}
	return inst.Stop()
}

func printBanner(cfg *config.Config, url string) {
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "none"
	}

	fmt.Printf("🎨 %s\n\n", cfg.Title)
	if cfg.Playground.SourceFile != "" {
		fmt.Printf("Default source: %s\n", cfg.Playground.SourceFile)
	}
	fmt.Printf("Storage: %s\n", backend)
	if cfg.Playground.Watch {
		fmt.Printf("👀 Watch mode enabled - edits to %s are pushed to open pages\n", cfg.Playground.SourceFile)
	}
	fmt.Printf("\n🌐 Server running at %s\n", url)
	if cfg.IsAPIEnabled() {
		fmt.Printf("🔌 JSON API enabled at /api/transpile\n")
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")
}
