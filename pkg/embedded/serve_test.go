package embedded

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/internal/store"
)

func TestStartAndStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"

	var ready string
	inst, err := Start(context.Background(), Options{
		Config:  cfg,
		Addr:    "127.0.0.1:0",
		Quiet:   true,
		OnReady: func(url string) { ready = url },
	})
	require.NoError(t, err)
	assert.Equal(t, inst.URL(), ready)
	assert.True(t, strings.HasPrefix(inst.URL(), "http://127.0.0.1:"))

	resp, err := http.Get(inst.URL())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), cfg.Title)

	require.NoError(t, inst.Stop())
	_, err = http.Get(inst.URL())
	assert.Error(t, err, "server must be down after Stop")
}

func TestStartWithSQLiteAndWatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.cssx")
	require.NoError(t, os.WriteFile(src, []byte("<style>h1 { margin: 0 }</style>"), 0644))

	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "play.db")
	cfg.Playground.SourceFile = src
	cfg.Playground.Watch = true

	inst, err := Start(context.Background(), Options{Config: cfg, Addr: "127.0.0.1:0", Quiet: true})
	require.NoError(t, err)
	defer inst.Stop()

	snap := inst.Server().Sessions().Get("c").Boot(context.Background())
	assert.Equal(t, "h1 {\n  margin: 0;\n}\n", snap.Output)
	assert.FileExists(t, cfg.Storage.Path)
}

func TestStartCallerStore(t *testing.T) {
	mem := store.NewMemory()
	inst, err := Start(context.Background(), Options{
		Store: store.NewAdapter(mem, ""),
		Addr:  "127.0.0.1:0",
		Quiet: true,
	})
	require.NoError(t, err)

	inst.Server().Sessions().Get("c").Edit(context.Background(), "el('a').addRule({color:'red'})")
	require.NoError(t, inst.Stop())
	assert.GreaterOrEqual(t, mem.Len(), 1)
}

func TestStartErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Playground.SourceFile = filepath.Join(t.TempDir(), "missing.cssx")
	_, err := Start(context.Background(), Options{Config: cfg, Addr: "127.0.0.1:0", Quiet: true})
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	_, err = Start(context.Background(), Options{Config: cfg, Addr: "256.0.0.1:1", Quiet: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "none"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Serve(ctx, Options{Config: cfg, Addr: "127.0.0.1:0", Quiet: true}))
}

func TestStoreOptions(t *testing.T) {
	t.Setenv("CSSPLAY_REDIS_PASS", "hunter2")
	opts := StoreOptions(config.StorageConfig{
		Backend:  "redis",
		Addr:     "localhost:6379",
		Password: "${CSSPLAY_REDIS_PASS}",
		DB:       2,
		Prefix:   "play:",
	})
	assert.Equal(t, "redis", opts.Backend)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "hunter2", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "play:", opts.Prefix)
}
