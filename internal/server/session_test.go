package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/playground"
	"github.com/livetemplate/cssplay/internal/store"
)

func newSessions(mem *store.Memory) *Sessions {
	return NewSessions(store.NewAdapter(mem, "play:"), nil, nil, func() string { return "var a = 1;" }, false)
}

func TestSessionsGet(t *testing.T) {
	m := newSessions(store.NewMemory())

	a := m.Get("a")
	assert.Same(t, a, m.Get("a"))
	assert.NotSame(t, a, m.Get("b"))
	assert.Equal(t, 2, m.Len())

	snap := a.Boot(context.Background())
	assert.Equal(t, "var a = 1;", snap.Source)
}

func TestSessionsNamespaceStore(t *testing.T) {
	mem := store.NewMemory()
	m := newSessions(mem)
	ctx := context.Background()

	m.Get("a").Edit(ctx, "el('a').addRule({color:'red'})")
	m.Get("b").Edit(ctx, "el('b').addRule({color:'blue'})")

	v, ok, err := mem.Get(ctx, "play:a:"+cssplay.SourceKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "el('a').addRule({color:'red'})", v)

	v, _, _ = mem.Get(ctx, "play:b:"+cssplay.SourceKey)
	assert.Equal(t, "el('b').addRule({color:'blue'})", v)
}

func TestSessionsExpire(t *testing.T) {
	m := newSessions(store.NewMemory())
	m.Get("idle")
	m.acquire("busy")

	n := m.Expire(time.Now().Add(time.Minute))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.Len())

	m.release("busy")
	assert.Equal(t, 1, m.Expire(time.Now().Add(time.Minute)))
	assert.Zero(t, m.Len())

	// Releasing an unknown client is harmless.
	m.release("ghost")
}

func TestSessionsAcquireDuringExpire(t *testing.T) {
	m := newSessions(store.NewMemory())
	future := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Expire(future)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("c%d", i)
			assert.NotNil(t, m.acquire(id))
		}
	}()
	wg.Wait()

	// Every acquired session holds a connection, so none can expire.
	assert.Zero(t, m.Expire(future))
	assert.Equal(t, 200, m.Len())
}

func TestSessionsEach(t *testing.T) {
	m := newSessions(store.NewMemory())
	m.Get("a")
	m.Get("b")

	seen := map[string]bool{}
	m.Each(func(id string, s *playground.Session) {
		seen[id] = s != nil
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestClientID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	id := clientID(w, r)
	require.Len(t, id, 36)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: ClientCookie, Value: id})
	w = httptest.NewRecorder()
	assert.Equal(t, id, clientID(w, r))
	assert.Empty(t, w.Result().Cookies())

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: ClientCookie, Value: "../../etc"})
	w = httptest.NewRecorder()
	assert.NotEqual(t, "../../etc", clientID(w, r))
}

func TestWatcherDebouncesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.cssx")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0644))

	got := make(chan string, 10)
	w, err := NewWatcher(path, func(s string) { got <- s }, false)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, os.WriteFile(path, []byte(v), 0644))
	}
	// A sibling file is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.cssx"), []byte("x"), 0644))

	select {
	case s := <-got:
		assert.Equal(t, "v3", s)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case s := <-got:
		t.Fatalf("unexpected second reload: %q", s)
	case <-time.After(300 * time.Millisecond):
	}

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "Stop is idempotent")
}

func TestWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.cssx"), func(string) {}, false)
	assert.Error(t, err)
}
