package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the shared contract against a backend.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "cssx-View AST", "true"))
	v, ok, err := s.Get(ctx, "cssx-View AST")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	// Last writer wins.
	require.NoError(t, s.Set(ctx, "cssx-View AST", "false"))
	v, _, err = s.Get(ctx, "cssx-View AST")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	// Empty values are values, not absence.
	require.NoError(t, s.Set(ctx, "empty", ""))
	_, ok, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m)
	assert.Equal(t, 2, m.Len())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "play.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	exercise(t, s)
	require.NoError(t, s.Close())

	// Values survive reopening the file.
	s, err = NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(context.Background(), "cssx-View AST")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("CSSPLAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CSSPLAY_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("CSSPLAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CSSPLAY_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedis(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, s)

	s, err = Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
}

func TestOpenBestEffortFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "play.db")
	a := OpenBestEffort(context.Background(), Options{Backend: "sqlite", Path: path})
	a.Set("k", "v")
	_, ok := a.Get("k")
	assert.False(t, ok, "fallback store must drop writes")
}

func TestNoop(t *testing.T) {
	a := NewAdapter(nil, "")
	a.Set("k", "v")
	_, ok := a.Get("k")
	assert.False(t, ok)
	assert.NoError(t, a.Close())
}

type failingStore struct{ Noop }

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection reset")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("connection reset")
}

func TestAdapterSwallowsErrors(t *testing.T) {
	a := NewAdapter(failingStore{}, "")
	a.Set("k", "v")
	v, ok := a.Get("k")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestAdapterNamespace(t *testing.T) {
	m := NewMemory()
	root := NewAdapter(m, "cssplay:")
	alice := root.Namespace("alice")
	bob := root.Namespace("bob")

	alice.Set("cssx-playground-code", "a")
	bob.Set("cssx-playground-code", "b")

	v, _ := alice.Get("cssx-playground-code")
	assert.Equal(t, "a", v)
	v, _ = bob.Get("cssx-playground-code")
	assert.Equal(t, "b", v)

	raw, ok, err := m.Get(context.Background(), "cssplay:alice:cssx-playground-code")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", raw)
}
