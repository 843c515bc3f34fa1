package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.GetInt(ctx, "logged_in_user_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetInt(ctx, "logged_in_user_id", 42))
	v, ok, err := s.GetInt(ctx, "logged_in_user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	require.NoError(t, s.SetInt(ctx, "logged_in_user_id", 7))
	v, _, err = s.GetInt(ctx, "logged_in_user_id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	require.NoError(t, s.Remove(ctx, "logged_in_user_id"))
	require.NoError(t, s.Remove(ctx, "logged_in_user_id"))
	_, ok, err = s.GetInt(ctx, "logged_in_user_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "user_prefs.json")))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_prefs.json")
	ctx := context.Background()
	require.NoError(t, NewFileStore(path).SetInt(ctx, "logged_in_user_id", 3))

	v, ok, err := NewFileStore(path).GetInt(ctx, "logged_in_user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err := NewFileStore(path).GetInt(context.Background(), "logged_in_user_id")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, "")
	exerciseStore(t, s)

	require.NoError(t, s.SetInt(context.Background(), "logged_in_user_id", 5))
	got, err := mr.Get("huerto:prefs:logged_in_user_id")
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestRedisStoreBadValue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, mr.Set("p:k", "abc"))

	_, _, err := NewRedisStore(rdb, "p").GetInt(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, _, err := NewRedisStore(rdb, "").GetInt(context.Background(), "k")
	assert.Error(t, err)
}
