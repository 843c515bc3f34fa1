// Package prefs is the small key-value store that holds device-wide
// preferences, most importantly the id of the logged-in user.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store reads and writes integer preferences.  A key that was never set or
// was removed reports ok == false.
type Store interface {
	GetInt(ctx context.Context, key string) (v int64, ok bool, err error)
	SetInt(ctx context.Context, key string, v int64) error
	Remove(ctx context.Context, key string) error
}

// FileStore keeps preferences in a JSON object on disk.  Every write
// replaces the file through a temporary sibling and a rename, so a crash
// leaves either the old or the new content.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return 0, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStore) SetInt(_ context.Context, key string, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	m[key] = v
	return s.write(m)
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.write(m)
}

func (s *FileStore) read() (map[string]int64, error) {
	m := map[string]int64{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", s.path, err)
	}
	return m, nil
}

func (s *FileStore) write(m map[string]int64) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("prefs: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("prefs: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("prefs: close: %w", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("prefs: replace %s: %w", s.path, err)
	}
	return nil
}

// RedisStore keeps preferences as plain string keys under a prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "huerto:prefs"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("prefs: redis get: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("prefs: key %s holds %q: %w", key, raw, err)
	}
	return v, true, nil
}

func (s *RedisStore) SetInt(ctx context.Context, key string, v int64) error {
	if err := s.rdb.Set(ctx, s.key(key), strconv.FormatInt(v, 10), 0).Err(); err != nil {
		return fmt.Errorf("prefs: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("prefs: redis del: %w", err)
	}
	return nil
}
