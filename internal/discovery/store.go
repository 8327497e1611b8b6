// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
)

// AppSetStore persists the registered app list under SavedDataKey.
// Load returns an empty list when nothing has been saved yet.
type AppSetStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, apps []string) error
	Close() error
}

// StoreConfig selects and locates a persistence backend.
type StoreConfig struct {
	// Backend is one of memory, json, sqlite, badger, redis. Empty means memory.
	Backend string
	// Dir holds the file-based backends.
	Dir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// OpenStore creates the configured AppSetStore.
func OpenStore(ctx context.Context, cfg StoreConfig) (AppSetStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "json":
		return NewJSONStore(filepath.Join(cfg.Dir, "apps.json")), nil
	case "sqlite":
		return OpenSQLiteStore(ctx, filepath.Join(cfg.Dir, "apps.sqlite"))
	case "badger":
		return OpenBadgerStore(filepath.Join(cfg.Dir, "badger"))
	case "redis":
		return OpenRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// MemoryStore keeps the saved list in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	apps []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.apps...), nil
}

func (s *MemoryStore) Save(_ context.Context, apps []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = append([]string(nil), apps...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func encodeApps(apps []string) ([]byte, error) {
	if apps == nil {
		apps = []string{}
	}
	return json.Marshal(apps)
}

func decodeApps(raw []byte) ([]string, error) {
	var apps []string
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil, fmt.Errorf("decode saved apps: %w", err)
	}
	return apps, nil
}
