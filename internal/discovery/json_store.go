// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/google/renameio/v2"
)

// JSONStore keeps saved data in a single JSON object keyed by service key.
// Writes are atomic and durable.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[SavedDataKey]
	if !ok {
		return nil, nil
	}
	return decodeApps(raw)
}

func (s *JSONStore) Save(_ context.Context, apps []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	raw, err := encodeApps(apps)
	if err != nil {
		return err
	}
	doc[SavedDataKey] = raw

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode saved data: %w", err)
	}
	if err := renameio.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("write saved data: %w", err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

// readLocked keeps keys owned by other services intact across saves.
func (s *JSONStore) readLocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read saved data: %w", err)
	}
	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse saved data %s: %w", s.path, err)
	}
	return doc, nil
}
