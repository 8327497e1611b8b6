// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHolder_ReloadNotifies(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "dataDir: "+dataDir+"\ndiscovery:\n  apps: [YouTube]\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dataDir+"\ndiscovery:\n  apps: [YouTube, Netflix]\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	got := <-updates
	assert.Equal(t, []string{"YouTube", "Netflix"}, got.Discovery.Apps)
	assert.Equal(t, got.Discovery.Apps, h.Get().Discovery.Apps)
}

func TestConfigHolder_InvalidReloadKeepsOld(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "dataDir: "+dataDir+"\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o600))
	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, initial, h.Get())
}

func TestConfigHolder_WatchReloadsOnWrite(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "dataDir: "+dataDir+"\nlogLevel: info\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dataDir+"\nlogLevel: debug\n"), 0o600))

	assert.Eventually(t, func() bool {
		return h.Get().LogLevel == "debug"
	}, 5*time.Second, 20*time.Millisecond)
}
