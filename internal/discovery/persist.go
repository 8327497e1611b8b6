// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"fmt"

	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/metrics"
)

// GetData returns the registered app list for persistence.
func (e *Engine) GetData() []string {
	return e.RegisteredApps()
}

// LoadSavedData replaces the registered set with the saved list. Nothing
// saved yields an empty set. Without a store it is a no-op.
func (e *Engine) LoadSavedData(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	names, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registered apps: %w", err)
	}

	e.mu.Lock()
	e.apps = nil
	e.appIndex = make(map[string]struct{}, len(names))
	for _, name := range names {
		if name != "" {
			e.addAppLocked(name)
		}
	}
	count := len(e.apps)
	e.mu.Unlock()

	metrics.SetRegisteredApps(count)
	e.logger.Info().
		Str(xglog.FieldEvent, "discovery.saved_data_loaded").
		Int("apps", count).
		Msg("registered apps restored")
	return nil
}

// Snapshot writes the registered app list to the store.
func (e *Engine) Snapshot(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(ctx, e.GetData()); err != nil {
		return fmt.Errorf("save registered apps: %w", err)
	}
	return nil
}
