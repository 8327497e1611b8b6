// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"slices"

	"github.com/ManuGH/dialwatch/internal/config"
	xglog "github.com/ManuGH/dialwatch/internal/log"
)

// reloadLoop applies hot-reloadable settings: log level, static sinks and
// newly configured apps. Apps dropped from the file stay registered; use
// the API to unregister them. Listen address, store and timing changes
// need a restart.
func (a *App) reloadLoop(ctx context.Context, updates <-chan config.AppConfig) error {
	prev := a.holder.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-updates:
			a.applyConfig(ctx, prev, next)
			prev = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next config.AppConfig) {
	if prev.LogLevel != next.LogLevel {
		xglog.Configure(xglog.Config{Level: next.LogLevel, Service: "dialwatch", Version: next.Version})
	}
	if !slices.Equal(prev.SSDP.StaticSinks, next.SSDP.StaticSinks) {
		a.discoverer.SetStaticSinks(staticSinks(next.SSDP.StaticSinks))
	}

	var added []string
	for _, name := range next.Discovery.Apps {
		if !slices.Contains(prev.Discovery.Apps, name) {
			added = append(added, name)
		}
	}
	if len(added) > 0 {
		a.registerApps(added)
		if err := a.engine.Snapshot(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "daemon.snapshot_failed").Msg("reloaded apps not saved")
		}
	}

	if prev.API.ListenAddr != next.API.ListenAddr || prev.Store != next.Store {
		a.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("listen address or store settings changed; restart to apply")
	}
}
