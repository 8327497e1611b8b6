// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dial implements the DIAL REST client used to query app info on sinks.
package dial

import (
	"context"
	"strings"
)

// AppState is the DIAL application state reported by a sink.
type AppState string

const (
	AppStateUnknown     AppState = "unknown"
	AppStateRunning     AppState = "running"
	AppStateStopped     AppState = "stopped"
	AppStateInstallable AppState = "installable"
	AppStateHidden      AppState = "hidden"
)

// parseAppState maps the <state> element. Installable states carry the
// install URL after "installable=".
func parseAppState(raw string) (AppState, string) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "running":
		return AppStateRunning, ""
	case raw == "stopped":
		return AppStateStopped, ""
	case raw == "hidden":
		return AppStateHidden, ""
	case strings.HasPrefix(raw, "installable="):
		return AppStateInstallable, strings.TrimPrefix(raw, "installable=")
	default:
		return AppStateUnknown, ""
	}
}

// AppInfo is the parsed DIAL application resource.
type AppInfo struct {
	Name       string
	State      AppState
	AllowStop  bool
	InstallURL string
	// ExtraData holds the children of <additionalData> keyed by local name.
	ExtraData map[string]string
}

// AppInfoGetter performs the per-sink app info query.
type AppInfoGetter interface {
	GetAppInfo(ctx context.Context, appName string) (*AppInfo, error)
}
