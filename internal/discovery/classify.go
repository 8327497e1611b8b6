// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"github.com/ManuGH/dialwatch/internal/dial"
	"github.com/ManuGH/dialwatch/internal/sink"
)

const (
	netflixAppName      = "Netflix"
	capabilitiesKey     = "capabilities"
	websocketCapability = "websocket"
)

// classify maps a DIAL app info response to an availability status.
// Netflix is only actionable when it advertises websocket capabilities.
func classify(info *dial.AppInfo) sink.AppStatus {
	available := info.State == dial.AppStateRunning || info.State == dial.AppStateStopped
	if info.Name == netflixAppName {
		available = available && info.ExtraData[capabilitiesKey] == websocketCapability
	}
	if available {
		return sink.AppStatusAvailable
	}
	return sink.AppStatusUnavailable
}
