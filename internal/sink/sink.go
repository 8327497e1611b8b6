// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sink models DIAL media sinks and the registry that owns them.
package sink

import (
	"sync"
	"time"
)

// AppStatus is the cached availability of a named application on a sink.
type AppStatus int

const (
	AppStatusUnknown AppStatus = iota
	AppStatusAvailable
	AppStatusUnavailable
)

func (s AppStatus) String() string {
	switch s {
	case AppStatusAvailable:
		return "available"
	case AppStatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as its lowercase name.
func (s AppStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sink is a discoverable DIAL receiver. Only the discovery engine mutates the
// per-app status fields.
type Sink interface {
	ID() string
	FriendlyName() string
	// ApplicationURL is the DIAL REST service base advertised by the device.
	ApplicationURL() string

	SupportsAppAvailability() bool
	SetSupportsAppAvailability(bool)

	AppStatus(appName string) AppStatus
	// AppStatusTimestamp is the zero time when the status was never set.
	AppStatusTimestamp(appName string) time.Time
	SetAppStatus(appName string, status AppStatus, at time.Time)
}

type statusEntry struct {
	status    AppStatus
	updatedAt time.Time
}

// DialSink is the concurrency-safe Sink implementation used by the registry.
type DialSink struct {
	id string

	mu           sync.RWMutex
	friendlyName string
	appURL       string
	supportsApps bool
	statuses     map[string]statusEntry
}

// NewDialSink creates a sink that supports app availability queries.
func NewDialSink(id, friendlyName, applicationURL string) *DialSink {
	return &DialSink{
		id:           id,
		friendlyName: friendlyName,
		appURL:       applicationURL,
		supportsApps: true,
		statuses:     make(map[string]statusEntry),
	}
}

func (s *DialSink) ID() string { return s.id }

func (s *DialSink) FriendlyName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.friendlyName
}

func (s *DialSink) ApplicationURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appURL
}

// UpdateDescription refreshes the device-advertised fields, keeping cached
// app statuses intact.
func (s *DialSink) UpdateDescription(friendlyName, applicationURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendlyName = friendlyName
	s.appURL = applicationURL
}

func (s *DialSink) SupportsAppAvailability() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supportsApps
}

func (s *DialSink) SetSupportsAppAvailability(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supportsApps = v
}

func (s *DialSink) AppStatus(appName string) AppStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[appName].status
}

func (s *DialSink) AppStatusTimestamp(appName string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[appName].updatedAt
}

func (s *DialSink) SetAppStatus(appName string, status AppStatus, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[appName] = statusEntry{status: status, updatedAt: at}
}

// AppStatuses returns a copy of every known app status.
func (s *DialSink) AppStatuses() map[string]AppStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]AppStatus, len(s.statuses))
	for name, e := range s.statuses {
		out[name] = e.status
	}
	return out
}
