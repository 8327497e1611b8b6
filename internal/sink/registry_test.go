// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialSink_StatusDefaults(t *testing.T) {
	s := NewDialSink("s1", "Living Room", "http://10.0.0.2:8008/apps")

	assert.True(t, s.SupportsAppAvailability())
	assert.Equal(t, AppStatusUnknown, s.AppStatus("YouTube"))
	assert.True(t, s.AppStatusTimestamp("YouTube").IsZero())

	at := time.Unix(1700000000, 0)
	s.SetAppStatus("YouTube", AppStatusAvailable, at)
	assert.Equal(t, AppStatusAvailable, s.AppStatus("YouTube"))
	assert.Equal(t, at, s.AppStatusTimestamp("YouTube"))
	assert.Equal(t, map[string]AppStatus{"YouTube": AppStatusAvailable}, s.AppStatuses())

	s.SetSupportsAppAvailability(false)
	assert.False(t, s.SupportsAppAvailability())
}

func TestAppStatus_String(t *testing.T) {
	assert.Equal(t, "unknown", AppStatusUnknown.String())
	assert.Equal(t, "available", AppStatusAvailable.String())
	assert.Equal(t, "unavailable", AppStatusUnavailable.String())
}

func TestMemoryRegistry_UpsertKeepsIdentityAndOrder(t *testing.T) {
	r := NewMemoryRegistry()

	var added []string
	r.AddSinkAddedListener(func(s Sink) { added = append(added, s.ID()) })

	first, isNew := r.Upsert(NewDialSink("b", "B", "http://b/apps"))
	require.True(t, isNew)
	_, isNew = r.Upsert(NewDialSink("a", "A", "http://a/apps"))
	require.True(t, isNew)

	first.SetAppStatus("YouTube", AppStatusAvailable, time.Now())

	again, isNew := r.Upsert(NewDialSink("b", "B renamed", "http://b2/apps"))
	require.False(t, isNew)
	assert.Same(t, first, again)
	assert.Equal(t, "B renamed", again.FriendlyName())
	assert.Equal(t, "http://b2/apps", again.ApplicationURL())
	assert.Equal(t, AppStatusAvailable, again.AppStatus("YouTube"))

	ids := []string{}
	for _, s := range r.Sinks() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"b", "a"}, ids)
	assert.Equal(t, []string{"b", "a"}, added)
	assert.Equal(t, 2, r.SinkCount())

	got, ok := r.SinkByID("a")
	require.True(t, ok)
	assert.Equal(t, "A", got.FriendlyName())

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	_, ok = r.SinkByID("a")
	assert.False(t, ok)
}

func TestMemoryRegistry_Prune(t *testing.T) {
	r := NewMemoryRegistry()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	r.Upsert(NewDialSink("old", "", ""))
	r.Upsert(NewDialSink("static", "", ""))
	now = now.Add(time.Hour)
	r.Upsert(NewDialSink("fresh", "", ""))

	removed := r.Prune(now.Add(-time.Minute), map[string]struct{}{"static": {}})
	assert.Equal(t, []string{"old"}, removed)
	assert.Equal(t, 2, r.SinkCount())
}

func TestMemoryRegistry_StatusListener(t *testing.T) {
	r := NewMemoryRegistry()
	s, _ := r.Upsert(NewDialSink("s1", "", ""))

	var calls []string
	r.AddStatusListener(func(app string, got Sink) {
		calls = append(calls, got.ID()+"/"+app)
	})

	s.SetAppStatus("Netflix", AppStatusUnavailable, time.Now())
	r.OnAppStatusChanged("Netflix", s)
	assert.Equal(t, []string{"s1/Netflix"}, calls)
}
