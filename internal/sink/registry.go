// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sink

import (
	"sync"
	"time"

	"github.com/ManuGH/dialwatch/internal/metrics"
)

// Registry is the sink surface consumed by the discovery engine.
type Registry interface {
	Sinks() []Sink
	SinkByID(id string) (Sink, bool)
	SinkCount() int
	OnAppStatusChanged(appName string, s Sink)
}

// StatusListener is notified after an app status transition on a sink.
type StatusListener func(appName string, s Sink)

// AddedListener is notified when a sink is seen for the first time.
type AddedListener func(s Sink)

type record struct {
	sink     *DialSink
	lastSeen time.Time
}

// MemoryRegistry keeps sinks in insertion order.
type MemoryRegistry struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*record
	now     func() time.Time

	listenerMu      sync.RWMutex
	statusListeners []StatusListener
	addedListeners  []AddedListener
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Upsert adds the sink or refreshes the description of an existing one.
// It reports whether the sink was new. The stored sink identity never
// changes once added.
func (r *MemoryRegistry) Upsert(s *DialSink) (Sink, bool) {
	r.mu.Lock()
	if rec, ok := r.records[s.ID()]; ok {
		rec.sink.UpdateDescription(s.FriendlyName(), s.ApplicationURL())
		rec.lastSeen = r.now()
		r.mu.Unlock()
		return rec.sink, false
	}
	r.records[s.ID()] = &record{sink: s, lastSeen: r.now()}
	r.order = append(r.order, s.ID())
	count := len(r.order)
	r.mu.Unlock()

	metrics.SetSinksKnown(count)
	r.listenerMu.RLock()
	listeners := append([]AddedListener(nil), r.addedListeners...)
	r.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
	return s, true
}

// Remove drops a sink. It reports whether the sink was present.
func (r *MemoryRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false
	}
	r.removeLocked(id)
	return true
}

func (r *MemoryRegistry) removeLocked(id string) {
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metrics.SetSinksKnown(len(r.order))
}

// Prune removes sinks last seen before cutoff, skipping pinned IDs, and
// returns the removed IDs.
func (r *MemoryRegistry) Prune(cutoff time.Time, pinned map[string]struct{}) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for _, id := range append([]string(nil), r.order...) {
		if _, keep := pinned[id]; keep {
			continue
		}
		if r.records[id].lastSeen.Before(cutoff) {
			r.removeLocked(id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Sinks returns a snapshot in insertion order.
func (r *MemoryRegistry) Sinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sink, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].sink)
	}
	return out
}

// DialSinks is Sinks without the interface conversion.
func (r *MemoryRegistry) DialSinks() []*DialSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DialSink, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].sink)
	}
	return out
}

func (r *MemoryRegistry) SinkByID(id string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.sink, true
}

func (r *MemoryRegistry) SinkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// OnAppStatusChanged fans the transition out to status listeners.
func (r *MemoryRegistry) OnAppStatusChanged(appName string, s Sink) {
	metrics.RecordAppStatusChange(appName, s.AppStatus(appName).String())

	r.listenerMu.RLock()
	listeners := append([]StatusListener(nil), r.statusListeners...)
	r.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(appName, s)
	}
}

// AddStatusListener registers fn for app status transitions.
func (r *MemoryRegistry) AddStatusListener(fn StatusListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.statusListeners = append(r.statusListeners, fn)
}

// AddSinkAddedListener registers fn for newly added sinks.
func (r *MemoryRegistry) AddSinkAddedListener(fn AddedListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.addedListeners = append(r.addedListeners, fn)
}
