// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package activity tracks live cast sessions bound to a sink and an app.
package activity

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/dialwatch/internal/metrics"
)

var (
	ErrDuplicateRoute = errors.New("activity: route already tracked")
	ErrInvalid        = errors.New("activity: route id, sink id and app name are required")
)

// Route identifies a media route to a sink.
type Route struct {
	ID     string `json:"id"`
	SinkID string `json:"sink_id"`
}

// Activity binds a route to the DIAL app running on the sink.
type Activity struct {
	Route     Route     `json:"route"`
	AppName   string    `json:"app_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry is the activity surface consumed by the discovery engine.
type Registry interface {
	Activities() []Activity
	BySinkID(sinkID string) (Activity, bool)
	ByRouteID(routeID string) (Activity, bool)
	RemoveByRouteID(routeID string) bool
}

// RemovedListener is called after an activity is removed.
type RemovedListener func(a Activity)

// MemoryRegistry is an insertion-ordered in-memory Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Activity
	now   func() time.Time

	listenerMu sync.RWMutex
	removed    []RemovedListener
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID: make(map[string]Activity),
		now:  time.Now,
	}
}

// Add tracks a new activity.
func (r *MemoryRegistry) Add(a Activity) error {
	if a.Route.ID == "" || a.Route.SinkID == "" || a.AppName == "" {
		return ErrInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.Route.ID]; ok {
		return ErrDuplicateRoute
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	r.byID[a.Route.ID] = a
	r.order = append(r.order, a.Route.ID)
	metrics.SetActivitiesTracked(len(r.order))
	return nil
}

func (r *MemoryRegistry) Activities() []Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Activity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// BySinkID returns the first activity tracked for the sink.
func (r *MemoryRegistry) BySinkID(sinkID string) (Activity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if a := r.byID[id]; a.Route.SinkID == sinkID {
			return a, true
		}
	}
	return Activity{}, false
}

func (r *MemoryRegistry) ByRouteID(routeID string) (Activity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[routeID]
	return a, ok
}

func (r *MemoryRegistry) RemoveByRouteID(routeID string) bool {
	r.mu.Lock()
	a, ok := r.byID[routeID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byID, routeID)
	for i, id := range r.order {
		if id == routeID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metrics.SetActivitiesTracked(len(r.order))
	r.mu.Unlock()

	r.listenerMu.RLock()
	listeners := append([]RemovedListener(nil), r.removed...)
	r.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(a)
	}
	return true
}

// AddRemovedListener registers fn for activity removals.
func (r *MemoryRegistry) AddRemovedListener(fn RemovedListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.removed = append(r.removed, fn)
}
