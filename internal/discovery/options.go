// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dialwatch/internal/dial"
	"github.com/ManuGH/dialwatch/internal/sink"
)

const (
	// DefaultScanInterval is the delay between periodic scan cycles.
	DefaultScanInterval = 60 * time.Second
	// DefaultCachePeriod is how long a known (sink, app) status is trusted.
	DefaultCachePeriod = 60 * time.Minute
	// DefaultQueryTimeout bounds a single DIAL query.
	DefaultQueryTimeout = 15 * time.Second
)

// Clock abstracts time for cache freshness decisions.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ClientFactory creates the DIAL client for a sink. It is called once per
// sink ID and application URL pair.
type ClientFactory func(s sink.Sink) dial.AppInfoGetter

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithScanInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.scanInterval = d
		}
	}
}

func WithCachePeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cachePeriod = d
		}
	}
}

func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.queryTimeout = d
		}
	}
}

// WithStore sets the persistence backend for the registered app set.
func WithStore(s AppSetStore) Option {
	return func(e *Engine) { e.store = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}
