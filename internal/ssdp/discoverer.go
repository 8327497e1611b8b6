// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ssdp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/dialwatch/internal/cache"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/metrics"
	"github.com/ManuGH/dialwatch/internal/resilience"
	"github.com/ManuGH/dialwatch/internal/sink"
	"github.com/ManuGH/dialwatch/internal/telemetry"
)

// pruneFactor is how many search intervals a sink may go unseen.
const pruneFactor = 3

// A LOCATION whose description fetch fails this many times in a row is
// skipped for one breaker reset period.
const (
	fetchFailureThreshold = 3
	fetchResetTimeout     = 5 * time.Minute
)

// StaticSink is a sink configured by address instead of discovered.
type StaticSink struct {
	ID             string
	FriendlyName   string
	ApplicationURL string
}

// Config drives the Discoverer.
type Config struct {
	Enabled        bool
	Interval       time.Duration
	Window         time.Duration
	SearchTarget   string
	Interface      string
	TTL            int
	DescriptionTTL time.Duration
	Target         string
	StaticSinks    []StaticSink
}

// SearchFunc performs one search round.
type SearchFunc func(ctx context.Context, opts SearchOptions) ([]Response, error)

// Discoverer keeps a sink registry in sync with the network.
type Discoverer struct {
	cfg          Config
	registry     *sink.MemoryRegistry
	descriptions cache.Cache[Device]
	client       *http.Client
	search       SearchFunc
	now          func() time.Time
	logger       zerolog.Logger
	tracer       trace.Tracer

	mu       sync.Mutex
	pinned   map[string]struct{}
	breakers map[string]*resilience.CircuitBreaker
}

// Option configures a Discoverer.
type Option func(*Discoverer)

func WithSearchFunc(fn SearchFunc) Option {
	return func(d *Discoverer) { d.search = fn }
}

func WithHTTPClient(c *http.Client) Option {
	return func(d *Discoverer) { d.client = c }
}

func WithNow(now func() time.Time) Option {
	return func(d *Discoverer) { d.now = now }
}

// NewDiscoverer creates a discoverer. descriptions caches device
// descriptions by LOCATION.
func NewDiscoverer(cfg Config, registry *sink.MemoryRegistry, descriptions cache.Cache[Device], opts ...Option) *Discoverer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.DescriptionTTL <= 0 {
		cfg.DescriptionTTL = 30 * time.Minute
	}
	d := &Discoverer{
		cfg:          cfg,
		registry:     registry,
		descriptions: descriptions,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		search:   Search,
		now:      time.Now,
		logger:   xglog.WithComponent("ssdp"),
		tracer:   telemetry.Tracer("github.com/ManuGH/dialwatch/internal/ssdp"),
		pinned:   make(map[string]struct{}),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetStaticSinks upserts the configured sinks and exempts them from pruning.
// Static sinks dropped from the list become prunable again.
func (d *Discoverer) SetStaticSinks(static []StaticSink) {
	pinned := make(map[string]struct{}, len(static))
	for _, st := range static {
		id := st.ID
		if id == "" {
			id = st.ApplicationURL
		}
		name := st.FriendlyName
		if name == "" {
			name = id
		}
		d.registry.Upsert(sink.NewDialSink(id, name, st.ApplicationURL))
		pinned[id] = struct{}{}
	}
	d.mu.Lock()
	d.pinned = pinned
	d.mu.Unlock()

	d.logger.Info().
		Str(xglog.FieldEvent, "ssdp.static_sinks").
		Int("count", len(static)).
		Msg("static sinks applied")
}

// Run searches every interval until ctx ends. With discovery disabled it
// only applies the static sinks.
func (d *Discoverer) Run(ctx context.Context) error {
	d.SetStaticSinks(d.cfg.StaticSinks)
	if !d.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := d.SearchOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn().Err(err).Str(xglog.FieldEvent, "ssdp.search_failed").Msg("ssdp search failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SearchOnce runs one search round, upserts every DIAL device found and
// prunes sinks that have not answered recently.
func (d *Discoverer) SearchOnce(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "ssdp.search")
	defer span.End()

	opts := SearchOptions{
		SearchTarget: d.cfg.SearchTarget,
		Window:       d.cfg.Window,
		TTL:          d.cfg.TTL,
		Target:       d.cfg.Target,
	}
	if d.cfg.Interface != "" {
		ifi, err := net.InterfaceByName(d.cfg.Interface)
		if err != nil {
			return err
		}
		opts.Interface = ifi
	}

	responses, err := d.search(ctx, opts)
	span.SetAttributes(telemetry.SSDPAttributes(opts.withDefaults().SearchTarget, len(responses))...)
	for _, res := range responses {
		d.handleResponse(ctx, res)
	}
	d.prune()
	return err
}

func (d *Discoverer) handleResponse(ctx context.Context, res Response) {
	dev, ok := d.descriptions.Get(res.Location)
	if !ok {
		var fetched Device
		err := d.breaker(res.Location).Execute(func() error {
			var ferr error
			fetched, ferr = FetchDevice(ctx, d.client, res.Location)
			return ferr
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			metrics.RecordSSDPResponse("skipped")
			return
		}
		if err != nil {
			metrics.RecordSSDPResponse("rejected")
			d.logger.Debug().
				Err(err).
				Str(xglog.FieldLocation, res.Location).
				Str(xglog.FieldUSN, res.USN).
				Msg("device description rejected")
			return
		}
		ttl := d.cfg.DescriptionTTL
		if res.MaxAge > 0 && res.MaxAge < ttl {
			ttl = res.MaxAge
		}
		d.descriptions.Set(res.Location, fetched, ttl)
		dev = fetched
	}

	id := deviceID(dev, res.USN)
	name := dev.FriendlyName
	if name == "" {
		name = id
	}
	if _, added := d.registry.Upsert(sink.NewDialSink(id, name, dev.ApplicationURL)); added {
		d.logger.Info().
			Str(xglog.FieldEvent, "ssdp.sink_added").
			Str(xglog.FieldSinkID, id).
			Str(xglog.FieldApplicationURL, dev.ApplicationURL).
			Str("friendly_name", name).
			Msg("dial sink discovered")
	}
	metrics.RecordSSDPResponse("accepted")
}

func (d *Discoverer) breaker(location string) *resilience.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.breakers[location]
	if !ok {
		cb = resilience.NewCircuitBreaker("ssdp_description", fetchFailureThreshold, fetchResetTimeout)
		d.breakers[location] = cb
	}
	return cb
}

func (d *Discoverer) prune() {
	d.mu.Lock()
	pinned := d.pinned
	d.mu.Unlock()

	cutoff := d.now().Add(-pruneFactor * d.cfg.Interval)
	for _, id := range d.registry.Prune(cutoff, pinned) {
		d.logger.Info().
			Str(xglog.FieldEvent, "ssdp.sink_pruned").
			Str(xglog.FieldSinkID, id).
			Msg("dial sink not seen recently, removed")
	}
}
