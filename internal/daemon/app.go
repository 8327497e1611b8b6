// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the discovery engine, SSDP sink discovery, the control
// API and configuration reloads into one process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/api"
	"github.com/ManuGH/dialwatch/internal/cache"
	"github.com/ManuGH/dialwatch/internal/config"
	"github.com/ManuGH/dialwatch/internal/dial"
	"github.com/ManuGH/dialwatch/internal/discovery"
	"github.com/ManuGH/dialwatch/internal/health"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/sink"
	"github.com/ManuGH/dialwatch/internal/ssdp"
)

const (
	drainTimeout    = 10 * time.Second
	snapshotTimeout = 5 * time.Second
)

// App owns every long-lived subsystem of the daemon.
type App struct {
	holder *config.ConfigHolder
	logger zerolog.Logger

	store        discovery.AppSetStore
	sinks        *sink.MemoryRegistry
	activities   *activity.MemoryRegistry
	engine       *discovery.Engine
	descriptions cache.Cache[ssdp.Device]
	closeCache   func() error
	discoverer   *ssdp.Discoverer
	api          *api.Server

	running atomic.Bool
}

// NewApp builds the subsystems from the current configuration. The store is
// opened here so a bad backend fails before anything starts.
func NewApp(ctx context.Context, holder *config.ConfigHolder) (*App, error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	store, err := discovery.OpenStore(ctx, discovery.StoreConfig{
		Backend:       cfg.Store.Backend,
		Dir:           cfg.DataDir,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisPrefix:   cfg.Store.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open app store: %w", err)
	}

	descriptions, closeCache, err := openDescriptionCache(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		holder:       holder,
		logger:       logger,
		store:        store,
		sinks:        sink.NewMemoryRegistry(),
		activities:   activity.NewMemoryRegistry(),
		descriptions: descriptions,
		closeCache:   closeCache,
	}

	factory := dial.NewFactory(dial.WithRateLimit(rate.Limit(cfg.Discovery.QueryRate), cfg.Discovery.QueryBurst))
	a.engine = discovery.New(a.sinks, a.activities, factory.NewClient,
		discovery.WithStore(store),
		discovery.WithScanInterval(cfg.Discovery.ScanInterval),
		discovery.WithCachePeriod(cfg.Discovery.CachePeriod),
		discovery.WithQueryTimeout(cfg.Discovery.QueryTimeout),
	)

	a.discoverer = ssdp.NewDiscoverer(ssdp.Config{
		Enabled:        cfg.SSDP.Enabled,
		Interval:       cfg.SSDP.Interval,
		Window:         cfg.SSDP.Window,
		Interface:      cfg.SSDP.Interface,
		TTL:            cfg.SSDP.TTL,
		DescriptionTTL: cfg.SSDP.DescriptionTTL,
		StaticSinks:    staticSinks(cfg.SSDP.StaticSinks),
	}, a.sinks, descriptions)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.EngineChecker{IsRunning: a.engine.IsRunning})
	hm.RegisterChecker(health.SinkChecker{Count: a.sinks.SinkCount})
	hm.RegisterChecker(health.ScanChecker{
		LastScan: a.engine.LastScan,
		MaxAge:   3 * a.engine.ScanInterval(),
	})

	a.api, err = api.New(api.Config{
		ListenAddr:         cfg.API.ListenAddr,
		RateLimitPerMinute: cfg.API.RateLimit,
		TracingService:     "github.com/ManuGH/dialwatch/internal/api",
	}, api.Deps{
		Engine:     a.engine,
		Sinks:      a.sinks,
		Activities: a.activities,
		Health:     hm,
		Logger:     xglog.Base(),
	})
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("build api: %w", err)
	}
	return a, nil
}

func openDescriptionCache(cfg config.AppConfig, logger zerolog.Logger) (cache.Cache[ssdp.Device], func() error, error) {
	if cfg.SSDP.DescriptionCache == "redis" {
		rc, err := cache.NewRedis[ssdp.Device](cache.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix + "ssdp:",
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open description cache: %w", err)
		}
		return rc, rc.Close, nil
	}
	mc := cache.NewMemory[ssdp.Device](time.Minute)
	return mc, func() error { mc.Stop(); return nil }, nil
}

// Engine exposes the discovery engine.
func (a *App) Engine() *discovery.Engine { return a.engine }

// Sinks exposes the sink registry.
func (a *App) Sinks() *sink.MemoryRegistry { return a.sinks }

// Run starts the engine and every background subsystem and blocks until ctx
// is cancelled or one of them fails. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.closeResources()

	if err := a.engine.Init(ctx); err != nil {
		return fmt.Errorf("init discovery: %w", err)
	}
	a.registerApps(a.holder.Get().Discovery.Apps)

	g, gctx := errgroup.WithContext(ctx)

	a.sinks.AddSinkAddedListener(func(s sink.Sink) {
		a.logger.Info().
			Str(xglog.FieldEvent, "sink.added").
			Str(xglog.FieldSinkID, s.ID()).
			Str(xglog.FieldApplicationURL, s.ApplicationURL()).
			Msg("sink added")
		a.engine.HandleSinkAdded(gctx, s)
	})
	a.activities.AddRemovedListener(func(act activity.Activity) {
		a.logger.Info().
			Str(xglog.FieldEvent, "activity.removed").
			Str(xglog.FieldRouteID, act.Route.ID).
			Str(xglog.FieldSinkID, act.Route.SinkID).
			Str(xglog.FieldAppName, act.AppName).
			Msg("activity removed")
	})

	updates := make(chan config.AppConfig, 1)
	a.holder.RegisterListener(updates)

	g.Go(func() error {
		// Hot reload is optional; a watcher failure must not stop the daemon.
		if err := a.holder.Watch(gctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config watcher unavailable")
		}
		return nil
	})
	g.Go(func() error { return a.reloadLoop(gctx, updates) })
	g.Go(func() error { return a.discoverer.Run(gctx) })
	g.Go(func() error { return a.api.ListenAndServe(gctx) })

	a.engine.Start()
	a.logger.Info().
		Str(xglog.FieldEvent, "daemon.started").
		Strs("apps", a.engine.RegisteredApps()).
		Msg("dialwatch running")

	err := g.Wait()
	a.shutdown(ctx)
	return err
}

func (a *App) registerApps(apps []string) {
	for _, name := range apps {
		if err := a.engine.RegisterApp(name); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldAppName, name).Msg("skipping configured app")
		}
	}
}

func (a *App) shutdown(ctx context.Context) {
	a.engine.Stop()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := a.engine.Drain(drainCtx); err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "daemon.drain_timeout").Msg("in-flight queries still running")
	}

	snapCtx, cancelSnap := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancelSnap()
	if err := a.engine.Snapshot(snapCtx); err != nil {
		a.logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.snapshot_failed").Msg("registered apps not saved")
	}
	a.logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("dialwatch stopped")
}

func (a *App) closeResources() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing app store")
	}
	if err := a.closeCache(); err != nil {
		a.logger.Warn().Err(err).Msg("closing description cache")
	}
}

func staticSinks(in []config.StaticSinkConfig) []ssdp.StaticSink {
	out := make([]ssdp.StaticSink, 0, len(in))
	for _, s := range in {
		out = append(out, ssdp.StaticSink{ID: s.ID, FriendlyName: s.Name, ApplicationURL: s.ApplicationURL})
	}
	return out
}
