// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package discovery keeps the per-sink availability of registered DIAL apps
// up to date. It polls periodically, coalesces concurrent queries for the
// same (sink, app) pair, trusts known statuses for a cache period and tears
// down activities whose app stopped running.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/dial"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/metrics"
	"github.com/ManuGH/dialwatch/internal/sink"
	"github.com/ManuGH/dialwatch/internal/telemetry"
)

// SavedDataKey identifies the engine's slot in keyed persistence backends.
const SavedDataKey = "dial.app_discovery_service"

var ErrEmptyAppName = errors.New("discovery: app name must not be empty")

// Engine is the DIAL app discovery engine.
type Engine struct {
	sinks      sink.Registry
	activities activity.Registry
	newClient  ClientFactory
	store      AppSetStore
	clock      Clock
	logger     zerolog.Logger
	tracer     trace.Tracer

	scanInterval time.Duration
	cachePeriod  time.Duration
	queryTimeout time.Duration

	work tracker

	mu       sync.Mutex
	running  bool
	timer    *time.Timer
	timerGen uint64
	apps     []string
	appIndex map[string]struct{}
	clients  map[string]sinkClient
	flight   *singleflight.Group
	lastScan time.Time
}

// sinkClient is the transport client of one sink and the Application-URL it
// was built for.
type sinkClient struct {
	url    string
	getter dial.AppInfoGetter
}

// New creates a stopped engine.
func New(sinks sink.Registry, activities activity.Registry, newClient ClientFactory, opts ...Option) *Engine {
	e := &Engine{
		sinks:        sinks,
		activities:   activities,
		newClient:    newClient,
		clock:        realClock{},
		logger:       xglog.WithComponent("discovery"),
		tracer:       telemetry.Tracer("github.com/ManuGH/dialwatch/internal/discovery"),
		scanInterval: DefaultScanInterval,
		cachePeriod:  DefaultCachePeriod,
		queryTimeout: DefaultQueryTimeout,
		appIndex:     make(map[string]struct{}),
		clients:      make(map[string]sinkClient),
		flight:       &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init restores the registered app set from the store.
func (e *Engine) Init(ctx context.Context) error {
	return e.LoadSavedData(ctx)
}

// Start moves the engine to running and kicks off one scan cycle in the
// background. It is a no-op when already running.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.work.add()
	e.mu.Unlock()

	e.logger.Info().Str(xglog.FieldEvent, "discovery.started").Msg("app discovery started")
	go func() {
		defer e.work.done()
		e.Scan(context.Background())
	}()
}

// Stop cancels the rescan timer and forgets pending-query bookkeeping.
// Queries already on the wire still complete and may update sinks.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
	e.flight = &singleflight.Group{}
	e.mu.Unlock()

	if wasRunning {
		e.logger.Info().Str(xglog.FieldEvent, "discovery.stopped").Msg("app discovery stopped")
	}
}

// IsRunning reports the run state.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Drain waits until all background scans and queries have settled.
func (e *Engine) Drain(ctx context.Context) error {
	return e.work.wait(ctx)
}

// RegisterApp adds appName to the registered set. Re-registering an app
// whose status is known on every sink does nothing. Otherwise the engine is
// started (when there are sinks) or the app is queried on every sink right
// away.
func (e *Engine) RegisterApp(appName string) error {
	if strings.TrimSpace(appName) == "" {
		return ErrEmptyAppName
	}
	sinks := e.sinks.Sinks()

	e.mu.Lock()
	if _, ok := e.appIndex[appName]; ok && statusKnownEverywhere(sinks, appName) {
		e.mu.Unlock()
		return nil
	}
	e.addAppLocked(appName)
	running := e.running
	count := len(e.apps)
	e.mu.Unlock()
	metrics.SetRegisteredApps(count)

	if !running {
		if e.sinks.SinkCount() > 0 {
			e.Start()
		}
		return nil
	}
	ctx := context.Background()
	for _, s := range sinks {
		e.scanSinkForApp(ctx, s, appName)
	}
	return nil
}

// UnregisterApp removes appName. Cached statuses and in-flight queries are
// left alone.
func (e *Engine) UnregisterApp(appName string) {
	e.mu.Lock()
	if _, ok := e.appIndex[appName]; !ok {
		e.mu.Unlock()
		return
	}
	delete(e.appIndex, appName)
	for i, name := range e.apps {
		if name == appName {
			e.apps = append(e.apps[:i], e.apps[i+1:]...)
			break
		}
	}
	count := len(e.apps)
	e.mu.Unlock()
	metrics.SetRegisteredApps(count)
}

// RegisteredApps returns the registered names in registration order.
func (e *Engine) RegisteredApps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.apps...)
}

func (e *Engine) AppCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.apps)
}

// LastScan reports when the most recent scan cycle settled; zero before
// the first.
func (e *Engine) LastScan() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastScan
}

// ScanInterval is the configured rescan period.
func (e *Engine) ScanInterval() time.Duration { return e.scanInterval }

// Scan runs one settle-all cycle over registered apps and tracked
// activities, then schedules the next cycle if none is pending.
func (e *Engine) Scan(ctx context.Context) {
	scanID := uuid.NewString()
	ctx = xglog.ContextWithCorrelationID(ctx, scanID)
	ctx, span := e.tracer.Start(ctx, "discovery.scan")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.ScanIDKey, scanID))
	started := time.Now()

	apps := e.RegisteredApps()
	sinks := e.sinks.Sinks()
	e.forgetClients(sinks)
	var futures []*Future
	for _, s := range sinks {
		futures = append(futures, e.scanSinkApps(ctx, s, apps)...)
	}
	acts := e.activities.Activities()
	for _, a := range acts {
		futures = append(futures, e.scanActivity(ctx, a))
	}
	settleAll(futures)

	elapsed := time.Since(started)
	metrics.ObserveScan(elapsed)
	e.mu.Lock()
	e.lastScan = e.clock.Now()
	e.mu.Unlock()
	span.SetAttributes(
		attribute.Int(telemetry.ScanQueriesKey, len(futures)),
		attribute.Int(telemetry.ScanActivitiesKey, len(acts)),
	)
	logger := xglog.WithContext(ctx, e.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "discovery.scan_complete").
		Int("futures", len(futures)).
		Dur("duration", elapsed).
		Msg("scan cycle complete")

	e.scheduleNext()
}

// ScanSink queries every registered app on s, one future per app.
func (e *Engine) ScanSink(ctx context.Context, s sink.Sink) []*Future {
	return e.scanSinkApps(ctx, s, e.RegisteredApps())
}

// HandleSinkAdded reacts to a newly discovered sink.
func (e *Engine) HandleSinkAdded(ctx context.Context, s sink.Sink) {
	if e.IsRunning() {
		e.ScanSink(ctx, s)
		return
	}
	if e.AppCount() > 0 {
		e.Start()
	}
}

func (e *Engine) scanSinkApps(ctx context.Context, s sink.Sink, apps []string) []*Future {
	futures := make([]*Future, 0, len(apps))
	for _, app := range apps {
		futures = append(futures, e.scanSinkForApp(ctx, s, app))
	}
	return futures
}

// scanSinkForApp refreshes the status of app on s unless the sink cannot
// answer or the cached status is still fresh.
func (e *Engine) scanSinkForApp(ctx context.Context, s sink.Sink, app string) *Future {
	if !s.SupportsAppAvailability() {
		return settled(nil)
	}
	if s.AppStatus(app) != sink.AppStatusUnknown &&
		e.clock.Now().Sub(s.AppStatusTimestamp(app)) < e.cachePeriod {
		metrics.RecordCacheDecision(true)
		return settled(nil)
	}
	metrics.RecordCacheDecision(false)

	return e.spawn(func() error {
		info, err := e.getAppInfo(ctx, s, app)
		if err != nil {
			if errors.Is(err, dial.ErrNotFound) {
				e.updateAppStatus(s, app, sink.AppStatusUnavailable)
				return nil
			}
			logger := xglog.WithContext(ctx, e.logger)
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "discovery.capability_downgrade").
				Str(xglog.FieldSinkID, s.ID()).
				Str(xglog.FieldAppName, app).
				Msg("app info query failed, sink no longer queried for app availability")
			s.SetSupportsAppAvailability(false)
			metrics.RecordCapabilityDowngrade()
			return err
		}
		e.updateAppStatus(s, app, classify(info))
		return nil
	})
}

// scanActivity removes the activity when its app is no longer running.
func (e *Engine) scanActivity(ctx context.Context, a activity.Activity) *Future {
	s, ok := e.sinks.SinkByID(a.Route.SinkID)
	if !ok {
		logger := xglog.WithContext(ctx, e.logger)
		logger.Warn().
			Str(xglog.FieldEvent, "discovery.activity_sink_missing").
			Str(xglog.FieldRouteID, a.Route.ID).
			Str(xglog.FieldSinkID, a.Route.SinkID).
			Msg("sink for activity not found")
		return settled(nil)
	}
	if !s.SupportsAppAvailability() {
		return settled(nil)
	}

	return e.spawn(func() error {
		info, err := e.getAppInfo(ctx, s, a.AppName)
		if err != nil {
			e.removeActivity(ctx, a, "query_failed")
			return err
		}
		if info.State != dial.AppStateRunning {
			e.removeActivity(ctx, a, "not_running")
		}
		return nil
	})
}

// removeActivity removes a only if its route is still tracked for the same
// sink and app.
func (e *Engine) removeActivity(ctx context.Context, a activity.Activity, reason string) {
	current, ok := e.activities.ByRouteID(a.Route.ID)
	if !ok || current.Route.SinkID != a.Route.SinkID || current.AppName != a.AppName {
		return
	}
	if !e.activities.RemoveByRouteID(a.Route.ID) {
		return
	}
	metrics.RecordActivityRemoved(reason)
	logger := xglog.WithContext(ctx, e.logger)
	logger.Info().
		Str(xglog.FieldEvent, "discovery.activity_removed").
		Str(xglog.FieldRouteID, a.Route.ID).
		Str(xglog.FieldSinkID, a.Route.SinkID).
		Str(xglog.FieldAppName, a.AppName).
		Str("reason", reason).
		Msg("activity removed")
}

// getAppInfo issues or joins the query for (s, app). The pending entry is
// gone before any caller observes the result.
func (e *Engine) getAppInfo(ctx context.Context, s sink.Sink, app string) (*dial.AppInfo, error) {
	key := s.ID() + ":" + app

	e.mu.Lock()
	client := e.clientLocked(s)
	flight := e.flight
	e.mu.Unlock()

	qctx := context.WithoutCancel(ctx)
	ch := flight.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(qctx, e.queryTimeout)
		defer cancel()
		ctx, span := e.tracer.Start(ctx, "dial.get_app_info",
			trace.WithAttributes(telemetry.DialAttributes(s.ID(), app)...))
		defer span.End()

		info, err := client.GetAppInfo(ctx, app)
		if err == nil && info == nil {
			err = &dial.DIALError{Sentinel: dial.ErrBadResponse, Operation: "get_app_info"}
		}
		switch {
		case err == nil:
			metrics.RecordDialQuery("success")
			span.SetAttributes(attribute.String(telemetry.DialAppStateKey, string(info.State)))
		case errors.Is(err, dial.ErrNotFound):
			metrics.RecordDialQuery("not_found")
		default:
			metrics.RecordDialQuery("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if err != nil {
			return nil, err
		}
		return info, nil
	})

	res := <-ch
	if res.Shared {
		metrics.RecordDedupJoin()
	}
	if res.Err != nil {
		return nil, fmt.Errorf("app info %s: %w", key, res.Err)
	}
	return res.Val.(*dial.AppInfo), nil
}

// clientLocked returns the sink's client, replacing it when the sink's
// Application-URL changed. Caller holds e.mu.
func (e *Engine) clientLocked(s sink.Sink) dial.AppInfoGetter {
	url := s.ApplicationURL()
	if c, ok := e.clients[s.ID()]; ok && c.url == url {
		return c.getter
	}
	c := sinkClient{url: url, getter: e.newClient(s)}
	e.clients[s.ID()] = c
	return c.getter
}

// forgetClients drops clients of sinks that left the registry.
func (e *Engine) forgetClients(live []sink.Sink) {
	ids := make(map[string]struct{}, len(live))
	for _, s := range live {
		ids[s.ID()] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.clients {
		if _, ok := ids[id]; !ok {
			delete(e.clients, id)
		}
	}
}

// updateAppStatus always refreshes the timestamp but only notifies the
// registry on a transition.
func (e *Engine) updateAppStatus(s sink.Sink, app string, status sink.AppStatus) {
	old := s.AppStatus(app)
	s.SetAppStatus(app, status, e.clock.Now())
	if old == status {
		return
	}
	e.logger.Info().
		Str(xglog.FieldEvent, "discovery.app_status_changed").
		Str(xglog.FieldSinkID, s.ID()).
		Str(xglog.FieldAppName, app).
		Str(xglog.FieldOldStatus, old.String()).
		Str(xglog.FieldNewStatus, status.String()).
		Msg("app status changed")
	e.sinks.OnAppStatusChanged(app, s)
}

func (e *Engine) scheduleNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.timer != nil {
		return
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = time.AfterFunc(e.scanInterval, func() { e.onTimer(gen) })
}

// onTimer runs on the timer goroutine. Work is registered under the lock so
// a Stop followed by Drain always observes this cycle.
func (e *Engine) onTimer(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen || e.timer == nil || !e.running {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.work.add()
	e.mu.Unlock()

	defer e.work.done()
	e.Scan(context.Background())
}

func (e *Engine) rescanScheduled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

func (e *Engine) addAppLocked(appName string) {
	if _, ok := e.appIndex[appName]; ok {
		return
	}
	e.appIndex[appName] = struct{}{}
	e.apps = append(e.apps, appName)
}

func statusKnownEverywhere(sinks []sink.Sink, app string) bool {
	for _, s := range sinks {
		if s.AppStatus(app) == sink.AppStatusUnknown {
			return false
		}
	}
	return true
}

func (e *Engine) spawn(fn func() error) *Future {
	e.work.add()
	return goFuture(func() error {
		defer e.work.done()
		return fn()
	})
}

// tracker counts outstanding background work.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
