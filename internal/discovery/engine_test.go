// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/dial"
	"github.com/ManuGH/dialwatch/internal/sink"
)

func TestScan_StoppedAppIsAvailableOnEverySink(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateStopped)))
	s1, s2 := h.addSink("s1"), h.addSink("s2")
	h.register("YouTube")

	h.engine.Scan(context.Background())

	assert.Equal(t, sink.AppStatusAvailable, s1.AppStatus("YouTube"))
	assert.Equal(t, sink.AppStatusAvailable, s2.AppStatus("YouTube"))
	assert.Equal(t, 2, h.getter.Calls("YouTube"))
	assert.Equal(t, 2, h.changeCount())
}

func TestScan_NotFoundMarksUnavailable(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondErr(errNotFound)))
	s1, s2 := h.addSink("s1"), h.addSink("s2")
	h.register("YouTube")

	h.engine.Scan(context.Background())

	assert.Equal(t, sink.AppStatusUnavailable, s1.AppStatus("YouTube"))
	assert.Equal(t, sink.AppStatusUnavailable, s2.AppStatus("YouTube"))
	assert.True(t, s1.SupportsAppAvailability())
	assert.True(t, s2.SupportsAppAvailability())
	assert.Equal(t, 2, h.changeCount())
}

func TestScan_GenericErrorDowngradesSink(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondErr(errors.New("connection reset"))))
	s1, s2 := h.addSink("s1"), h.addSink("s2")
	h.register("YouTube")

	h.engine.Scan(context.Background())

	assert.Equal(t, sink.AppStatusUnknown, s1.AppStatus("YouTube"))
	assert.Equal(t, sink.AppStatusUnknown, s2.AppStatus("YouTube"))
	assert.False(t, s1.SupportsAppAvailability())
	assert.False(t, s2.SupportsAppAvailability())
	assert.Zero(t, h.changeCount())

	h.engine.Scan(context.Background())
	assert.Equal(t, 2, h.getter.TotalCalls(), "downgraded sinks are skipped")
}

func TestScan_NetflixNeedsWebsocketCapability(t *testing.T) {
	tests := []struct {
		name  string
		extra map[string]string
		want  sink.AppStatus
	}{
		{name: "websocket", extra: map[string]string{"capabilities": "websocket"}, want: sink.AppStatusAvailable},
		{name: "no capabilities", want: sink.AppStatusUnavailable},
		{name: "other capability", extra: map[string]string{"capabilities": "dial"}, want: sink.AppStatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newFakeGetter(func(_ context.Context, app string) (*dial.AppInfo, error) {
				return &dial.AppInfo{Name: app, State: dial.AppStateStopped, ExtraData: tt.extra}, nil
			}))
			s := h.addSink("s1")
			h.register("Netflix")

			h.engine.Scan(context.Background())

			assert.Equal(t, tt.want, s.AppStatus("Netflix"))
		})
	}
}

func TestScan_ClassifiesStates(t *testing.T) {
	tests := []struct {
		state dial.AppState
		want  sink.AppStatus
	}{
		{dial.AppStateRunning, sink.AppStatusAvailable},
		{dial.AppStateStopped, sink.AppStatusAvailable},
		{dial.AppStateInstallable, sink.AppStatusUnavailable},
		{dial.AppStateHidden, sink.AppStatusUnavailable},
		{dial.AppStateUnknown, sink.AppStatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			h := newHarness(t, newFakeGetter(respondState(tt.state)))
			s := h.addSink("s1")
			h.register("YouTube")

			h.engine.Scan(context.Background())

			assert.Equal(t, tt.want, s.AppStatus("YouTube"))
		})
	}
}

func TestScan_CachePeriodExpiry(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	s := h.addSink("s1")
	h.register("YouTube")

	h.engine.Scan(context.Background())
	require.Equal(t, sink.AppStatusAvailable, s.AppStatus("YouTube"))
	require.Equal(t, 1, h.changeCount())

	h.clock.Advance(DefaultCachePeriod - time.Second)
	h.engine.Scan(context.Background())
	assert.Equal(t, 1, h.getter.Calls("YouTube"), "fresh status must be served from cache")

	h.clock.Advance(time.Second)
	h.getter.SetResponder(respondErr(errNotFound))
	h.engine.Scan(context.Background())

	assert.Equal(t, 2, h.getter.Calls("YouTube"))
	assert.Equal(t, sink.AppStatusUnavailable, s.AppStatus("YouTube"))
	assert.Equal(t, 2, h.changeCount())
}

func TestScan_UnchangedStatusRefreshesTimestampOnly(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	s := h.addSink("s1")
	h.register("YouTube")

	h.engine.Scan(context.Background())
	h.clock.Advance(DefaultCachePeriod)
	h.engine.Scan(context.Background())

	assert.Equal(t, 2, h.getter.Calls("YouTube"))
	assert.Equal(t, 1, h.changeCount())
	assert.Equal(t, h.clock.Now(), s.AppStatusTimestamp("YouTube"))
}

func TestScan_SkipsSinksWithoutAppAvailability(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	s := h.addSink("s1")
	s.SetSupportsAppAvailability(false)
	h.register("YouTube")

	futures := h.engine.ScanSink(context.Background(), s)
	require.Len(t, futures, 1)
	select {
	case <-futures[0].Done():
	default:
		t.Fatal("future for an incapable sink must already be settled")
	}
	assert.Zero(t, h.getter.TotalCalls())
}

func TestScan_CallerCancellationIsNotAFailure(t *testing.T) {
	h := newHarness(t, newFakeGetter(func(ctx context.Context, app string) (*dial.AppInfo, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &dial.AppInfo{Name: app, State: dial.AppStateRunning}, nil
	}))
	s := h.addSink("s1")
	h.register("YouTube")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, f := range h.engine.ScanSink(ctx, s) {
		require.NoError(t, f.Wait(context.Background()))
	}

	assert.Equal(t, sink.AppStatusAvailable, s.AppStatus("YouTube"))
	assert.True(t, s.SupportsAppAvailability())
}

func TestScan_QueryTimeoutDowngradesSink(t *testing.T) {
	h := newHarness(t, newFakeGetter(func(ctx context.Context, _ string) (*dial.AppInfo, error) {
		<-ctx.Done()
		return nil, &dial.DIALError{Sentinel: dial.ErrTimeout, Operation: "get_app_info", Err: ctx.Err()}
	}), WithQueryTimeout(20*time.Millisecond))
	s := h.addSink("s1")
	h.register("YouTube")

	h.engine.Scan(context.Background())

	assert.False(t, s.SupportsAppAvailability())
	assert.Equal(t, sink.AppStatusUnknown, s.AppStatus("YouTube"))
}

func TestGetAppInfo_ConcurrentCallersShareOneQuery(t *testing.T) {
	getter := newFakeGetter(respondState(dial.AppStateRunning))
	getter.gate = make(chan struct{})
	getter.started = make(chan string, 4)
	h := newHarness(t, getter)
	s := h.addSink("s1")
	h.register("YouTube")

	first := h.engine.ScanSink(context.Background(), s)
	<-getter.started
	second := h.engine.ScanSink(context.Background(), s)
	time.Sleep(50 * time.Millisecond)
	close(getter.gate)

	settleAll(append(first, second...))
	assert.Equal(t, 1, getter.Calls("YouTube"))
	assert.Equal(t, sink.AppStatusAvailable, s.AppStatus("YouTube"))
	assert.Equal(t, 1, h.changeCount())

	_, err := h.engine.getAppInfo(context.Background(), s, "YouTube")
	require.NoError(t, err)
	assert.Equal(t, 2, getter.Calls("YouTube"), "settled queries must not be joined")
}

func TestStop_DiscardsPendingQueries(t *testing.T) {
	getter := newFakeGetter(respondState(dial.AppStateRunning))
	getter.gate = make(chan struct{})
	getter.started = make(chan string, 4)
	h := newHarness(t, getter)
	s := h.addSink("s1")

	var wg sync.WaitGroup
	query := func() {
		defer wg.Done()
		_, _ = h.engine.getAppInfo(context.Background(), s, "YouTube")
	}

	wg.Add(1)
	go query()
	<-getter.started

	h.engine.Stop()

	wg.Add(1)
	go query()
	<-getter.started

	close(getter.gate)
	wg.Wait()
	assert.Equal(t, 2, getter.Calls("YouTube"))
}

func TestScanActivity_StoppedAppRemovesActivity(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateStopped)))
	h.addSink("s1")
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "s1"},
		AppName: "YouTube",
	}))

	h.engine.Scan(context.Background())

	assert.Empty(t, h.activities.Activities())
	removed := h.removedActivities()
	require.Len(t, removed, 1)
	assert.Equal(t, "r1", removed[0].Route.ID)
}

func TestScanActivity_RunningAppKeepsActivity(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.addSink("s1")
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "s1"},
		AppName: "YouTube",
	}))

	h.engine.Scan(context.Background())

	assert.Len(t, h.activities.Activities(), 1)
	assert.Empty(t, h.removedActivities())
}

func TestScanActivity_QueryFailureRemovesActivity(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondErr(errors.New("boom"))))
	s := h.addSink("s1")
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "s1"},
		AppName: "YouTube",
	}))

	h.engine.Scan(context.Background())

	assert.Empty(t, h.activities.Activities())
	assert.True(t, s.SupportsAppAvailability(), "activity checks never downgrade a sink")
}

func TestScanActivity_MissingSinkIsIgnored(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateStopped)))
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "ghost"},
		AppName: "YouTube",
	}))

	h.engine.Scan(context.Background())

	assert.Len(t, h.activities.Activities(), 1)
	assert.Zero(t, h.getter.TotalCalls())
}

func TestScanActivity_ReplacedActivityIsKept(t *testing.T) {
	getter := newFakeGetter(respondState(dial.AppStateStopped))
	getter.gate = make(chan struct{})
	getter.started = make(chan string, 4)
	h := newHarness(t, getter)
	h.addSink("s1")
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "s1"},
		AppName: "YouTube",
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.engine.Scan(context.Background())
	}()
	<-getter.started

	require.True(t, h.activities.RemoveByRouteID("r1"))
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r2", SinkID: "s1"},
		AppName: "Netflix",
	}))
	close(getter.gate)
	<-done

	acts := h.activities.Activities()
	require.Len(t, acts, 1)
	assert.Equal(t, "r2", acts[0].Route.ID)
}

func TestScanActivity_SeveralActivitiesOnOneSink(t *testing.T) {
	h := newHarness(t, newFakeGetter(func(_ context.Context, app string) (*dial.AppInfo, error) {
		if app == "Netflix" {
			return &dial.AppInfo{Name: app, State: dial.AppStateStopped}, nil
		}
		return &dial.AppInfo{Name: app, State: dial.AppStateRunning}, nil
	}))
	h.addSink("s1")
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r1", SinkID: "s1"},
		AppName: "YouTube",
	}))
	require.NoError(t, h.activities.Add(activity.Activity{
		Route:   activity.Route{ID: "r2", SinkID: "s1"},
		AppName: "Netflix",
	}))

	h.engine.Scan(context.Background())

	var routes []string
	for _, a := range h.activities.Activities() {
		routes = append(routes, a.Route.ID)
	}
	assert.Equal(t, []string{"r1"}, routes)
	removed := h.removedActivities()
	require.Len(t, removed, 1)
	assert.Equal(t, "r2", removed[0].Route.ID)
}

func TestRegisterApp_RejectsEmptyName(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	assert.ErrorIs(t, h.engine.RegisterApp(""), ErrEmptyAppName)
	assert.ErrorIs(t, h.engine.RegisterApp("   "), ErrEmptyAppName)
	assert.Zero(t, h.engine.AppCount())
}

func TestRegisterApp_WithoutSinksDoesNotStart(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))

	require.NoError(t, h.engine.RegisterApp("YouTube"))

	assert.False(t, h.engine.IsRunning())
	assert.Equal(t, []string{"YouTube"}, h.engine.RegisteredApps())
	assert.Zero(t, h.getter.TotalCalls())
}

func TestRegisterApp_StartsEngineWhenSinksExist(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	s := h.addSink("s1")

	require.NoError(t, h.engine.RegisterApp("YouTube"))
	h.drain()

	assert.True(t, h.engine.IsRunning())
	assert.True(t, h.engine.rescanScheduled())
	assert.Equal(t, 1, h.getter.Calls("YouTube"))
	assert.Equal(t, sink.AppStatusAvailable, s.AppStatus("YouTube"))
}

func TestRegisterApp_WhileRunningQueriesImmediately(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	s := h.addSink("s1")
	h.engine.Start()
	h.drain()

	require.NoError(t, h.engine.RegisterApp("Netflix"))
	h.drain()

	assert.Equal(t, 1, h.getter.Calls("Netflix"))
	assert.Equal(t, sink.AppStatusUnavailable, s.AppStatus("Netflix"))
}

func TestRegisterApp_KnownEverywhereIsNoop(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.addSink("s1")

	require.NoError(t, h.engine.RegisterApp("YouTube"))
	h.drain()
	require.NoError(t, h.engine.RegisterApp("YouTube"))
	h.drain()

	assert.Equal(t, 1, h.getter.Calls("YouTube"))
	assert.Equal(t, []string{"YouTube"}, h.engine.RegisteredApps())

	h.addSink("s2")
	require.NoError(t, h.engine.RegisterApp("YouTube"))
	h.drain()
	assert.Equal(t, 2, h.getter.Calls("YouTube"), "only the new sink is queried")
	assert.Equal(t, 1, h.engine.AppCount())
}

func TestUnregisterApp(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.register("YouTube", "Netflix", "Pandora")

	h.engine.UnregisterApp("Netflix")
	h.engine.UnregisterApp("Unknown")

	assert.Equal(t, []string{"YouTube", "Pandora"}, h.engine.RegisteredApps())
	assert.Equal(t, 2, h.engine.AppCount())
}

func TestStart_IsIdempotent(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.addSink("s1")
	h.register("YouTube")

	h.engine.Start()
	h.engine.Start()
	h.drain()

	assert.Equal(t, 1, h.getter.Calls("YouTube"))
}

func TestStartStop_PeriodicRescan(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)),
		WithClock(realClock{}),
		WithScanInterval(20*time.Millisecond),
		WithCachePeriod(time.Nanosecond),
	)
	h.addSink("s1")
	h.register("YouTube")

	h.engine.Start()
	assert.Eventually(t, func() bool {
		return h.getter.Calls("YouTube") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	h.engine.Stop()
	h.drain()
	assert.False(t, h.engine.rescanScheduled())

	calls := h.getter.Calls("YouTube")
	time.Sleep(80 * time.Millisecond)
	h.drain()
	assert.Equal(t, calls, h.getter.Calls("YouTube"), "no scans after stop")

	h.engine.Stop()
	assert.False(t, h.engine.IsRunning())
}

func TestHandleSinkAdded(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.register("YouTube")

	s1 := h.addSink("s1")
	h.engine.HandleSinkAdded(context.Background(), s1)
	h.drain()
	require.True(t, h.engine.IsRunning())
	assert.Equal(t, sink.AppStatusAvailable, s1.AppStatus("YouTube"))

	s2 := h.addSink("s2")
	h.engine.HandleSinkAdded(context.Background(), s2)
	h.drain()
	assert.Equal(t, sink.AppStatusAvailable, s2.AppStatus("YouTube"))
	assert.Equal(t, 2, h.getter.Calls("YouTube"))
}

func TestHandleSinkAdded_NoAppsStaysStopped(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	h.engine.HandleSinkAdded(context.Background(), h.addSink("s1"))
	assert.False(t, h.engine.IsRunning())
}

func TestScan_RecordsLastScan(t *testing.T) {
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateRunning)))
	assert.True(t, h.engine.LastScan().IsZero())

	h.engine.Scan(context.Background())
	assert.Equal(t, h.clock.Now(), h.engine.LastScan())
	assert.Equal(t, DefaultScanInterval, h.engine.ScanInterval())
}

func TestClients_FollowSinkApplicationURL(t *testing.T) {
	var mu sync.Mutex
	var built []string
	getter := newFakeGetter(respondState(dial.AppStateRunning))
	h := newHarness(t, getter)
	h.engine.newClient = func(s sink.Sink) dial.AppInfoGetter {
		mu.Lock()
		defer mu.Unlock()
		built = append(built, s.ApplicationURL())
		return getter
	}
	s := h.addSink("s1")
	h.register("YouTube")

	h.engine.Scan(context.Background())
	h.engine.Scan(context.Background())

	s.UpdateDescription("TV s1", "http://s1.local:9000/apps/")
	h.clock.Advance(DefaultCachePeriod + time.Second)
	h.engine.Scan(context.Background())

	mu.Lock()
	assert.Equal(t, []string{"http://s1.local:8008/apps/", "http://s1.local:9000/apps/"}, built)
	mu.Unlock()
	h.engine.mu.Lock()
	assert.Len(t, h.engine.clients, 1)
	h.engine.mu.Unlock()

	require.True(t, h.sinks.Remove("s1"))
	h.engine.Scan(context.Background())

	h.engine.mu.Lock()
	assert.Empty(t, h.engine.clients)
	h.engine.mu.Unlock()
}
