// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"time"
)

// EngineChecker is unhealthy while the discovery engine is stopped.
type EngineChecker struct {
	IsRunning func() bool
}

func (EngineChecker) Name() string { return "discovery_engine" }

func (c EngineChecker) Check(context.Context) CheckResult {
	if !c.IsRunning() {
		return CheckResult{Status: StatusUnhealthy, Message: "engine stopped"}
	}
	return CheckResult{Status: StatusHealthy, Message: "engine running"}
}

// SinkChecker is degraded when no sink is known. An empty network is a
// valid state, so it never reports unhealthy.
type SinkChecker struct {
	Count func() int
}

func (SinkChecker) Name() string { return "sinks" }

func (c SinkChecker) Check(context.Context) CheckResult {
	n := c.Count()
	if n == 0 {
		return CheckResult{Status: StatusDegraded, Message: "no sinks discovered"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d sinks", n)}
}

// ScanChecker watches scan freshness. A scan older than MaxAge is degraded;
// no scan yet is healthy so startup does not flap.
type ScanChecker struct {
	LastScan func() time.Time
	MaxAge   time.Duration
	Now      func() time.Time
}

func (ScanChecker) Name() string { return "last_scan" }

func (c ScanChecker) Check(context.Context) CheckResult {
	last := c.LastScan()
	if last.IsZero() {
		return CheckResult{Status: StatusHealthy, Message: "no scan yet"}
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if age := now().Sub(last); age > c.MaxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last scan %s ago", age.Truncate(time.Second)),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "scan current"}
}
