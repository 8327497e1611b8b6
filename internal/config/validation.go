// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/dialwatch/internal/validate"
)

// StoreBackends lists the accepted store.backend values.
var StoreBackends = []string{"memory", "json", "sqlite", "badger", "redis"}

// Validate checks ranges and cross-field requirements.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if !validate.LogLevel(cfg.LogLevel).IsValid() {
		v.AddError("logLevel", "must be one of debug, info, warn, error", cfg.LogLevel)
	}
	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Range("api.rateLimit", cfg.API.RateLimit, 1, 100000)

	v.DurationRange("discovery.scanInterval", cfg.Discovery.ScanInterval, time.Second, 24*time.Hour)
	v.DurationRange("discovery.cachePeriod", cfg.Discovery.CachePeriod, time.Second, 7*24*time.Hour)
	v.DurationRange("discovery.queryTimeout", cfg.Discovery.QueryTimeout, 100*time.Millisecond, 2*time.Minute)
	v.FloatRange("discovery.queryRate", cfg.Discovery.QueryRate, 0, 1000)
	v.NonNegative("discovery.queryBurst", cfg.Discovery.QueryBurst)

	if cfg.SSDP.Enabled {
		v.DurationRange("ssdp.interval", cfg.SSDP.Interval, 5*time.Second, 24*time.Hour)
		v.DurationRange("ssdp.window", cfg.SSDP.Window, 100*time.Millisecond, time.Minute)
		v.Range("ssdp.ttl", cfg.SSDP.TTL, 1, 255)
		if cfg.SSDP.Window >= cfg.SSDP.Interval {
			v.AddError("ssdp.window", "must be shorter than ssdp.interval", cfg.SSDP.Window)
		}
	}
	v.OneOf("ssdp.descriptionCache", cfg.SSDP.DescriptionCache, []string{"memory", "redis"})
	for i, s := range cfg.SSDP.StaticSinks {
		v.URL(fmt.Sprintf("ssdp.staticSinks[%d].applicationUrl", i), s.ApplicationURL, []string{"http", "https"})
	}

	v.OneOf("store.backend", cfg.Store.Backend, StoreBackends)
	switch cfg.Store.Backend {
	case "json", "sqlite", "badger":
		v.Directory("dataDir", cfg.DataDir, false)
	}
	if cfg.Store.Backend == "redis" || cfg.SSDP.DescriptionCache == "redis" {
		v.NotEmpty("store.redisAddr", cfg.Store.RedisAddr)
		v.Range("store.redisDb", cfg.Store.RedisDB, 0, 15)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	return v.Err()
}
