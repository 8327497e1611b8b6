// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig(t *testing.T) AppConfig {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(validConfig(t)))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"listen addr", func(c *AppConfig) { c.API.ListenAddr = "8089" }, "api.listenAddr"},
		{"scan interval", func(c *AppConfig) { c.Discovery.ScanInterval = time.Millisecond }, "discovery.scanInterval"},
		{"query timeout", func(c *AppConfig) { c.Discovery.QueryTimeout = 0 }, "discovery.queryTimeout"},
		{"ssdp window", func(c *AppConfig) { c.SSDP.Window = 2 * time.Minute }, "ssdp.window"},
		{"static sink url", func(c *AppConfig) {
			c.SSDP.StaticSinks = []StaticSinkConfig{{ID: "x", ApplicationURL: "not a url"}}
		}, "ssdp.staticSinks[0].applicationUrl"},
		{"backend", func(c *AppConfig) { c.Store.Backend = "etcd" }, "store.backend"},
		{"redis addr", func(c *AppConfig) {
			c.Store.Backend = "redis"
			c.Store.RedisAddr = ""
		}, "store.redisAddr"},
		{"exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
		{"sampling", func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, "telemetry.samplingRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			assert.ErrorContains(t, Validate(cfg), tt.field)
		})
	}
}

func TestValidate_DisabledSSDPSkipsTiming(t *testing.T) {
	cfg := validConfig(t)
	cfg.SSDP.Enabled = false
	cfg.SSDP.Interval = 0
	assert.NoError(t, Validate(cfg))
}
