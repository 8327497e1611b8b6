// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads dialwatch configuration with the precedence
// environment > YAML file > defaults and hot-reloads it on file changes.
package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	API       APIConfig
	Discovery DiscoveryConfig
	SSDP      SSDPConfig
	Store     StoreConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	ListenAddr string
	// RateLimit is requests per minute per client IP.
	RateLimit int
}

type DiscoveryConfig struct {
	// Apps are registered at startup in addition to any saved ones.
	Apps         []string
	ScanInterval time.Duration
	CachePeriod  time.Duration
	QueryTimeout time.Duration
	// QueryRate limits DIAL requests per second per sink; zero disables.
	QueryRate  float64
	QueryBurst int
}

type SSDPConfig struct {
	Enabled        bool
	Interval       time.Duration
	Window         time.Duration
	Interface      string
	TTL            int
	DescriptionTTL time.Duration
	// DescriptionCache is "memory" or "redis".
	DescriptionCache string
	StaticSinks      []StaticSinkConfig
}

type StaticSinkConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	ApplicationURL string `yaml:"applicationUrl"`
}

type StoreConfig struct {
	// Backend is memory, json, sqlite, badger or redis.
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type TelemetryConfig struct {
	Enabled      bool
	Environment  string
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig mirrors the YAML layout. Pointers distinguish "unset" from an
// explicit zero value.
type FileConfig struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	API *struct {
		ListenAddr string `yaml:"listenAddr,omitempty"`
		RateLimit  *int   `yaml:"rateLimit,omitempty"`
	} `yaml:"api,omitempty"`

	Discovery *struct {
		Apps         []string       `yaml:"apps,omitempty"`
		ScanInterval *time.Duration `yaml:"scanInterval,omitempty"`
		CachePeriod  *time.Duration `yaml:"cachePeriod,omitempty"`
		QueryTimeout *time.Duration `yaml:"queryTimeout,omitempty"`
		QueryRate    *float64       `yaml:"queryRate,omitempty"`
		QueryBurst   *int           `yaml:"queryBurst,omitempty"`
	} `yaml:"discovery,omitempty"`

	SSDP *struct {
		Enabled          *bool              `yaml:"enabled,omitempty"`
		Interval         *time.Duration     `yaml:"interval,omitempty"`
		Window           *time.Duration     `yaml:"window,omitempty"`
		Interface        string             `yaml:"interface,omitempty"`
		TTL              *int               `yaml:"ttl,omitempty"`
		DescriptionTTL   *time.Duration     `yaml:"descriptionTtl,omitempty"`
		DescriptionCache string             `yaml:"descriptionCache,omitempty"`
		StaticSinks      []StaticSinkConfig `yaml:"staticSinks,omitempty"`
	} `yaml:"ssdp,omitempty"`

	Store *struct {
		Backend       string `yaml:"backend,omitempty"`
		RedisAddr     string `yaml:"redisAddr,omitempty"`
		RedisPassword string `yaml:"redisPassword,omitempty"`
		RedisDB       *int   `yaml:"redisDb,omitempty"`
		RedisPrefix   string `yaml:"redisPrefix,omitempty"`
	} `yaml:"store,omitempty"`

	Telemetry *struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Environment  string   `yaml:"environment,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	} `yaml:"telemetry,omitempty"`
}
