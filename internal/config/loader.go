// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr     = ":8089"
	DefaultRateLimit      = 120
	DefaultScanInterval   = 60 * time.Second
	DefaultCachePeriod    = 60 * time.Minute
	DefaultQueryTimeout   = 15 * time.Second
	DefaultSSDPInterval   = time.Minute
	DefaultSSDPWindow     = 3 * time.Second
	DefaultDescriptionTTL = 30 * time.Minute
	DefaultStoreBackend   = "json"
)

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key read during Load.
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the file the loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

// Load parses the file strictly, applies the environment and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	l.mergeEnv(&cfg)
	normalize(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "data",
		LogLevel: "info",
		API: APIConfig{
			ListenAddr: DefaultListenAddr,
			RateLimit:  DefaultRateLimit,
		},
		Discovery: DiscoveryConfig{
			ScanInterval: DefaultScanInterval,
			CachePeriod:  DefaultCachePeriod,
			QueryTimeout: DefaultQueryTimeout,
			QueryRate:    2,
			QueryBurst:   4,
		},
		SSDP: SSDPConfig{
			Enabled:          true,
			Interval:         DefaultSSDPInterval,
			Window:           DefaultSSDPWindow,
			TTL:              2,
			DescriptionTTL:   DefaultDescriptionTTL,
			DescriptionCache: "memory",
		},
		Store: StoreConfig{
			Backend:     DefaultStoreBackend,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "dialwatch:",
		},
		Telemetry: TelemetryConfig{
			Environment:  "production",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// loadFile decodes a single YAML document, rejecting unknown keys.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- the config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) {
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LogLevel, f.LogLevel)

	if a := f.API; a != nil {
		setString(&cfg.API.ListenAddr, a.ListenAddr)
		setPtr(&cfg.API.RateLimit, a.RateLimit)
	}
	if d := f.Discovery; d != nil {
		if d.Apps != nil {
			cfg.Discovery.Apps = d.Apps
		}
		setPtr(&cfg.Discovery.ScanInterval, d.ScanInterval)
		setPtr(&cfg.Discovery.CachePeriod, d.CachePeriod)
		setPtr(&cfg.Discovery.QueryTimeout, d.QueryTimeout)
		setPtr(&cfg.Discovery.QueryRate, d.QueryRate)
		setPtr(&cfg.Discovery.QueryBurst, d.QueryBurst)
	}
	if s := f.SSDP; s != nil {
		setPtr(&cfg.SSDP.Enabled, s.Enabled)
		setPtr(&cfg.SSDP.Interval, s.Interval)
		setPtr(&cfg.SSDP.Window, s.Window)
		setString(&cfg.SSDP.Interface, s.Interface)
		setPtr(&cfg.SSDP.TTL, s.TTL)
		setPtr(&cfg.SSDP.DescriptionTTL, s.DescriptionTTL)
		setString(&cfg.SSDP.DescriptionCache, s.DescriptionCache)
		if s.StaticSinks != nil {
			cfg.SSDP.StaticSinks = s.StaticSinks
		}
	}
	if s := f.Store; s != nil {
		setString(&cfg.Store.Backend, s.Backend)
		setString(&cfg.Store.RedisAddr, s.RedisAddr)
		setString(&cfg.Store.RedisPassword, s.RedisPassword)
		setPtr(&cfg.Store.RedisDB, s.RedisDB)
		setString(&cfg.Store.RedisPrefix, s.RedisPrefix)
	}
	if t := f.Telemetry; t != nil {
		setPtr(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Environment, t.Environment)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setPtr(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(l.key("DATA_DIR"), cfg.DataDir)
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)

	cfg.API.ListenAddr = ParseString(l.key("LISTEN_ADDR"), cfg.API.ListenAddr)
	cfg.API.RateLimit = ParseInt(l.key("API_RATE_LIMIT"), cfg.API.RateLimit)

	cfg.Discovery.Apps = ParseList(l.key("APPS"), cfg.Discovery.Apps)
	cfg.Discovery.ScanInterval = ParseDuration(l.key("SCAN_INTERVAL"), cfg.Discovery.ScanInterval)
	cfg.Discovery.CachePeriod = ParseDuration(l.key("CACHE_PERIOD"), cfg.Discovery.CachePeriod)
	cfg.Discovery.QueryTimeout = ParseDuration(l.key("QUERY_TIMEOUT"), cfg.Discovery.QueryTimeout)
	cfg.Discovery.QueryRate = ParseFloat(l.key("QUERY_RATE"), cfg.Discovery.QueryRate)
	cfg.Discovery.QueryBurst = ParseInt(l.key("QUERY_BURST"), cfg.Discovery.QueryBurst)

	cfg.SSDP.Enabled = ParseBool(l.key("SSDP_ENABLED"), cfg.SSDP.Enabled)
	cfg.SSDP.Interval = ParseDuration(l.key("SSDP_INTERVAL"), cfg.SSDP.Interval)
	cfg.SSDP.Window = ParseDuration(l.key("SSDP_WINDOW"), cfg.SSDP.Window)
	cfg.SSDP.Interface = ParseString(l.key("SSDP_INTERFACE"), cfg.SSDP.Interface)
	cfg.SSDP.TTL = ParseInt(l.key("SSDP_TTL"), cfg.SSDP.TTL)
	cfg.SSDP.DescriptionCache = ParseString(l.key("SSDP_DESCRIPTION_CACHE"), cfg.SSDP.DescriptionCache)

	cfg.Store.Backend = ParseString(l.key("STORE_BACKEND"), cfg.Store.Backend)
	cfg.Store.RedisAddr = ParseString(l.key("REDIS_ADDR"), cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = ParseString(l.key("REDIS_PASSWORD"), cfg.Store.RedisPassword)
	cfg.Store.RedisDB = ParseInt(l.key("REDIS_DB"), cfg.Store.RedisDB)

	cfg.Telemetry.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.key("OTLP_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTLP_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("TRACE_SAMPLING"), cfg.Telemetry.SamplingRate)
}

func normalize(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	seen := make(map[string]struct{}, len(cfg.Discovery.Apps))
	apps := cfg.Discovery.Apps[:0:0]
	for _, app := range cfg.Discovery.Apps {
		app = strings.TrimSpace(app)
		if _, dup := seen[app]; dup || app == "" {
			continue
		}
		seen[app] = struct{}{}
		apps = append(apps, app)
	}
	cfg.Discovery.Apps = apps
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
