// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command dialwatchd runs the DIAL app discovery daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/dialwatch/internal/config"
	"github.com/ManuGH/dialwatch/internal/daemon"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/telemetry"
	"github.com/ManuGH/dialwatch/internal/version"
)

const serviceName = "dialwatch"

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = config.ParseString(config.EnvPrefix+"CONFIG", "")
	}
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return 1
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: serviceName, Version: cfg.Version})
	logger = xglog.WithComponent("main")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("path", path).
		Str("store", cfg.Store.Backend).
		Bool("ssdp", cfg.SSDP.Enabled).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("failed to initialise tracing")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	app, err := daemon.NewApp(ctx, config.NewConfigHolder(cfg, loader))
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.init_failed").Msg("failed to build daemon")
		return 1
	}
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		return 1
	}
	return 0
}
