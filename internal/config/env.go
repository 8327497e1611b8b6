// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dialwatch/internal/log"
)

// EnvPrefix prefixes every environment key dialwatch reads.
const EnvPrefix = "DIALWATCH_"

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "token")
}

// lookup returns the value and whether it should be used. Empty values fall
// back to the default.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ParseString reads a string from the environment or returns defaultValue.
// The chosen source is logged; sensitive values are not.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev.Bool("sensitive", true)
	} else {
		ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

// ParseInt falls back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l := envLogger()
		l.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment, using default")
		return defaultValue
	}
	l := envLogger()
	l.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseBool accepts the strconv.ParseBool spellings plus yes/no and on/off.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l := envLogger()
		l.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).
			Msg("invalid boolean in environment, using default")
		return defaultValue
	}
	return b
}

// ParseDuration accepts Go duration strings.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		l := envLogger()
		l.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).
			Msg("invalid duration in environment, using default")
		return defaultValue
	}
	return d
}

func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		l := envLogger()
		l.Warn().Str("key", key).Str("value", v).Float64("default", defaultValue).
			Msg("invalid float in environment, using default")
		return defaultValue
	}
	return f
}

// ParseList splits a comma separated value, dropping empty items.
func ParseList(key string, defaultValue []string) []string {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
