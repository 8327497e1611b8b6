// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CollectsAllErrors(t *testing.T) {
	v := New()
	v.Range("api.rateLimit", 0, 1, 100)
	v.OneOf("store.backend", "etcd", []string{"json", "sqlite"})
	v.DurationRange("discovery.scanInterval", time.Millisecond, time.Second, time.Hour)
	v.FloatRange("telemetry.samplingRate", 1.5, 0, 1)

	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 4)
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	v.Range("n", 5, 1, 10)
	v.NotEmpty("s", "x")
	v.NonNegative("db", 0)
	v.URL("u", "http://10.0.0.2:8008/apps/", []string{"http", "https"})
	v.ListenAddr("listen", ":8089")
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidator_URL(t *testing.T) {
	tests := map[string]string{
		"empty":   "",
		"no host": "http:///apps",
		"scheme":  "ftp://host/apps",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			v := New()
			v.URL("u", raw, []string{"http", "https"})
			assert.False(t, v.IsValid())
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	v := New()
	v.ListenAddr("a", "localhost")
	v.ListenAddr("b", "127.0.0.1:")
	assert.Len(t, v.Errors(), 2)
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	v := New()
	v.Directory("data", filepath.Join(root, "created"), false)
	assert.True(t, v.IsValid())
	assert.DirExists(t, filepath.Join(root, "created"))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	v.Directory("file", file, true)
	v.Directory("missing", filepath.Join(root, "missing"), true)
	v.Directory("traversal", "../etc", false)
	assert.Len(t, v.Errors(), 3)
}

func TestLogLevel(t *testing.T) {
	assert.True(t, LogLevel("debug").IsValid())
	assert.False(t, LogLevel("trace").IsValid())
}
