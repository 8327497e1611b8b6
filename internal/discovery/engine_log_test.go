// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/dial"
	xglog "github.com/ManuGH/dialwatch/internal/log"
)

// lockedBuffer serialises writes from query goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) entries(t *testing.T, event string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry[xglog.FieldEvent] == event {
			out = append(out, entry)
		}
	}
	return out
}

func TestScan_TagsLogsWithScanCorrelationID(t *testing.T) {
	out := &lockedBuffer{}
	h := newHarness(t, newFakeGetter(respondState(dial.AppStateStopped)),
		WithLogger(zerolog.New(out)))
	h.addSink("s1")

	for _, route := range []string{"r1", "r2"} {
		require.NoError(t, h.activities.Add(activity.Activity{
			Route:   activity.Route{ID: route, SinkID: "s1"},
			AppName: "YouTube",
		}))
		h.engine.Scan(context.Background())
	}

	removed := out.entries(t, "discovery.activity_removed")
	require.Len(t, removed, 2)
	ids := make([]string, 0, len(removed))
	for _, entry := range removed {
		id, _ := entry[xglog.FieldCorrelationID].(string)
		_, err := uuid.Parse(id)
		require.NoError(t, err, "correlation id %q", id)
		ids = append(ids, id)
	}
	assert.NotEqual(t, ids[0], ids[1])
}
