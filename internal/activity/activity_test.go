// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_AddAndLookup(t *testing.T) {
	r := NewMemoryRegistry()

	require.NoError(t, r.Add(Activity{Route: Route{ID: "r1", SinkID: "s1"}, AppName: "YouTube"}))
	require.NoError(t, r.Add(Activity{Route: Route{ID: "r2", SinkID: "s2"}, AppName: "Netflix"}))

	assert.ErrorIs(t, r.Add(Activity{Route: Route{ID: "r1", SinkID: "s3"}, AppName: "YouTube"}), ErrDuplicateRoute)
	assert.ErrorIs(t, r.Add(Activity{Route: Route{ID: "r3"}, AppName: "YouTube"}), ErrInvalid)

	got, ok := r.BySinkID("s2")
	require.True(t, ok)
	assert.Equal(t, "r2", got.Route.ID)
	assert.False(t, got.CreatedAt.IsZero())

	_, ok = r.BySinkID("missing")
	assert.False(t, ok)

	got, ok = r.ByRouteID("r1")
	require.True(t, ok)
	assert.Equal(t, "s1", got.Route.SinkID)
	_, ok = r.ByRouteID("r3")
	assert.False(t, ok)

	all := r.Activities()
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].Route.ID)
}

func TestMemoryRegistry_RemoveNotifies(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Add(Activity{Route: Route{ID: "r1", SinkID: "s1"}, AppName: "YouTube"}))

	var removed []Activity
	r.AddRemovedListener(func(a Activity) { removed = append(removed, a) })

	assert.True(t, r.RemoveByRouteID("r1"))
	assert.False(t, r.RemoveByRouteID("r1"))

	require.Len(t, removed, 1)
	assert.Equal(t, "YouTube", removed[0].AppName)
	assert.Empty(t, r.Activities())
}
