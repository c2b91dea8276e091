package routelib

import (
	"context"
	"path/filepath"
	"testing"

	"caravan/internal/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "routes.db"))
	require.NoError(t, err)
	return store
}

func testRoute(name string, values ...int64) route.Route {
	r := route.FromValues(values)
	r.Name = name
	return r
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRoute("silk-road", 4, -8, 3), "demo"))
	got, err := store.Get(ctx, "silk-road")
	require.NoError(t, err)
	assert.Equal(t, "silk-road", got.Name)
	assert.Equal(t, []int64{4, -8, 3}, got.Values())
}

func TestSaveOverwritesByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRoute("r", 1, 2), ""))
	require.NoError(t, store.Save(ctx, testRoute("r", 5, -5, 5), "updated"))

	got, err := store.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, -5, 5}, got.Values())

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Stops)
	assert.Equal(t, "updated", entries[0].Note)
}

func TestSaveValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	assert.Error(t, store.Save(ctx, route.Route{Name: ""}, ""))
	assert.Error(t, store.Save(ctx, route.Route{Name: "empty"}, ""))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRoute("gone", 1), ""))
	require.NoError(t, store.Delete(ctx, "gone"))
	assert.ErrorIs(t, store.Delete(ctx, "gone"), ErrNotFound)
	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}
