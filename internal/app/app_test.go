package app

import (
	"context"
	"path/filepath"
	"testing"

	cvcfg "caravan/internal/config"
	"caravan/internal/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{}

func (stubSource) BuildRoute(ctx context.Context, symbol, interval string, limit int) (route.Route, error) {
	return route.FromValues([]int64{1, -1}), nil
}

func testConfig(t *testing.T) *cvcfg.Config {
	t.Helper()
	dir := t.TempDir()
	return &cvcfg.Config{
		App:     cvcfg.AppConfig{Env: "test", LogLevel: "info", HTTPAddr: ":0"},
		Store:   cvcfg.StoreConfig{RunsPath: filepath.Join(dir, "runs.db"), RoutesPath: filepath.Join(dir, "routes.db")},
		Planner: cvcfg.PlannerConfig{MaxExactStops: 10, MaxBatch: 8, MaxConcurrent: 2},
	}
}

func TestBuilderAssemblesApp(t *testing.T) {
	b := NewAppBuilder(testConfig(t), WithRouteSource(stubSource{}))
	a, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)
	t.Cleanup(func() { a.results.Close() })
	assert.NotNil(t, a.Evaluator())

	res := a.Evaluator().Preview([]int64{4, -8, 3})
	assert.Equal(t, 2, res.Count)
}

func TestBuilderRejectsNilConfig(t *testing.T) {
	b := NewAppBuilder(nil)
	_, err := b.Build(context.Background())
	assert.Error(t, err)

	_, err = NewApp(nil)
	assert.Error(t, err)
}
