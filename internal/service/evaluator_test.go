package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"caravan/internal/route"
	"caravan/internal/store/runs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	route route.Route
	err   error
}

func (s stubSource) BuildRoute(ctx context.Context, symbol, interval string, limit int) (route.Route, error) {
	if s.err != nil {
		return route.Route{}, s.err
	}
	return s.route, nil
}

func newTestEvaluator(t *testing.T, cfg EvaluatorConfig) (*Evaluator, *runs.ResultStore) {
	t.Helper()
	store, err := runs.NewResultStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cfg.Results = store
	ev, err := NewEvaluator(cfg)
	require.NoError(t, err)
	return ev, store
}

func waitForRun(t *testing.T, store *runs.ResultStore, id string) runs.Run {
	t.Helper()
	var got runs.Run
	require.Eventually(t, func() bool {
		run, err := store.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		got = run
		return run.Status == runs.RunStatusDone || run.Status == runs.RunStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestStartRunInlineLifecycle(t *testing.T) {
	ev, store := newTestEvaluator(t, EvaluatorConfig{})

	run, err := ev.StartRun(RunRequest{Values: []int64{6, -6, 3, -5, 3, -5}})
	require.NoError(t, err)
	assert.Equal(t, runs.RunStatusPending, run.Status)
	assert.Equal(t, runs.SourceInline, run.Source)

	done := waitForRun(t, store, run.ID)
	assert.Equal(t, runs.RunStatusDone, done.Status)
	assert.Equal(t, 5, done.Selected)
	assert.Equal(t, 6, done.Stats.Stops)
	assert.Equal(t, 1, done.Stats.Skipped)
	assert.Equal(t, int64(2), done.FinalBal)
	// The -6 at index 1 is the only stop skipped.
	assert.Equal(t, []int{0, 2, 3, 4, 5}, done.SelectedIdx)

	decisions, err := store.ListDecisions(context.Background(), run.ID, 0)
	require.NoError(t, err)
	assert.Len(t, decisions, 6)

	snaps, err := store.ListSnapshots(context.Background(), run.ID, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 5)
	assert.Equal(t, int64(2), snaps[4].Balance)
}

func TestStartRunMarketSource(t *testing.T) {
	rt := route.FromValues([]int64{4, -8, 3})
	rt.Symbol = "ETHUSDT"
	ev, store := newTestEvaluator(t, EvaluatorConfig{Source: stubSource{route: rt}})

	run, err := ev.StartRun(RunRequest{Symbol: "ETHUSDT", Interval: "1h", Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, runs.SourceMarket, run.Source)

	done := waitForRun(t, store, run.ID)
	assert.Equal(t, runs.RunStatusDone, done.Status)
	assert.Equal(t, 2, done.Selected)
}

func TestStartRunMarketFailure(t *testing.T) {
	ev, store := newTestEvaluator(t, EvaluatorConfig{Source: stubSource{err: fmt.Errorf("boom")}})

	run, err := ev.StartRun(RunRequest{Symbol: "ETHUSDT"})
	require.NoError(t, err)

	done := waitForRun(t, store, run.ID)
	assert.Equal(t, runs.RunStatusFailed, done.Status)
	assert.Contains(t, done.Message, "boom")
}

func TestStartRunRejectsAmbiguousRequest(t *testing.T) {
	ev, _ := newTestEvaluator(t, EvaluatorConfig{})
	_, err := ev.StartRun(RunRequest{})
	assert.Error(t, err)
	_, err = ev.StartRun(RunRequest{Source: "library"})
	assert.Error(t, err)
	_, err = ev.StartRun(RunRequest{Source: "nope", Values: []int64{1}})
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	ev, _ := newTestEvaluator(t, EvaluatorConfig{})
	res := ev.Preview([]int64{100, -50, -30, -20})
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Selected)
}

func TestExactGuardedByConfig(t *testing.T) {
	ev, _ := newTestEvaluator(t, EvaluatorConfig{MaxExactStops: 4})

	res, err := ev.Exact([]int64{-1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.OrderedCount)

	_, err = ev.Exact([]int64{1, 2, 3, 4, 5})
	assert.Error(t, err)
}

func TestRunBatch(t *testing.T) {
	ev, _ := newTestEvaluator(t, EvaluatorConfig{MaxConcurrent: 2})

	results, err := ev.RunBatch(context.Background(), []RunRequest{
		{Values: []int64{4, -8, 3}},
		{Values: []int64{-1, -2, -3}},
		{Source: "library", RouteName: "missing"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Count)
	assert.Equal(t, int64(7), results[0].FinalBal)
	assert.Equal(t, 0, results[1].Count)
	assert.NotEmpty(t, results[2].Error)
}

func TestRunBatchLimits(t *testing.T) {
	ev, _ := newTestEvaluator(t, EvaluatorConfig{MaxBatch: 1})
	_, err := ev.RunBatch(context.Background(), nil)
	assert.Error(t, err)
	_, err = ev.RunBatch(context.Background(), []RunRequest{
		{Values: []int64{1}},
		{Values: []int64{2}},
	})
	assert.Error(t, err)
}
