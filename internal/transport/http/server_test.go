package planhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caravan/internal/service"
	"caravan/internal/store/routelib"
	"caravan/internal/store/runs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	results, err := runs.NewResultStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { results.Close() })
	library, err := routelib.New(filepath.Join(dir, "routes.db"))
	require.NoError(t, err)

	ev, err := service.NewEvaluator(service.EvaluatorConfig{
		Results:       results,
		Library:       library,
		MaxExactStops: 10,
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Evaluator: ev,
		Results:   results,
		Library:   library,
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPreviewAcceptsBareArray(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/preview", `[4, -8, 3]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			Count    int   `json:"count"`
			Selected []int `json:"selected"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Result.Count)
	assert.Equal(t, []int{0, 2}, resp.Result.Selected)
}

func TestPreviewAcceptsStopsObject(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/preview",
		`{"stops": [{"value": "6"}, {"value": -5}, {"value": -3}, {"value": -2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestPreviewRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/preview", `{"nope": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExactEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/exact", `[-1, 2]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), `"ordered_count":1`)

	rec = doJSON(t, srv, http.MethodPost, "/api/plan/exact",
		`[1,2,3,4,5,6,7,8,9,10,11]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/runs", `{"values": [6, -6, 3, -5, 3, -5]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started struct {
		Run runs.Run `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.Run.ID)

	var detail struct {
		Run runs.Run `json:"run"`
	}
	require.Eventually(t, func() bool {
		rec := doJSON(t, srv, http.MethodGet, "/api/plan/runs/"+started.Run.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
			return false
		}
		return detail.Run.Status == runs.RunStatusDone
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, detail.Run.Selected)

	rec = doJSON(t, srv, http.MethodGet, "/api/plan/runs/"+started.Run.ID+"/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/plan/runs/"+started.Run.ID+"/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestRunDetailNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/plan/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plan/batch",
		`{"routes": [{"values": [4, -8, 3]}, {"values": [-1, -2, -3]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []service.BatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Results[0].Count)
	assert.Equal(t, 0, resp.Results[1].Count)
}

func TestRouteLibraryCRUD(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/routes",
		`{"name": "silk-road", "values": [4, -8, 3], "note": "demo"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/routes/silk-road", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "silk-road")
	assert.Contains(t, rec.Body.String(), `"worst_value":-8`)

	rec = doJSON(t, srv, http.MethodGet, "/api/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/routes/silk-road", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/routes/silk-road", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfilesDisabled(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/profiles", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
