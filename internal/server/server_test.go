package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/relay/internal/logging"
	"github.com/me/relay/internal/store"
	"github.com/me/relay/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	logger := logging.Discard()
	st, err := store.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return New(st, logger, WithVersion("1.2.3")), st
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func doGet(t *testing.T, srv *Server, path string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, wantStatus, w.Code, "GET %s body=%s", path, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "GET %s", path)
	return env
}

// seed records one finished run with a passed, a failed and a skipped unit.
func seed(t *testing.T, st store.Store) *model.Run {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	run := &model.Run{
		ID:            store.NewRunID(),
		Manifest:      "suite.yml",
		ParallelLimit: 2,
		Status:        model.RunStatusFailed,
		Total:         3,
		Passed:        1,
		Failed:        2,
		StartedAt:     now,
		FinishedAt:    &now,
	}
	require.NoError(t, st.CreateRun(ctx, run))

	passed, failed := model.ResultPassed, model.ResultFailed
	for _, u := range []*model.UnitRecord{
		{Name: "login", Status: model.StatusDone, Result: &passed},
		{Name: "checkout", Status: model.StatusDone, Result: &failed, DependsOn: "login"},
		{Name: "receipt", Status: model.StatusDone, Result: &failed, DependsOn: "checkout", SkippedBy: "checkout"},
	} {
		u.RunID = run.ID
		u.UpdatedAt = now
		u.FinishedAt = &now
		require.NoError(t, st.UpsertUnit(ctx, u))
	}
	return run
}

func TestDiscovery(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/", http.StatusOK)
	assert.Equal(t, "ok", env.Status)
	assert.NotEmpty(t, env.RequestID)

	var data discoveryResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Endpoints)
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/health", http.StatusOK)

	var data healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, "1.2.3", data.Version)
	assert.Equal(t, "ok", data.Store)
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req_from_client")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "req_from_client", w.Header().Get("X-Request-ID"))
}

func TestListRuns(t *testing.T) {
	srv, st := testServer(t)

	env := doGet(t, srv, "/api/v1/runs", http.StatusOK)
	assert.JSONEq(t, "[]", string(env.Data))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 0, env.Pagination.Total)

	run := seed(t, st)
	seed(t, st)

	env = doGet(t, srv, "/api/v1/runs?limit=1", http.StatusOK)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, env.Pagination.Total)
	assert.True(t, env.Pagination.HasMore)

	env = doGet(t, srv, "/api/v1/runs/"+run.ID, http.StatusOK)
	var got model.Run
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestListRuns_BadQuery(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/runs?limit=lots", http.StatusBadRequest)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrValidation, env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "limit", env.Error.Details[0].Field)
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/runs/run_nope", http.StatusNotFound)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrNotFound, env.Error.Code)

	doGet(t, srv, "/api/v1/runs/run_nope/units", http.StatusNotFound)
}

func TestUnits(t *testing.T) {
	srv, st := testServer(t)
	run := seed(t, st)

	env := doGet(t, srv, "/api/v1/runs/"+run.ID+"/units", http.StatusOK)
	var units []model.UnitRecord
	require.NoError(t, json.Unmarshal(env.Data, &units))
	require.Len(t, units, 3)
	assert.Equal(t, "checkout", units[0].Name)

	env = doGet(t, srv, "/api/v1/runs/"+run.ID+"/units?result=failed", http.StatusOK)
	units = nil
	require.NoError(t, json.Unmarshal(env.Data, &units))
	assert.Len(t, units, 2)

	doGet(t, srv, "/api/v1/runs/"+run.ID+"/units?result=flaky", http.StatusBadRequest)

	env = doGet(t, srv, "/api/v1/runs/"+run.ID+"/units/receipt", http.StatusOK)
	var u model.UnitRecord
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "checkout", u.SkippedBy)

	doGet(t, srv, "/api/v1/runs/"+run.ID+"/units/ghost", http.StatusNotFound)
}

func TestUIRoutes(t *testing.T) {
	srv, st := testServer(t)
	run := seed(t, st)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/ui/", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/ui/runs/"+run.ID, nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "receipt")
}
