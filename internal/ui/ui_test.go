package ui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/relay/internal/logging"
	"github.com/me/relay/internal/store"
	"github.com/me/relay/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) (chi.Router, *store.SQLiteStore) {
	t.Helper()
	logger := logging.Discard()
	st, err := store.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	r := chi.NewRouter()
	New(st, logger).RegisterRoutes(r)
	return r, st
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRunList_Empty(t *testing.T) {
	r, _ := testRouter(t)
	w := get(r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No runs recorded.")
}

func TestRunListAndDetail(t *testing.T) {
	r, st := testRouter(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := &model.Run{
		ID:            store.NewRunID(),
		Manifest:      "suite.yml",
		ParallelLimit: 4,
		Status:        model.RunStatusFailed,
		Total:         2,
		Passed:        1,
		Failed:        1,
		StartedAt:     now.Add(-2 * time.Minute),
		FinishedAt:    &now,
	}
	require.NoError(t, st.CreateRun(ctx, run))

	passed, failed := model.ResultPassed, model.ResultFailed
	require.NoError(t, st.UpsertUnit(ctx, &model.UnitRecord{
		RunID: run.ID, Name: "boot", Status: model.StatusDone, Result: &passed,
		DurationMs: 1500, UpdatedAt: now,
	}))
	require.NoError(t, st.UpsertUnit(ctx, &model.UnitRecord{
		RunID: run.ID, Name: "probe", Status: model.StatusDone, Result: &failed,
		DependsOn: "boot", DelayMinutes: 0.5, UpdatedAt: now,
	}))

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "/ui/runs/"+run.ID)
	assert.Contains(t, body, "2 minutes ago")

	w = get(r, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.Contains(t, body, "suite.yml")
	assert.Contains(t, body, `<td class="passed">passed</td>`)
	assert.Contains(t, body, `<td class="failed">failed</td>`)
	assert.Contains(t, body, "1.5s")
}

func TestRunDetail_NotFound(t *testing.T) {
	r, _ := testRouter(t)
	w := get(r, "/runs/run_missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "run_missing not found")
}

func TestRenderTemplate_Unknown(t *testing.T) {
	var buf bytes.Buffer
	err := renderTemplate(&buf, "nope", nil)
	assert.ErrorContains(t, err, "template not found")
}
